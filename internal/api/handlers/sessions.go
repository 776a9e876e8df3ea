package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/adamscao/agentca/internal/api/middleware"
	"github.com/adamscao/agentca/internal/models"
	"github.com/adamscao/agentca/internal/session"
)

// SessionHandler handles session validation and revocation
type SessionHandler struct {
	sessions *session.Manager
	auditor  *Auditor
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions *session.Manager, auditor *Auditor) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		auditor:  auditor,
	}
}

// MeResponse describes the session's agent
type MeResponse struct {
	AgentID     string   `json:"agent_id"`
	Permissions []string `json:"permissions"`
}

// ValidateSession reports whether the bearer token is a live session
// POST /v1/sessions/validate
func (h *SessionHandler) ValidateSession(c *gin.Context) {
	token, ok := middleware.BearerToken(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", "Bearer token required")
		return
	}

	RespondSuccess(c, h.sessions.ValidateSession(c.Request.Context(), token))
}

// RevokeSession revokes the bearer token's session
// POST /v1/sessions/revoke
func (h *SessionHandler) RevokeSession(c *gin.Context) {
	token, ok := middleware.BearerToken(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", "Bearer token required")
		return
	}

	result := h.sessions.RevokeSession(c.Request.Context(), token)
	h.auditor.Record(c, models.ActionSessionRevoke, "", result.Success, result.Error, map[string]string{
		"session": session.HashToken(token),
	})

	if !result.Success {
		status := http.StatusInternalServerError
		if errors.Is(result.Err, session.ErrSessionNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, result)
		return
	}

	RespondSuccess(c, result)
}

// Me returns the agent and permissions bound to the current session
// GET /v1/sessions/me
func (h *SessionHandler) Me(c *gin.Context) {
	RespondSuccess(c, MeResponse{
		AgentID:     c.GetString(middleware.ContextAgentID),
		Permissions: c.GetStringSlice(middleware.ContextPermissions),
	})
}
