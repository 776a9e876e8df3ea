package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/adamscao/agentca/internal/auth"
	"github.com/adamscao/agentca/internal/models"
)

// AuthHandler handles agent authentication
type AuthHandler struct {
	authenticator *auth.Authenticator
	auditor       *Auditor
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(authenticator *auth.Authenticator, auditor *Auditor) *AuthHandler {
	return &AuthHandler{
		authenticator: authenticator,
		auditor:       auditor,
	}
}

// AuthenticateRequest represents an agent authentication request. Data is
// the challenge the agent signed.
type AuthenticateRequest struct {
	AgentID   string `json:"agent_id" binding:"required"`
	Signature string `json:"signature" binding:"required"`
	Data      string `json:"data" binding:"required"`
}

// AuthenticateAgent verifies an agent's signed challenge and opens a session
// POST /v1/auth/agent
func (h *AuthHandler) AuthenticateAgent(c *gin.Context) {
	var req AuthenticateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondErrorWithDetails(c, http.StatusBadRequest, "invalid_request", "Invalid request body", err.Error())
		return
	}

	result := h.authenticator.AuthenticateAgent(c.Request.Context(), req.AgentID, req.Signature, []byte(req.Data))
	if !result.Authenticated {
		h.auditor.Record(c, models.ActionAuthFailed, req.AgentID, false, result.Error, nil)

		status := http.StatusUnauthorized
		if errors.Is(result.Err, auth.ErrSessionCreateFailed) {
			status = http.StatusInternalServerError
		}
		c.JSON(status, result)
		return
	}

	h.auditor.Record(c, models.ActionAuthSuccess, req.AgentID, true, "", map[string]any{
		"agent_type": result.AgentType,
		"expires_at": result.ExpiresAt,
	})
	RespondSuccess(c, result)
}
