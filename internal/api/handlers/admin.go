package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/adamscao/agentca/internal/ca"
	"github.com/adamscao/agentca/internal/db/repository"
	"github.com/adamscao/agentca/internal/models"
	"github.com/adamscao/agentca/internal/session"
)

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 1000
)

// AdminHandler handles administrative operations
type AdminHandler struct {
	authority *ca.Authority
	sessions  *session.Manager
	auditRepo *repository.AuditRepository
	auditor   *Auditor
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(authority *ca.Authority, sessions *session.Manager, auditRepo *repository.AuditRepository, auditor *Auditor) *AdminHandler {
	return &AdminHandler{
		authority: authority,
		sessions:  sessions,
		auditRepo: auditRepo,
		auditor:   auditor,
	}
}

// IssueAgentRequest represents an agent certificate issuance request
type IssueAgentRequest struct {
	AgentID   string `json:"agent_id" binding:"required"`
	AgentType string `json:"agent_type" binding:"required"`
}

// IssueAgent issues a certificate for an agent
// POST /v1/admin/agents
func (h *AdminHandler) IssueAgent(c *gin.Context) {
	var req IssueAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondErrorWithDetails(c, http.StatusBadRequest, "invalid_request", "Invalid request body", err.Error())
		return
	}

	issued, err := h.authority.GenerateAgentCertificate(c.Request.Context(), req.AgentID, req.AgentType)
	if err != nil {
		h.auditor.Record(c, models.ActionCertIssue, req.AgentID, false, err.Error(), nil)
		respondCAError(c, err)
		return
	}

	h.auditor.Record(c, models.ActionCertIssue, req.AgentID, true, "", map[string]any{
		"agent_type":  req.AgentType,
		"serial":      issued.Certificate.SerialNumber,
		"fingerprint": issued.Fingerprint,
	})
	c.JSON(http.StatusCreated, issued)
}

// CleanupSessions deletes expired sessions
// POST /v1/admin/sessions/cleanup
func (h *AdminHandler) CleanupSessions(c *gin.Context) {
	result := h.sessions.CleanupExpiredSessions(c.Request.Context())
	h.auditor.Record(c, models.ActionSessionsCleanup, "", result.Error == "", result.Error, map[string]int{
		"cleaned": result.Cleaned,
	})

	if result.Error != "" {
		c.JSON(http.StatusInternalServerError, result)
		return
	}
	RespondSuccess(c, result)
}

// ListAudit lists audit entries, newest first
// GET /v1/admin/audit?agent_id=&action=&limit=
func (h *AdminHandler) ListAudit(c *gin.Context) {
	limit := defaultAuditLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			RespondError(c, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = min(n, maxAuditLimit)
	}

	logs, err := h.auditRepo.List(c.Request.Context(), c.Query("agent_id"), c.Query("action"), limit)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "database_error", "Failed to list audit logs")
		return
	}
	if logs == nil {
		logs = []*models.AuditLog{}
	}

	RespondSuccess(c, gin.H{"entries": logs})
}
