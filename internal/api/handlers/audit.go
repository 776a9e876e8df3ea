package handlers

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/adamscao/agentca/internal/db/repository"
	"github.com/adamscao/agentca/internal/models"
)

// Auditor writes audit entries for requests. Audit failures are logged and
// never fail the request.
type Auditor struct {
	repo   *repository.AuditRepository
	logger *slog.Logger
}

// NewAuditor creates an auditor over repo
func NewAuditor(repo *repository.AuditRepository, logger *slog.Logger) *Auditor {
	return &Auditor{repo: repo, logger: logger}
}

// Record writes one audit entry for the request in c
func (a *Auditor) Record(c *gin.Context, action, agentID string, success bool, errMsg string, details any) {
	entry := &models.AuditLog{
		Action:    action,
		AgentID:   agentID,
		ClientIP:  GetClientIP(c),
		UserAgent: c.GetHeader("User-Agent"),
		Success:   success,
		ErrorMsg:  errMsg,
	}
	if details != nil {
		if data, err := json.Marshal(details); err == nil {
			entry.Details = string(data)
		}
	}

	a.write(c.Request.Context(), entry)
}

func (a *Auditor) write(ctx context.Context, entry *models.AuditLog) {
	if a == nil || a.repo == nil {
		return
	}
	if err := a.repo.Create(ctx, entry); err != nil {
		a.logger.Warn("failed to write audit log", "action", entry.Action, "error", err)
	}
}
