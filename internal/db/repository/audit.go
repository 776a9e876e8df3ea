package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/adamscao/agentca/internal/models"
)

// AuditRepository handles audit log data access
type AuditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create creates a new audit log entry
func (r *AuditRepository) Create(ctx context.Context, log *models.AuditLog) error {
	query := `
		INSERT INTO audit_logs (action, agent_id, client_ip, user_agent, success, error_msg, details)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	success := 0
	if log.Success {
		success = 1
	}

	result, err := r.db.ExecContext(ctx, query,
		log.Action,
		log.AgentID,
		log.ClientIP,
		log.UserAgent,
		success,
		log.ErrorMsg,
		log.Details,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	log.ID = id
	log.Timestamp = time.Now().UTC()

	return nil
}

// List lists audit logs with optional filters, newest first
func (r *AuditRepository) List(ctx context.Context, agentID string, action string, limit int) ([]*models.AuditLog, error) {
	query := `
		SELECT id, timestamp, action, agent_id, client_ip, user_agent, success, error_msg, details
		FROM audit_logs
		WHERE 1=1
	`
	args := []any{}

	if agentID != "" {
		query += " AND agent_id = ?"
		args = append(args, agentID)
	}

	if action != "" {
		query += " AND action = ?"
		args = append(args, action)
	}

	query += " ORDER BY timestamp DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	return scanAuditLogs(rows)
}

// ListFailedAuth lists failed authentication attempts since the given time
func (r *AuditRepository) ListFailedAuth(ctx context.Context, since time.Time, limit int) ([]*models.AuditLog, error) {
	query := `
		SELECT id, timestamp, action, agent_id, client_ip, user_agent, success, error_msg, details
		FROM audit_logs
		WHERE action = ? AND success = 0 AND timestamp >= ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, models.ActionAuthFailed, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list failed auth: %w", err)
	}
	defer rows.Close()

	return scanAuditLogs(rows)
}

// CountByAction counts audit logs by action type
func (r *AuditRepository) CountByAction(ctx context.Context, action string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM audit_logs
		WHERE action = ? AND timestamp >= ?
	`

	var count int
	err := r.db.QueryRowContext(ctx, query, action, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count audit logs: %w", err)
	}

	return count, nil
}

// DeleteOld deletes audit logs older than the given date
func (r *AuditRepository) DeleteOld(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM audit_logs WHERE timestamp < ?`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old audit logs: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return count, nil
}

func scanAuditLogs(rows *sql.Rows) ([]*models.AuditLog, error) {
	var logs []*models.AuditLog

	for rows.Next() {
		log := &models.AuditLog{}
		var success int
		var agentID, userAgent, errorMsg, details sql.NullString

		err := rows.Scan(
			&log.ID,
			&log.Timestamp,
			&log.Action,
			&agentID,
			&log.ClientIP,
			&userAgent,
			&success,
			&errorMsg,
			&details,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}

		log.Success = success == 1
		log.AgentID = agentID.String
		log.UserAgent = userAgent.String
		log.ErrorMsg = errorMsg.String
		log.Details = details.String

		logs = append(logs, log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit logs: %w", err)
	}

	return logs, nil
}
