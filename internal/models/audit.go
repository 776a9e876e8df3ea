package models

import "time"

// AuditLog represents an audit log entry
type AuditLog struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	AgentID   string    `json:"agent_id,omitempty"`
	ClientIP  string    `json:"client_ip"`
	UserAgent string    `json:"user_agent,omitempty"`
	Success   bool      `json:"success"`
	ErrorMsg  string    `json:"error_msg,omitempty"`
	Details   string    `json:"details,omitempty"` // JSON
}

// Audit action constants
const (
	ActionCAInit          = "ca_init"
	ActionCertIssue       = "cert_issue"
	ActionAuthSuccess     = "auth_success"
	ActionAuthFailed      = "auth_failed"
	ActionSessionRevoke   = "session_revoke"
	ActionSessionsCleanup = "sessions_cleanup"
)
