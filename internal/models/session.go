package models

import "time"

// Session represents a bearer session minted after a successful authentication
type Session struct {
	SessionID   string    `json:"session_id"`
	AgentID     string    `json:"agent_id"`
	Permissions []string  `json:"permissions"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Active      bool      `json:"active"`
}

// IsExpired reports whether the session is past its expiry at now
func (s *Session) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
