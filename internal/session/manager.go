package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/adamscao/agentca/internal/clock"
	"github.com/adamscao/agentca/internal/models"
	"github.com/adamscao/agentca/internal/store"
)

// DefaultTTL is the lifetime of a session
const DefaultTTL = time.Hour

// Session errors
var (
	ErrSessionNotFound = errors.New("invalid session token")
	ErrSessionInactive = errors.New("session is inactive")
	ErrSessionExpired  = errors.New("session has expired")
)

// ValidationResult is returned by ValidateSession
type ValidationResult struct {
	Valid       bool     `json:"valid"`
	AgentID     string   `json:"agent_id,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	Error       string   `json:"error,omitempty"`
	Err         error    `json:"-"`
}

// RevokeResult is returned by RevokeSession
type RevokeResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Err     error  `json:"-"`
}

// CleanupResult is returned by CleanupExpiredSessions
type CleanupResult struct {
	Cleaned int    `json:"cleaned"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Manager creates, validates, revokes and sweeps bearer sessions. It is the
// only component that touches session records.
type Manager struct {
	sessions *store.SessionStore
	clock    clock.Clock
	ttl      time.Duration
	logger   *slog.Logger
	locks    *keyedMutex
}

// Options configures a Manager
type Options struct {
	TTL   time.Duration
	Clock clock.Clock
}

// NewManager creates a session manager over the given store
func NewManager(sessions *store.SessionStore, opts Options, logger *slog.Logger) *Manager {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		sessions: sessions,
		clock:    opts.Clock,
		ttl:      opts.TTL,
		logger:   logger,
		locks:    newKeyedMutex(),
	}
}

// TTL returns the lifetime given to new sessions
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// CreateSession mints a new active session for agentID
func (m *Manager) CreateSession(ctx context.Context, agentID string, permissions []string) (*models.Session, error) {
	token, err := GenerateToken()
	if err != nil {
		return nil, err
	}

	now := m.clock.Now().UTC()
	session := &models.Session{
		SessionID:   token,
		AgentID:     agentID,
		Permissions: slices.Clone(permissions),
		CreatedAt:   now,
		ExpiresAt:   now.Add(m.ttl),
		Active:      true,
	}

	unlock := m.locks.Lock(token)
	defer unlock()

	if err := m.sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	m.logger.Debug("session created", "agent_id", agentID, "session", HashToken(token), "expires_at", session.ExpiresAt)
	return session, nil
}

// ValidateSession checks a bearer token. Expired sessions are deleted as a
// side effect. Validation never extends a session's lifetime.
func (m *Manager) ValidateSession(ctx context.Context, token string) *ValidationResult {
	if !ValidateTokenFormat(token) {
		return invalid(ErrSessionNotFound)
	}

	unlock := m.locks.Lock(token)
	defer unlock()

	session, err := m.sessions.Load(ctx, token)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			m.logger.Warn("failed to load session", "session", HashToken(token), "error", err)
		}
		return invalid(ErrSessionNotFound)
	}
	if !TokensEqual(session.SessionID, token) {
		return invalid(ErrSessionNotFound)
	}

	if !session.Active {
		return invalid(ErrSessionInactive)
	}

	if session.IsExpired(m.clock.Now()) {
		if err := m.sessions.Delete(ctx, token); err != nil && !errors.Is(err, store.ErrNotFound) {
			m.logger.Warn("failed to delete expired session", "session", HashToken(token), "error", err)
		}
		return invalid(ErrSessionExpired)
	}

	return &ValidationResult{
		Valid:       true,
		AgentID:     session.AgentID,
		Permissions: session.Permissions,
	}
}

// RevokeSession marks a session inactive. The record is kept for audit.
func (m *Manager) RevokeSession(ctx context.Context, token string) *RevokeResult {
	if !ValidateTokenFormat(token) {
		return &RevokeResult{Error: ErrSessionNotFound.Error(), Err: ErrSessionNotFound}
	}

	unlock := m.locks.Lock(token)
	defer unlock()

	session, err := m.sessions.Load(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &RevokeResult{Error: ErrSessionNotFound.Error(), Err: ErrSessionNotFound}
		}
		return &RevokeResult{Error: "failed to load session", Err: err}
	}

	session.Active = false
	if err := m.sessions.Save(ctx, session); err != nil {
		return &RevokeResult{Error: "failed to revoke session", Err: err}
	}

	m.logger.Info("session revoked", "agent_id", session.AgentID, "session", HashToken(token))
	return &RevokeResult{Success: true}
}

// CleanupExpiredSessions deletes every session past its expiry, active or
// not. It is a best-effort sweep: listing failures are reported in the
// result rather than returned.
func (m *Manager) CleanupExpiredSessions(ctx context.Context) *CleanupResult {
	tokens, err := m.sessions.ListTokens(ctx)
	if err != nil {
		m.logger.Error("failed to list sessions", "error", err)
		return &CleanupResult{Error: err.Error()}
	}

	now := m.clock.Now()
	cleaned := 0
	for _, token := range tokens {
		if ctx.Err() != nil {
			break
		}
		if m.deleteIfExpired(ctx, token, now) {
			cleaned++
		}
	}

	if cleaned > 0 {
		m.logger.Info("cleaned up expired sessions", "count", cleaned)
	}
	return &CleanupResult{
		Cleaned: cleaned,
		Message: fmt.Sprintf("cleaned up %d expired sessions", cleaned),
	}
}

func (m *Manager) deleteIfExpired(ctx context.Context, token string, now time.Time) bool {
	unlock := m.locks.Lock(token)
	defer unlock()

	session, err := m.sessions.Load(ctx, token)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			m.logger.Warn("skipping unreadable session", "session", HashToken(token), "error", err)
		}
		return false
	}
	if !session.IsExpired(now) {
		return false
	}
	if err := m.sessions.Delete(ctx, token); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			m.logger.Warn("failed to delete expired session", "session", HashToken(token), "error", err)
		}
		return false
	}
	return true
}

// RunCleanup sweeps expired sessions every interval until ctx is done
func (m *Manager) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result := m.CleanupExpiredSessions(ctx)
			if result.Error != "" {
				m.logger.Warn("session cleanup failed", "error", result.Error)
			}
		}
	}
}

func invalid(err error) *ValidationResult {
	return &ValidationResult{Error: err.Error(), Err: err}
}
