package session

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adamscao/agentca/internal/clock"
	"github.com/adamscao/agentca/internal/store"
)

var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type testManager struct {
	manager  *Manager
	sessions *store.SessionStore
	clock    *clock.FakeClock
}

func newTestManager(t *testing.T) *testManager {
	t.Helper()
	backend, err := store.NewFileBackend(filepath.Join(t.TempDir(), "security"))
	require.NoError(t, err)
	require.NoError(t, backend.EnsureNamespace(context.Background(), store.SessionNamespace))

	fake := clock.Fake(testEpoch)
	sessions := store.NewSessionStore(backend)
	manager := NewManager(sessions, Options{Clock: fake}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return &testManager{manager: manager, sessions: sessions, clock: fake}
}

func TestCreateSession(t *testing.T) {
	tm := newTestManager(t)
	ctx := context.Background()

	perms := []string{"claude-md:read"}
	session, err := tm.manager.CreateSession(ctx, "agent-1", perms)
	require.NoError(t, err)

	assert.True(t, ValidateTokenFormat(session.SessionID))
	assert.Equal(t, "agent-1", session.AgentID)
	assert.True(t, session.Active)
	assert.Equal(t, testEpoch, session.CreatedAt)
	assert.Equal(t, testEpoch.Add(DefaultTTL), session.ExpiresAt)

	perms[0] = "mutated"
	stored, err := tm.sessions.Load(ctx, session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, []string{"claude-md:read"}, stored.Permissions)
}

func TestValidateSession_Valid(t *testing.T) {
	tm := newTestManager(t)
	ctx := context.Background()

	session, err := tm.manager.CreateSession(ctx, "agent-1", []string{"claude-md:read", "security:scan"})
	require.NoError(t, err)

	result := tm.manager.ValidateSession(ctx, session.SessionID)
	require.True(t, result.Valid, result.Error)
	assert.Equal(t, "agent-1", result.AgentID)
	assert.Equal(t, []string{"claude-md:read", "security:scan"}, result.Permissions)
	assert.Empty(t, result.Error)
}

func TestValidateSession_UnknownToken(t *testing.T) {
	tm := newTestManager(t)
	ctx := context.Background()

	token, err := GenerateToken()
	require.NoError(t, err)

	result := tm.manager.ValidateSession(ctx, token)
	assert.False(t, result.Valid)
	assert.Equal(t, "invalid session token", result.Error)
	assert.ErrorIs(t, result.Err, ErrSessionNotFound)

	result = tm.manager.ValidateSession(ctx, "../../ca/root")
	assert.False(t, result.Valid)
	assert.ErrorIs(t, result.Err, ErrSessionNotFound)
}

func TestValidateSession_ExpiryDeletesRecord(t *testing.T) {
	tm := newTestManager(t)
	ctx := context.Background()

	session, err := tm.manager.CreateSession(ctx, "agent-1", nil)
	require.NoError(t, err)

	tm.clock.Advance(DefaultTTL)
	result := tm.manager.ValidateSession(ctx, session.SessionID)
	assert.True(t, result.Valid, "a session is valid up to and including its expiry instant")

	tm.clock.Advance(time.Second)
	result = tm.manager.ValidateSession(ctx, session.SessionID)
	assert.False(t, result.Valid)
	assert.Equal(t, "session has expired", result.Error)
	assert.ErrorIs(t, result.Err, ErrSessionExpired)

	_, err = tm.sessions.Load(ctx, session.SessionID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	result = tm.manager.ValidateSession(ctx, session.SessionID)
	assert.Equal(t, "invalid session token", result.Error)
}

func TestValidateSession_NoSlidingExpiry(t *testing.T) {
	tm := newTestManager(t)
	ctx := context.Background()

	session, err := tm.manager.CreateSession(ctx, "agent-1", nil)
	require.NoError(t, err)

	tm.clock.Advance(30 * time.Minute)
	require.True(t, tm.manager.ValidateSession(ctx, session.SessionID).Valid)

	stored, err := tm.sessions.Load(ctx, session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, session.ExpiresAt, stored.ExpiresAt)
}

func TestRevokeSession(t *testing.T) {
	tm := newTestManager(t)
	ctx := context.Background()

	session, err := tm.manager.CreateSession(ctx, "agent-1", nil)
	require.NoError(t, err)

	result := tm.manager.RevokeSession(ctx, session.SessionID)
	assert.True(t, result.Success)

	validation := tm.manager.ValidateSession(ctx, session.SessionID)
	assert.False(t, validation.Valid)
	assert.Equal(t, "session is inactive", validation.Error)
	assert.ErrorIs(t, validation.Err, ErrSessionInactive)

	// Revoked records are kept.
	stored, err := tm.sessions.Load(ctx, session.SessionID)
	require.NoError(t, err)
	assert.False(t, stored.Active)

	result = tm.manager.RevokeSession(ctx, session.SessionID)
	assert.True(t, result.Success, "revoking twice is idempotent")
}

func TestRevokeSession_Unknown(t *testing.T) {
	tm := newTestManager(t)
	ctx := context.Background()

	token, err := GenerateToken()
	require.NoError(t, err)

	result := tm.manager.RevokeSession(ctx, token)
	assert.False(t, result.Success)
	assert.Equal(t, "invalid session token", result.Error)
	assert.ErrorIs(t, result.Err, ErrSessionNotFound)
}

func TestCleanupExpiredSessions(t *testing.T) {
	tm := newTestManager(t)
	ctx := context.Background()

	expired, err := tm.manager.CreateSession(ctx, "agent-old", nil)
	require.NoError(t, err)
	revoked, err := tm.manager.CreateSession(ctx, "agent-revoked", nil)
	require.NoError(t, err)
	require.True(t, tm.manager.RevokeSession(ctx, revoked.SessionID).Success)

	tm.clock.Advance(DefaultTTL + time.Minute)
	fresh, err := tm.manager.CreateSession(ctx, "agent-new", nil)
	require.NoError(t, err)

	result := tm.manager.CleanupExpiredSessions(ctx)
	assert.Empty(t, result.Error)
	assert.Equal(t, 2, result.Cleaned)
	assert.Equal(t, "cleaned up 2 expired sessions", result.Message)

	_, err = tm.sessions.Load(ctx, expired.SessionID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = tm.sessions.Load(ctx, revoked.SessionID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.True(t, tm.manager.ValidateSession(ctx, fresh.SessionID).Valid)

	result = tm.manager.CleanupExpiredSessions(ctx)
	assert.Equal(t, 0, result.Cleaned)
}

func TestConcurrentValidateAndRevoke(t *testing.T) {
	tm := newTestManager(t)
	ctx := context.Background()

	session, err := tm.manager.CreateSession(ctx, "agent-1", nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			result := tm.manager.ValidateSession(ctx, session.SessionID)
			if !result.Valid {
				assert.ErrorIs(t, result.Err, ErrSessionInactive)
			}
		}()
		go func() {
			defer wg.Done()
			assert.True(t, tm.manager.RevokeSession(ctx, session.SessionID).Success)
		}()
	}
	wg.Wait()

	result := tm.manager.ValidateSession(ctx, session.SessionID)
	assert.False(t, result.Valid)
	assert.ErrorIs(t, result.Err, ErrSessionInactive)
}

func TestRunCleanup_StopsOnCancel(t *testing.T) {
	tm := newTestManager(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		tm.manager.RunCleanup(ctx, time.Millisecond)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("RunCleanup did not return after cancel")
	}
}

func TestKeyedMutex_ReleasesEntries(t *testing.T) {
	k := newKeyedMutex()
	unlock := k.Lock("a")
	unlock()
	assert.Empty(t, k.locks)
}
