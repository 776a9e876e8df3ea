package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adamscao/agentca/internal/clock"
	"github.com/adamscao/agentca/internal/config"
	"github.com/adamscao/agentca/internal/logging"
	"github.com/adamscao/agentca/internal/models"
	"github.com/adamscao/agentca/internal/policy"
)

func testConfig(t *testing.T, driver string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Storage.Driver = driver
	cfg.Storage.RootDir = filepath.Join(dir, "security")
	cfg.Database.Path = filepath.Join(dir, "agentca.db")
	cfg.Session.TTL = "10m"
	return cfg
}

func TestOpen_EndToEnd(t *testing.T) {
	for _, driver := range []string{config.StorageDriverFile, config.StorageDriverSQLite} {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			fake := clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

			a, err := Open(testConfig(t, driver), fake, logging.Discard())
			require.NoError(t, err)
			defer a.Close()

			result, err := a.Initialize(ctx, "test")
			require.NoError(t, err)
			assert.True(t, result.Generated)

			entries, err := a.AuditRepo.List(ctx, "", models.ActionCAInit, 10)
			require.NoError(t, err)
			assert.Len(t, entries, 1)
			_, err = a.Authority.GenerateAgentCertificate(ctx, "agent-1", policy.AgentTypeResearch)
			require.NoError(t, err)

			signature, err := a.Authenticator.SignData(ctx, "agent-1", []byte("challenge"))
			require.NoError(t, err)
			authResult := a.Authenticator.AuthenticateAgent(ctx, "agent-1", signature, []byte("challenge"))
			require.True(t, authResult.Authenticated, authResult.Error)
			assert.Equal(t, fake.Now().Add(10*time.Minute), authResult.ExpiresAt)

			fake.Advance(11 * time.Minute)
			cleanup := a.Sessions.CleanupExpiredSessions(ctx)
			assert.Equal(t, 1, cleanup.Cleaned)
		})
	}
}
