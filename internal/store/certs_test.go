package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adamscao/agentca/internal/models"
)

func TestCertStore_RootRecords(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend Backend) {
		ctx := context.Background()
		certs := NewCertStore(backend)
		require.NoError(t, certs.EnsureNamespaces(ctx))

		keyExists, certExists, err := certs.RootExists(ctx)
		require.NoError(t, err)
		assert.False(t, keyExists)
		assert.False(t, certExists)

		claimed, err := certs.ClaimRootKey(ctx, []byte("pem"))
		require.NoError(t, err)
		assert.True(t, claimed)

		claimed, err = certs.ClaimRootKey(ctx, []byte("other"))
		require.NoError(t, err)
		assert.False(t, claimed)

		root := &models.RootCertificate{
			Version:  models.CertificateVersion,
			Subject:  "CN=Root,O=Org,C=US",
			Issuer:   "CN=Root,O=Org,C=US",
			IsCA:     true,
			KeyUsage: []string{models.KeyUsageKeyCertSign},
		}
		require.NoError(t, certs.SaveRootCertificate(ctx, root))
		require.NoError(t, certs.SaveRootFingerprint(ctx, "SHA256:abc"))

		loaded, err := certs.LoadRootCertificate(ctx)
		require.NoError(t, err)
		assert.Equal(t, root.Subject, loaded.Subject)
		assert.True(t, loaded.IsCA)

		fp, err := certs.LoadRootFingerprint(ctx)
		require.NoError(t, err)
		assert.Equal(t, "SHA256:abc", fp)

		keyExists, certExists, err = certs.RootExists(ctx)
		require.NoError(t, err)
		assert.True(t, keyExists)
		assert.True(t, certExists)
	})
}

func TestCertStore_AgentRecords(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend Backend) {
		ctx := context.Background()
		certs := NewCertStore(backend)

		_, err := certs.LoadAgentMetadata(ctx, "agent-1")
		assert.ErrorIs(t, err, ErrNotFound)

		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		require.NoError(t, certs.SaveAgentPrivateKey(ctx, "agent-1", []byte("pem")))
		require.NoError(t, certs.SaveAgentCertificate(ctx, "agent-1", &models.AgentCertificate{Subject: "CN=agent-1"}))
		require.NoError(t, certs.SaveAgentMetadata(ctx, &models.AgentMetadata{
			AgentID:     "agent-1",
			AgentType:   "meta-agent",
			CreatedAt:   now,
			ExpiresAt:   now.Add(time.Hour),
			Permissions: []string{"claude-md:read"},
		}))
		require.NoError(t, certs.SaveAgentMetadata(ctx, &models.AgentMetadata{AgentID: "agent-2"}))

		meta, err := certs.LoadAgentMetadata(ctx, "agent-1")
		require.NoError(t, err)
		assert.Equal(t, "meta-agent", meta.AgentType)
		assert.True(t, meta.ExpiresAt.Equal(now.Add(time.Hour)))

		cert, err := certs.LoadAgentCertificate(ctx, "agent-1")
		require.NoError(t, err)
		assert.Equal(t, "CN=agent-1", cert.Subject)

		key, err := certs.LoadAgentPrivateKey(ctx, "agent-1")
		require.NoError(t, err)
		assert.Equal(t, []byte("pem"), key)

		ids, err := certs.ListAgents(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"agent-1", "agent-2"}, ids)
	})
}

func TestSessionStore_RoundTrip(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend Backend) {
		ctx := context.Background()
		sessions := NewSessionStore(backend)

		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		session := &models.Session{
			SessionID:   "tok-1",
			AgentID:     "agent-1",
			Permissions: []string{"claude-md:read"},
			CreatedAt:   now,
			ExpiresAt:   now.Add(time.Hour),
			Active:      true,
		}
		require.NoError(t, sessions.Save(ctx, session))
		require.NoError(t, sessions.Save(ctx, &models.Session{SessionID: "tok-2"}))

		loaded, err := sessions.Load(ctx, "tok-1")
		require.NoError(t, err)
		assert.Equal(t, "agent-1", loaded.AgentID)
		assert.True(t, loaded.Active)

		tokens, err := sessions.ListTokens(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"tok-1", "tok-2"}, tokens)

		require.NoError(t, sessions.Delete(ctx, "tok-1"))
		_, err = sessions.Load(ctx, "tok-1")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
