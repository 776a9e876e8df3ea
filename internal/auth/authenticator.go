package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/adamscao/agentca/internal/ca"
	"github.com/adamscao/agentca/internal/clock"
	"github.com/adamscao/agentca/internal/session"
	"github.com/adamscao/agentca/internal/store"
	"github.com/adamscao/agentca/pkg/sshutil"
)

// Authentication errors. Each maps to the message reported in AuthResult.
var (
	ErrAgentNotFound       = errors.New("agent not found")
	ErrCertificateExpired  = errors.New("agent certificate has expired")
	ErrInvalidChain        = ca.ErrInvalidChain
	ErrInvalidSignature    = errors.New("invalid signature")
	ErrPrivateKeyNotFound  = errors.New("agent private key not found")
	ErrSessionCreateFailed = errors.New("failed to create session")
)

// AuthResult is the outcome of AuthenticateAgent. On failure only Error and
// Err are set.
type AuthResult struct {
	Authenticated bool      `json:"authenticated"`
	AgentID       string    `json:"agent_id,omitempty"`
	AgentType     string    `json:"agent_type,omitempty"`
	Permissions   []string  `json:"permissions,omitempty"`
	SessionToken  string    `json:"session_token,omitempty"`
	ExpiresAt     time.Time `json:"expires_at,omitzero"`
	Error         string    `json:"error,omitempty"`
	Err           error     `json:"-"`
}

// Options configures an Authenticator
type Options struct {
	// Scheme verifies certificate and challenge signatures. Defaults to
	// ca.SSHScheme.
	Scheme ca.SignatureScheme
	Clock  clock.Clock
}

// Authenticator verifies agent challenge signatures against issued
// certificates and opens sessions for agents that pass.
type Authenticator struct {
	certs    *store.CertStore
	sessions *session.Manager
	scheme   ca.SignatureScheme
	clock    clock.Clock
	logger   *slog.Logger
}

// NewAuthenticator creates an authenticator
func NewAuthenticator(certs *store.CertStore, sessions *session.Manager, opts Options, logger *slog.Logger) *Authenticator {
	if opts.Scheme == nil {
		opts.Scheme = ca.SSHScheme{}
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{
		certs:    certs,
		sessions: sessions,
		scheme:   opts.Scheme,
		clock:    opts.Clock,
		logger:   logger,
	}
}

// AuthenticateAgent checks, in order, that the agent exists, that its
// certificate has not expired, that the certificate chains to the root and
// that signature is the agent's signature over data. The first failing
// check decides the result. On success a new session is created.
func (a *Authenticator) AuthenticateAgent(ctx context.Context, agentID, signature string, data []byte) *AuthResult {
	if ca.ValidateAgentID(agentID) != nil {
		return a.fail(agentID, ErrAgentNotFound, nil)
	}

	meta, err := a.certs.LoadAgentMetadata(ctx, agentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return a.fail(agentID, ErrAgentNotFound, nil)
		}
		return a.fail(agentID, ErrAgentNotFound, err)
	}

	if meta.IsExpired(a.clock.Now()) {
		return a.fail(agentID, ErrCertificateExpired, nil)
	}

	agentCert, err := a.certs.LoadAgentCertificateRaw(ctx, agentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return a.fail(agentID, ErrAgentNotFound, nil)
		}
		return a.fail(agentID, ErrAgentNotFound, err)
	}
	rootCert, err := a.certs.LoadRootCertificateRaw(ctx)
	if err != nil {
		return a.fail(agentID, ErrInvalidChain, err)
	}
	if !ca.VerifyCertificateChain(a.scheme, agentCert, rootCert) {
		return a.fail(agentID, ErrInvalidChain, nil)
	}

	cert, err := a.certs.LoadAgentCertificate(ctx, agentID)
	if err != nil {
		return a.fail(agentID, ErrInvalidChain, err)
	}
	publicKey, err := sshutil.ParsePublicKey(cert.PublicKey)
	if err != nil {
		return a.fail(agentID, ErrInvalidSignature, err)
	}
	if err := a.scheme.Verify(publicKey, data, signature); err != nil {
		return a.fail(agentID, ErrInvalidSignature, nil)
	}

	sess, err := a.sessions.CreateSession(ctx, agentID, meta.Permissions)
	if err != nil {
		return a.fail(agentID, ErrSessionCreateFailed, err)
	}

	a.logger.Info("agent authenticated",
		"agent_id", agentID,
		"agent_type", meta.AgentType,
		"session", session.HashToken(sess.SessionID))

	return &AuthResult{
		Authenticated: true,
		AgentID:       agentID,
		AgentType:     meta.AgentType,
		Permissions:   sess.Permissions,
		SessionToken:  sess.SessionID,
		ExpiresAt:     sess.ExpiresAt,
	}
}

// SignData signs data with the agent's stored private key. It is the
// agent-side counterpart of AuthenticateAgent.
func (a *Authenticator) SignData(ctx context.Context, agentID string, data []byte) (string, error) {
	if err := ca.ValidateAgentID(agentID); err != nil {
		return "", err
	}

	pemBytes, err := a.certs.LoadAgentPrivateKey(ctx, agentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", ErrPrivateKeyNotFound, agentID)
		}
		return "", fmt.Errorf("failed to load agent private key: %w", err)
	}

	kp, err := ca.ParsePrivateKey(pemBytes)
	if err != nil {
		return "", err
	}

	return a.scheme.Sign(kp.PrivateKey, data)
}

func (a *Authenticator) fail(agentID string, reason, cause error) *AuthResult {
	err := reason
	if cause != nil {
		err = fmt.Errorf("%w: %w", reason, cause)
		a.logger.Error("agent authentication error", "agent_id", agentID, "error", err)
	} else {
		a.logger.Warn("agent authentication failed", "agent_id", agentID, "reason", reason.Error())
	}
	return &AuthResult{Error: reason.Error(), Err: err}
}
