package ca

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/adamscao/agentca/internal/clock"
	"github.com/adamscao/agentca/internal/models"
	"github.com/adamscao/agentca/internal/policy"
	"github.com/adamscao/agentca/internal/store"
	"github.com/adamscao/agentca/pkg/sshutil"
)

// DefaultAgentValidity is the fixed lifetime of an agent certificate
const DefaultAgentValidity = 90 * 24 * time.Hour

// Errors returned by the certificate authority
var (
	ErrInitialization   = errors.New("certificate authority initialization failed")
	ErrNotInitialized   = errors.New("certificate authority is not initialized")
	ErrRootExists       = errors.New("root certificate already exists")
	ErrInvalidAgentID   = errors.New("agentId must be a non-empty string")
	ErrInvalidAgentType = errors.New("invalid agentType")
)

// Options configures an Authority
type Options struct {
	KeyType       string
	CommonName    string
	Organization  string
	Country       string
	AgentValidity time.Duration

	// Scheme signs certificates. Defaults to SSHScheme.
	Scheme SignatureScheme
	// Clock defaults to clock.Real().
	Clock clock.Clock
}

// DefaultOptions returns the options used when none are configured
func DefaultOptions() Options {
	return Options{
		KeyType:       KeyTypeEd25519,
		CommonName:    "Agent Root CA",
		Organization:  "Agent Authority",
		Country:       "US",
		AgentValidity: DefaultAgentValidity,
	}
}

// InitResult describes the outcome of Initialize
type InitResult struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Generated bool   `json:"generated"`
}

// IssuedCertificate is returned to the caller of GenerateAgentCertificate.
// It never carries the agent's private key.
type IssuedCertificate struct {
	AgentID     string                   `json:"agent_id"`
	Certificate *models.AgentCertificate `json:"certificate"`
	Fingerprint string                   `json:"fingerprint"`
	ExpiresAt   time.Time                `json:"expires_at"`
}

// Authority owns the root key material and issues agent certificates
type Authority struct {
	certs    *store.CertStore
	registry *policy.Registry
	opts     Options
	logger   *slog.Logger

	mu      sync.Mutex
	rootKey *KeyPair
	root    *models.RootCertificate
}

// NewAuthority creates a certificate authority over the given store
func NewAuthority(certs *store.CertStore, registry *policy.Registry, opts Options, logger *slog.Logger) *Authority {
	defaults := DefaultOptions()
	if opts.KeyType == "" {
		opts.KeyType = defaults.KeyType
	}
	if opts.CommonName == "" {
		opts.CommonName = defaults.CommonName
	}
	if opts.Organization == "" {
		opts.Organization = defaults.Organization
	}
	if opts.Country == "" {
		opts.Country = defaults.Country
	}
	if opts.AgentValidity <= 0 {
		opts.AgentValidity = defaults.AgentValidity
	}
	if opts.Scheme == nil {
		opts.Scheme = SSHScheme{}
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if registry == nil {
		registry = policy.NewRegistry(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Authority{
		certs:    certs,
		registry: registry,
		opts:     opts,
		logger:   logger,
	}
}

// Scheme returns the signature scheme used by the authority
func (a *Authority) Scheme() SignatureScheme {
	return a.opts.Scheme
}

// RootSubject returns the subject of the root certificate this authority
// generates
func (a *Authority) RootSubject() string {
	return fmt.Sprintf("CN=%s,O=%s,C=%s", a.opts.CommonName, a.opts.Organization, a.opts.Country)
}

// Initialize ensures the storage namespaces exist and generates the root
// certificate if neither root record is present. A partially present root
// is left untouched.
func (a *Authority) Initialize(ctx context.Context) (*InitResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.certs.EnsureNamespaces(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInitialization, err)
	}

	keyExists, certExists, err := a.certs.RootExists(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInitialization, err)
	}
	if keyExists || certExists {
		if !(keyExists && certExists) {
			a.logger.Warn("root authority is incomplete, not regenerating",
				"key_exists", keyExists, "cert_exists", certExists)
		}
		return &InitResult{Success: true, Message: "certificate authority already initialized"}, nil
	}

	if _, err := a.generateCACertificate(ctx); err != nil {
		if errors.Is(err, ErrRootExists) {
			return &InitResult{Success: true, Message: "certificate authority already initialized"}, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrInitialization, err)
	}

	return &InitResult{Success: true, Generated: true, Message: "certificate authority initialized"}, nil
}

// GenerateCACertificate creates the self-signed root. It fails with
// ErrRootExists if a root key is already stored.
func (a *Authority) GenerateCACertificate(ctx context.Context) (*models.RootCertificate, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.generateCACertificate(ctx)
}

func (a *Authority) generateCACertificate(ctx context.Context) (*models.RootCertificate, error) {
	kp, err := GenerateKeyPair(a.opts.KeyType)
	if err != nil {
		return nil, err
	}

	privateKey, err := kp.MarshalPrivateKey()
	if err != nil {
		return nil, err
	}

	subject := a.RootSubject()
	root := &models.RootCertificate{
		Version:          models.CertificateVersion,
		SerialNumber:     uuid.NewString(),
		Subject:          subject,
		Issuer:           subject,
		PublicKey:        kp.GetPublicKeyString(),
		KeyType:          kp.KeyType,
		IssuedAt:         a.now(),
		IsCA:             true,
		KeyUsage:         []string{models.KeyUsageDigitalSignature, models.KeyUsageKeyCertSign},
		BasicConstraints: models.BasicConstraints{CA: true},
	}

	payload, err := rootSigningBytes(root)
	if err != nil {
		return nil, err
	}
	root.Signature, err = a.opts.Scheme.Sign(kp.PrivateKey, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to sign root certificate: %w", err)
	}

	// The key record is the claim on the trust anchor: only the writer that
	// creates it goes on to publish a certificate.
	claimed, err := a.certs.ClaimRootKey(ctx, privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to save root private key: %w", err)
	}
	if !claimed {
		return nil, ErrRootExists
	}

	if err := a.certs.SaveRootCertificate(ctx, root); err != nil {
		return nil, fmt.Errorf("failed to save root certificate: %w", err)
	}
	if err := a.certs.SaveRootFingerprint(ctx, kp.Fingerprint()); err != nil {
		return nil, fmt.Errorf("failed to save root fingerprint: %w", err)
	}

	a.rootKey = kp
	a.root = root

	a.logger.Info("generated root certificate",
		"subject", root.Subject,
		"serial", root.SerialNumber,
		"fingerprint", kp.Fingerprint())

	return root, nil
}

// RootCertificate returns the stored root certificate
func (a *Authority) RootCertificate(ctx context.Context) (*models.RootCertificate, error) {
	root, err := a.certs.LoadRootCertificate(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotInitialized
	}
	return root, err
}

// RootFingerprint returns the stored root public key fingerprint
func (a *Authority) RootFingerprint(ctx context.Context) (string, error) {
	fp, err := a.certs.LoadRootFingerprint(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrNotInitialized
	}
	return fp, err
}

// GenerateAgentCertificate issues a certificate for agentID signed by the
// root. The agent's key, certificate and metadata are stored under the
// agent's namespace; metadata is written last.
func (a *Authority) GenerateAgentCertificate(ctx context.Context, agentID, agentType string) (*IssuedCertificate, error) {
	if err := ValidateAgentID(agentID); err != nil {
		return nil, err
	}
	if err := validateSubjectField(ErrInvalidAgentType, "agentType", agentType); err != nil {
		return nil, err
	}

	rootKey, root, err := a.loadRoot(ctx)
	if err != nil {
		return nil, err
	}

	kp, err := GenerateKeyPair(a.opts.KeyType)
	if err != nil {
		return nil, err
	}
	privateKey, err := kp.MarshalPrivateKey()
	if err != nil {
		return nil, err
	}

	now := a.now()
	subject := fmt.Sprintf("CN=%s,OU=%s,O=%s,C=%s", agentID, agentType, a.opts.Organization, a.opts.Country)
	cert := &models.AgentCertificate{
		Version:      models.CertificateVersion,
		SerialNumber: uuid.NewString(),
		Subject:      subject,
		Issuer:       root.Subject,
		PublicKey:    kp.GetPublicKeyString(),
		KeyType:      kp.KeyType,
		IssuedAt:     now,
	}

	payload, err := agentSigningBytes(cert)
	if err != nil {
		return nil, err
	}
	cert.Signature, err = a.opts.Scheme.Sign(rootKey.PrivateKey, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to sign agent certificate: %w", err)
	}

	meta := &models.AgentMetadata{
		AgentID:     agentID,
		AgentType:   agentType,
		CreatedAt:   now,
		ExpiresAt:   now.Add(a.opts.AgentValidity),
		Permissions: a.registry.DefaultPermissions(agentType),
	}

	if err := a.certs.SaveAgentPrivateKey(ctx, agentID, privateKey); err != nil {
		return nil, fmt.Errorf("failed to save agent private key: %w", err)
	}
	if err := a.certs.SaveAgentCertificate(ctx, agentID, cert); err != nil {
		return nil, fmt.Errorf("failed to save agent certificate: %w", err)
	}
	if err := a.certs.SaveAgentMetadata(ctx, meta); err != nil {
		return nil, fmt.Errorf("failed to save agent metadata: %w", err)
	}

	a.logger.Info("issued agent certificate",
		"agent_id", agentID,
		"agent_type", agentType,
		"serial", cert.SerialNumber,
		"expires_at", meta.ExpiresAt)

	return &IssuedCertificate{
		AgentID:     agentID,
		Certificate: cert,
		Fingerprint: kp.Fingerprint(),
		ExpiresAt:   meta.ExpiresAt,
	}, nil
}

// loadRoot returns the root key pair and certificate, caching them after
// the first successful load
func (a *Authority) loadRoot(ctx context.Context) (*KeyPair, *models.RootCertificate, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.rootKey != nil && a.root != nil {
		return a.rootKey, a.root, nil
	}

	keyPEM, err := a.certs.LoadRootPrivateKey(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, ErrNotInitialized
	}
	if err != nil {
		return nil, nil, err
	}
	root, err := a.certs.LoadRootCertificate(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, ErrNotInitialized
	}
	if err != nil {
		return nil, nil, err
	}

	kp, err := ParsePrivateKey(keyPEM)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load root key: %w", err)
	}
	if match, err := sshutil.FingerprintMatches(kp.GetPublicKeyString(), root.PublicKey); err != nil || !match {
		return nil, nil, fmt.Errorf("%w: root key does not match root certificate", ErrInvalidChain)
	}
	if err := VerifyRoot(a.opts.Scheme, root); err != nil {
		return nil, nil, err
	}

	a.rootKey = kp
	a.root = root
	return kp, root, nil
}

func (a *Authority) now() time.Time {
	return a.opts.Clock.Now().UTC().Truncate(time.Second)
}

// ValidateAgentID checks that agentID is usable as an identity and as a
// storage namespace
func ValidateAgentID(agentID string) error {
	if strings.TrimSpace(agentID) == "" {
		return ErrInvalidAgentID
	}
	if agentID != strings.TrimSpace(agentID) {
		return fmt.Errorf("%w: agentId must not have leading or trailing whitespace", ErrInvalidAgentID)
	}
	if agentID == "." || agentID == ".." || strings.ContainsAny(agentID, `/\`) {
		return fmt.Errorf("%w: agentId must not contain path separators or be a relative path", ErrInvalidAgentID)
	}
	return validateSubjectField(ErrInvalidAgentID, "agentId", agentID)
}

// validateSubjectField rejects values that would make a subject ambiguous
func validateSubjectField(sentinel error, name, value string) error {
	if strings.ContainsAny(value, ",=+\"") {
		return fmt.Errorf("%w: %s must not contain ',', '=', '+' or '\"'", sentinel, name)
	}
	for _, r := range value {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: %s must not contain control characters", sentinel, name)
		}
	}
	return nil
}
