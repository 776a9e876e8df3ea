package store

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/adamscao/agentca/internal/models"
)

// Record namespaces
const (
	CANamespace      = "ca"
	AgentsNamespace  = "agents"
	SessionNamespace = "sessions"
)

// Root authority record keys
const (
	RootKeyKey         = CANamespace + "/root.key"
	RootCertificateKey = CANamespace + "/root.crt"
	RootFingerprintKey = CANamespace + "/root.fingerprint"
)

// Per-agent record names
const (
	agentPrivateKeyName  = "private.key"
	agentCertificateName = "certificate.json"
	agentMetadataName    = "metadata.json"
)

// AgentRecordKey returns the key of one of an agent's records
func AgentRecordKey(agentID, name string) string {
	return path.Join(AgentsNamespace, agentID, name)
}

// CertStore provides typed access to root and agent records
type CertStore struct {
	backend Backend
}

// NewCertStore creates a certificate store over backend
func NewCertStore(backend Backend) *CertStore {
	return &CertStore{backend: backend}
}

// EnsureNamespaces creates the CA, agent and session namespaces
func (s *CertStore) EnsureNamespaces(ctx context.Context) error {
	for _, ns := range []string{CANamespace, AgentsNamespace, SessionNamespace} {
		if err := s.backend.EnsureNamespace(ctx, ns); err != nil {
			return err
		}
	}
	return nil
}

// RootExists reports whether the root key and root certificate records exist
func (s *CertStore) RootExists(ctx context.Context) (keyExists, certExists bool, err error) {
	keyExists, err = s.backend.Exists(ctx, RootKeyKey)
	if err != nil {
		return false, false, err
	}
	certExists, err = s.backend.Exists(ctx, RootCertificateKey)
	if err != nil {
		return false, false, err
	}
	return keyExists, certExists, nil
}

// ClaimRootKey writes the root private key only if none exists yet.
// Reports whether this caller's key became the root key.
func (s *CertStore) ClaimRootKey(ctx context.Context, privateKeyPEM []byte) (bool, error) {
	return s.backend.PutIfAbsent(ctx, RootKeyKey, privateKeyPEM)
}

// LoadRootPrivateKey returns the root private key PEM
func (s *CertStore) LoadRootPrivateKey(ctx context.Context) ([]byte, error) {
	return s.backend.Get(ctx, RootKeyKey)
}

// SaveRootCertificate writes the root certificate record
func (s *CertStore) SaveRootCertificate(ctx context.Context, cert *models.RootCertificate) error {
	return s.putJSON(ctx, RootCertificateKey, cert)
}

// LoadRootCertificateRaw returns the stored root certificate bytes
func (s *CertStore) LoadRootCertificateRaw(ctx context.Context) ([]byte, error) {
	return s.backend.Get(ctx, RootCertificateKey)
}

// LoadRootCertificate reads and decodes the root certificate record
func (s *CertStore) LoadRootCertificate(ctx context.Context) (*models.RootCertificate, error) {
	var cert models.RootCertificate
	if err := s.getJSON(ctx, RootCertificateKey, &cert); err != nil {
		return nil, err
	}
	return &cert, nil
}

// SaveRootFingerprint writes the root public key fingerprint
func (s *CertStore) SaveRootFingerprint(ctx context.Context, fingerprint string) error {
	return s.backend.Put(ctx, RootFingerprintKey, []byte(fingerprint+"\n"))
}

// LoadRootFingerprint returns the root public key fingerprint
func (s *CertStore) LoadRootFingerprint(ctx context.Context) (string, error) {
	data, err := s.backend.Get(ctx, RootFingerprintKey)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// SaveAgentPrivateKey writes an agent's private key PEM
func (s *CertStore) SaveAgentPrivateKey(ctx context.Context, agentID string, privateKeyPEM []byte) error {
	return s.backend.Put(ctx, AgentRecordKey(agentID, agentPrivateKeyName), privateKeyPEM)
}

// LoadAgentPrivateKey returns an agent's private key PEM
func (s *CertStore) LoadAgentPrivateKey(ctx context.Context, agentID string) ([]byte, error) {
	return s.backend.Get(ctx, AgentRecordKey(agentID, agentPrivateKeyName))
}

// SaveAgentCertificate writes an agent's certificate record
func (s *CertStore) SaveAgentCertificate(ctx context.Context, agentID string, cert *models.AgentCertificate) error {
	return s.putJSON(ctx, AgentRecordKey(agentID, agentCertificateName), cert)
}

// LoadAgentCertificateRaw returns the stored agent certificate bytes
func (s *CertStore) LoadAgentCertificateRaw(ctx context.Context, agentID string) ([]byte, error) {
	return s.backend.Get(ctx, AgentRecordKey(agentID, agentCertificateName))
}

// LoadAgentCertificate reads and decodes an agent's certificate record
func (s *CertStore) LoadAgentCertificate(ctx context.Context, agentID string) (*models.AgentCertificate, error) {
	var cert models.AgentCertificate
	if err := s.getJSON(ctx, AgentRecordKey(agentID, agentCertificateName), &cert); err != nil {
		return nil, err
	}
	return &cert, nil
}

// SaveAgentMetadata writes an agent's metadata record
func (s *CertStore) SaveAgentMetadata(ctx context.Context, meta *models.AgentMetadata) error {
	return s.putJSON(ctx, AgentRecordKey(meta.AgentID, agentMetadataName), meta)
}

// LoadAgentMetadata reads and decodes an agent's metadata record
func (s *CertStore) LoadAgentMetadata(ctx context.Context, agentID string) (*models.AgentMetadata, error) {
	var meta models.AgentMetadata
	if err := s.getJSON(ctx, AgentRecordKey(agentID, agentMetadataName), &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// ListAgents returns the IDs of agents with a metadata record
func (s *CertStore) ListAgents(ctx context.Context) ([]string, error) {
	keys, err := s.backend.List(ctx, AgentsNamespace)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, key := range keys {
		rest := strings.TrimPrefix(key, AgentsNamespace+"/")
		agentID, name, ok := strings.Cut(rest, "/")
		if ok && name == agentMetadataName {
			ids = append(ids, agentID)
		}
	}
	return ids, nil
}

func (s *CertStore) putJSON(ctx context.Context, key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return s.backend.Put(ctx, key, data)
}

func (s *CertStore) getJSON(ctx context.Context, key string, v any) error {
	data, err := s.backend.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}
