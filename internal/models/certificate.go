package models

import "time"

// Key usages carried by certificates
const (
	KeyUsageDigitalSignature = "digitalSignature"
	KeyUsageKeyCertSign      = "keyCertSign"
)

// CertificateVersion is the record format version written at issuance
const CertificateVersion = 1

// BasicConstraints marks whether a certificate may sign other certificates
type BasicConstraints struct {
	CA bool `json:"cA"`
}

// RootCertificate is the self-signed trust anchor of a deployment
type RootCertificate struct {
	Version          int              `json:"version"`
	SerialNumber     string           `json:"serial_number"`
	Subject          string           `json:"subject"`
	Issuer           string           `json:"issuer"`
	PublicKey        string           `json:"public_key"` // authorized_keys format
	KeyType          string           `json:"key_type"`
	IssuedAt         time.Time        `json:"issued_at"`
	IsCA             bool             `json:"is_ca"`
	KeyUsage         []string         `json:"key_usage"`
	BasicConstraints BasicConstraints `json:"basic_constraints"`
	Signature        string           `json:"signature,omitempty"`
}

// Unsigned returns a copy of the certificate without its signature
func (c RootCertificate) Unsigned() RootCertificate {
	c.Signature = ""
	c.KeyUsage = append([]string(nil), c.KeyUsage...)
	return c
}

// AgentCertificate binds an agent identity to a public key, signed by the root
type AgentCertificate struct {
	Version      int       `json:"version"`
	SerialNumber string    `json:"serial_number"`
	Subject      string    `json:"subject"`
	Issuer       string    `json:"issuer"`
	PublicKey    string    `json:"public_key"` // authorized_keys format
	KeyType      string    `json:"key_type"`
	IssuedAt     time.Time `json:"issued_at"`
	Signature    string    `json:"signature,omitempty"`
}

// Unsigned returns a copy of the certificate without its signature
func (c AgentCertificate) Unsigned() AgentCertificate {
	c.Signature = ""
	return c
}

// AgentMetadata holds the lifetime and permissions baked in at issuance
type AgentMetadata struct {
	AgentID     string    `json:"agent_id"`
	AgentType   string    `json:"agent_type"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Permissions []string  `json:"permissions"`
}

// IsExpired reports whether the metadata lifetime has ended at now
func (m *AgentMetadata) IsExpired(now time.Time) bool {
	return !m.ExpiresAt.After(now)
}
