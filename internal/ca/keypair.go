package ca

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"encoding/pem"
	"fmt"

	"golang.org/x/crypto/ssh"

	"github.com/adamscao/agentca/pkg/sshutil"
)

// Supported key types
const (
	KeyTypeEd25519 = "ed25519"
	KeyTypeRSA     = "rsa"
)

const rsaKeyBits = 4096

// KeyPair represents an asymmetric key pair held by the CA or an agent
type KeyPair struct {
	PrivateKey crypto.Signer
	PublicKey  ssh.PublicKey
	KeyType    string
}

// GenerateKeyPair generates a new key pair of the given type
func GenerateKeyPair(keyType string) (*KeyPair, error) {
	var signer crypto.Signer

	switch keyType {
	case KeyTypeEd25519:
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("failed to generate ed25519 key: %w", err)
		}
		signer = priv

	case KeyTypeRSA:
		priv, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
		if err != nil {
			return nil, fmt.Errorf("failed to generate RSA key: %w", err)
		}
		signer = priv

	default:
		return nil, fmt.Errorf("unsupported key type: %s", keyType)
	}

	return newKeyPair(signer, keyType)
}

func newKeyPair(signer crypto.Signer, keyType string) (*KeyPair, error) {
	pub, err := ssh.NewPublicKey(signer.Public())
	if err != nil {
		return nil, fmt.Errorf("failed to create SSH public key: %w", err)
	}
	return &KeyPair{
		PrivateKey: signer,
		PublicKey:  pub,
		KeyType:    keyType,
	}, nil
}

// MarshalPrivateKey encodes the private key as OpenSSH PEM text
func (kp *KeyPair) MarshalPrivateKey() ([]byte, error) {
	block, err := ssh.MarshalPrivateKey(kp.PrivateKey, "")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}
	return pem.EncodeToMemory(block), nil
}

// ParsePrivateKey decodes an OpenSSH PEM private key into a key pair
func ParsePrivateKey(data []byte) (*KeyPair, error) {
	raw, err := ssh.ParseRawPrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	switch key := raw.(type) {
	case *ed25519.PrivateKey:
		return newKeyPair(*key, KeyTypeEd25519)
	case ed25519.PrivateKey:
		return newKeyPair(key, KeyTypeEd25519)
	case *rsa.PrivateKey:
		return newKeyPair(key, KeyTypeRSA)
	default:
		return nil, fmt.Errorf("unsupported private key type %T", raw)
	}
}

// GetPublicKeyString returns the public key as a single authorized_keys line
func (kp *KeyPair) GetPublicKeyString() string {
	return sshutil.FormatPublicKey(kp.PublicKey)
}

// Fingerprint returns the SHA256 fingerprint of the public key
func (kp *KeyPair) Fingerprint() string {
	return sshutil.Fingerprint(kp.PublicKey)
}
