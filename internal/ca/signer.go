package ca

import (
	"crypto"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/ssh"
)

// ErrSignatureMismatch is returned when a signature does not verify
var ErrSignatureMismatch = errors.New("signature verification failed")

// SignatureScheme signs and verifies byte strings. The production
// implementation is SSHScheme; tests may substitute their own.
type SignatureScheme interface {
	// Sign returns the encoded signature of data under key.
	Sign(key crypto.Signer, data []byte) (string, error)

	// Verify returns nil if signature is a valid signature of data under key.
	Verify(key ssh.PublicKey, data []byte, signature string) error
}

// SSHScheme produces base64-encoded SSH wire signatures. RSA keys sign with
// rsa-sha2-256.
type SSHScheme struct{}

// Sign signs data with key
func (SSHScheme) Sign(key crypto.Signer, data []byte) (string, error) {
	signer, err := ssh.NewSignerFromKey(key)
	if err != nil {
		return "", fmt.Errorf("failed to create signer: %w", err)
	}

	var sig *ssh.Signature
	if algSigner, ok := signer.(ssh.AlgorithmSigner); ok && signer.PublicKey().Type() == ssh.KeyAlgoRSA {
		sig, err = algSigner.SignWithAlgorithm(rand.Reader, data, ssh.KeyAlgoRSASHA256)
	} else {
		sig, err = signer.Sign(rand.Reader, data)
	}
	if err != nil {
		return "", fmt.Errorf("failed to sign data: %w", err)
	}

	return base64.StdEncoding.EncodeToString(ssh.Marshal(sig)), nil
}

// Verify checks a signature produced by Sign
func (SSHScheme) Verify(key ssh.PublicKey, data []byte, signature string) error {
	sigBytes, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("%w: invalid signature encoding: %v", ErrSignatureMismatch, err)
	}

	sig := new(ssh.Signature)
	if err := ssh.Unmarshal(sigBytes, sig); err != nil {
		return fmt.Errorf("%w: invalid signature format: %v", ErrSignatureMismatch, err)
	}

	if err := key.Verify(data, sig); err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureMismatch, err)
	}

	return nil
}
