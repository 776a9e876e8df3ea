package ca

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/adamscao/agentca/internal/models"
	"github.com/adamscao/agentca/pkg/sshutil"
)

// ErrInvalidChain is returned when an agent certificate does not chain to the root
var ErrInvalidChain = errors.New("invalid certificate chain")

// VerifyCertificateChain reports whether the serialized agent certificate
// was issued by the serialized root certificate. It never panics; any
// parse failure or mismatch yields false.
func VerifyCertificateChain(scheme SignatureScheme, agentCertificate, rootCertificate []byte) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	var agent models.AgentCertificate
	if err := json.Unmarshal(agentCertificate, &agent); err != nil {
		return false
	}
	var root models.RootCertificate
	if err := json.Unmarshal(rootCertificate, &root); err != nil {
		return false
	}
	return VerifyChain(scheme, &agent, &root) == nil
}

// VerifyChain checks that agent names root as its issuer and carries a
// signature by the root key over its canonical fields. Errors wrap
// ErrInvalidChain.
func VerifyChain(scheme SignatureScheme, agent *models.AgentCertificate, root *models.RootCertificate) error {
	if scheme == nil || agent == nil || root == nil {
		return fmt.Errorf("%w: missing certificate", ErrInvalidChain)
	}
	if root.Subject == "" || agent.Issuer != root.Subject {
		return fmt.Errorf("%w: issuer %q does not match root subject", ErrInvalidChain, agent.Issuer)
	}
	if !root.IsCA || !root.BasicConstraints.CA || !slices.Contains(root.KeyUsage, models.KeyUsageKeyCertSign) {
		return fmt.Errorf("%w: root is not a certificate authority", ErrInvalidChain)
	}

	rootKey, err := sshutil.ParsePublicKey(root.PublicKey)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidChain, err)
	}

	payload, err := agentSigningBytes(agent)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidChain, err)
	}
	if err := scheme.Verify(rootKey, payload, agent.Signature); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidChain, err)
	}

	return nil
}

// VerifyRoot checks the self-signature of a root certificate
func VerifyRoot(scheme SignatureScheme, root *models.RootCertificate) error {
	if root.Issuer != root.Subject {
		return fmt.Errorf("%w: root is not self-issued", ErrInvalidChain)
	}
	rootKey, err := sshutil.ParsePublicKey(root.PublicKey)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidChain, err)
	}
	payload, err := rootSigningBytes(root)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidChain, err)
	}
	if err := scheme.Verify(rootKey, payload, root.Signature); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidChain, err)
	}
	return nil
}
