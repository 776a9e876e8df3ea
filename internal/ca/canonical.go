package ca

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/adamscao/agentca/internal/models"
)

// encMode produces RFC 8949 core deterministic CBOR. The same record always
// encodes to the same bytes, so signatures survive a JSON round trip
// through storage.
var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("ca: CBOR encoder initialization failed: " + err.Error())
	}
}

// rootSigningBytes returns the canonical bytes covered by a root signature
func rootSigningBytes(cert *models.RootCertificate) ([]byte, error) {
	data, err := encMode.Marshal(cert.Unsigned())
	if err != nil {
		return nil, fmt.Errorf("failed to encode root certificate: %w", err)
	}
	return data, nil
}

// agentSigningBytes returns the canonical bytes covered by an agent
// certificate signature
func agentSigningBytes(cert *models.AgentCertificate) ([]byte, error) {
	data, err := encMode.Marshal(cert.Unsigned())
	if err != nil {
		return nil, fmt.Errorf("failed to encode agent certificate: %w", err)
	}
	return data, nil
}
