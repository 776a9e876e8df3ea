package ca

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSSHScheme_SignVerify(t *testing.T) {
	for _, keyType := range []string{KeyTypeEd25519, KeyTypeRSA} {
		t.Run(keyType, func(t *testing.T) {
			if keyType == KeyTypeRSA && testing.Short() {
				t.Skip("RSA key generation is slow")
			}

			scheme := SSHScheme{}
			kp, err := GenerateKeyPair(keyType)
			require.NoError(t, err)

			data := []byte("challenge-1234")
			sig, err := scheme.Sign(kp.PrivateKey, data)
			require.NoError(t, err)

			require.NoError(t, scheme.Verify(kp.PublicKey, data, sig))

			err = scheme.Verify(kp.PublicKey, []byte("challenge-1235"), sig)
			assert.ErrorIs(t, err, ErrSignatureMismatch)
		})
	}
}

func TestSSHScheme_VerifyRejects(t *testing.T) {
	scheme := SSHScheme{}
	kp, err := GenerateKeyPair(KeyTypeEd25519)
	require.NoError(t, err)
	other, err := GenerateKeyPair(KeyTypeEd25519)
	require.NoError(t, err)

	data := []byte("payload")
	sig, err := scheme.Sign(kp.PrivateKey, data)
	require.NoError(t, err)

	tests := []struct {
		name      string
		signature string
	}{
		{"empty", ""},
		{"not base64", "%%%"},
		{"not a signature", "aGVsbG8="},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, scheme.Verify(kp.PublicKey, data, tt.signature), ErrSignatureMismatch)
		})
	}

	t.Run("wrong key", func(t *testing.T) {
		assert.ErrorIs(t, scheme.Verify(other.PublicKey, data, sig), ErrSignatureMismatch)
	})
}
