package sshutil

import (
	"crypto/ed25519"
	"crypto/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func newTestPublicKey(t *testing.T) ssh.PublicKey {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	sshPub, err := ssh.NewPublicKey(pub)
	require.NoError(t, err)
	return sshPub
}

func TestFingerprint_Deterministic(t *testing.T) {
	pub := newTestPublicKey(t)
	line := FormatPublicKey(pub)

	assert.True(t, strings.HasPrefix(line, "ssh-ed25519 "))
	assert.NotContains(t, line, "\n")

	fp, err := GetFingerprint(line)
	require.NoError(t, err)
	assert.Equal(t, Fingerprint(pub), fp)
	assert.True(t, strings.HasPrefix(fp, "SHA256:"))
}

func TestFingerprintMatches(t *testing.T) {
	a := FormatPublicKey(newTestPublicKey(t))
	b := FormatPublicKey(newTestPublicKey(t))

	same, err := FingerprintMatches(a, a+"\n")
	require.NoError(t, err)
	assert.True(t, same)

	same, err = FingerprintMatches(a, b)
	require.NoError(t, err)
	assert.False(t, same)

	_, err = FingerprintMatches(a, "not a key")
	assert.Error(t, err)
}
