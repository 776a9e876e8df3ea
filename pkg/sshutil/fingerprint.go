package sshutil

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/ssh"
)

// Fingerprint calculates the SHA256 fingerprint of an SSH public key
func Fingerprint(pubkey ssh.PublicKey) string {
	hash := sha256.Sum256(pubkey.Marshal())
	return "SHA256:" + base64.RawStdEncoding.EncodeToString(hash[:])
}

// GetFingerprint parses an authorized_keys line and returns its fingerprint
func GetFingerprint(pubkeyStr string) (string, error) {
	pubkey, err := ParsePublicKey(pubkeyStr)
	if err != nil {
		return "", err
	}
	return Fingerprint(pubkey), nil
}

// ParsePublicKey parses a public key in authorized_keys format
func ParsePublicKey(pubkeyStr string) (ssh.PublicKey, error) {
	pubkey, _, _, _, err := ssh.ParseAuthorizedKey([]byte(strings.TrimSpace(pubkeyStr)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	return pubkey, nil
}

// FormatPublicKey renders a public key as a single authorized_keys line
// without the trailing newline
func FormatPublicKey(pubkey ssh.PublicKey) string {
	return strings.TrimSpace(string(ssh.MarshalAuthorizedKey(pubkey)))
}

// FingerprintMatches checks if two public keys have the same fingerprint
func FingerprintMatches(pubkey1, pubkey2 string) (bool, error) {
	fp1, err := GetFingerprint(pubkey1)
	if err != nil {
		return false, err
	}

	fp2, err := GetFingerprint(pubkey2)
	if err != nil {
		return false, err
	}

	return fp1 == fp2, nil
}
