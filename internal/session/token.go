package session

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
)

const (
	tokenLength = 32 // 32 bytes = 256 bits

	// encodedTokenLength is the base64url (unpadded) length of a token
	encodedTokenLength = 43
)

// GenerateToken generates a random, unguessable session token
func GenerateToken() (string, error) {
	bytes := make([]byte, tokenLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

// ValidateTokenFormat reports whether token has the shape of a token from
// GenerateToken. It is a structural check only and says nothing about
// whether the session exists.
func ValidateTokenFormat(token string) bool {
	if len(token) != encodedTokenLength {
		return false
	}
	decoded, err := base64.RawURLEncoding.Strict().DecodeString(token)
	return err == nil && len(decoded) == tokenLength
}

// HashToken hashes a token for logging without revealing it
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return base64.RawStdEncoding.EncodeToString(hash[:])[:12]
}

// TokensEqual compares two tokens in constant time
func TokensEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
