package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTOTP(t *testing.T) {
	secret, err := GenerateTOTPSecret("")
	require.NoError(t, err)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	code, err := totp.GenerateCode(secret, now)
	require.NoError(t, err)

	valid, err := ValidateTOTP(secret, code, now)
	require.NoError(t, err)
	assert.True(t, valid)

	valid, err = ValidateTOTP(secret, code, now.Add(30*time.Second))
	require.NoError(t, err)
	assert.True(t, valid, "one window of skew is accepted")

	valid, err = ValidateTOTP(secret, code, now.Add(5*time.Minute))
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestGenerateQRCodeURL(t *testing.T) {
	u := GenerateQRCodeURL("SECRET", "ops admin", "")
	assert.True(t, strings.HasPrefix(u, "otpauth://totp/Agent-CA:ops+admin?"))
	assert.Contains(t, u, "secret=SECRET")
	assert.Contains(t, u, "issuer=Agent-CA")
}
