// Copyright (c) 2025 Justin Cranford

package crypto

import (
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateTOTPSecretVerifiesAgainstOwnGenerator(t *testing.T) {
	secret, err := GenerateTOTPSecret()
	require.NoError(t, err)

	code, err := GenerateCurrentTOTP(secret, time.Now())
	require.NoError(t, err)

	matched, ok := VerifyTOTP(secret, code, "", time.Now())
	assert.True(t, ok)
	assert.Equal(t, code, matched)
}

// TestVerifyTOTPCrossChecksPquernaOTP confirms the hand-rolled RFC 6238
// implementation agrees with a well-known third-party library, guarding
// against an HOTP truncation or counter-window bug.
func TestVerifyTOTPCrossChecksPquernaOTP(t *testing.T) {
	secret, err := GenerateTOTPSecret()
	require.NoError(t, err)

	now := time.Now()
	refCode, err := totp.GenerateCode(secret, now)
	require.NoError(t, err)

	_, ok := VerifyTOTP(secret, refCode, "", now)
	assert.True(t, ok)
}

func TestVerifyTOTPRejectsReplay(t *testing.T) {
	secret, err := GenerateTOTPSecret()
	require.NoError(t, err)
	now := time.Now()

	code, err := GenerateCurrentTOTP(secret, now)
	require.NoError(t, err)

	matched, ok := VerifyTOTP(secret, code, "", now)
	require.True(t, ok)

	_, okAgain := VerifyTOTP(secret, code, matched, now)
	assert.False(t, okAgain)
}

func TestVerifyTOTPWindowToleratesClockSkew(t *testing.T) {
	secret, err := GenerateTOTPSecret()
	require.NoError(t, err)
	now := time.Now()

	past := now.Add(-30 * time.Second)
	code, err := GenerateCurrentTOTP(secret, past)
	require.NoError(t, err)

	_, ok := VerifyTOTP(secret, code, "", now)
	assert.True(t, ok)
}

func TestVerifyTOTPRejectsOutOfWindow(t *testing.T) {
	secret, err := GenerateTOTPSecret()
	require.NoError(t, err)
	now := time.Now()

	farPast := now.Add(-5 * time.Minute)
	code, err := GenerateCurrentTOTP(secret, farPast)
	require.NoError(t, err)

	_, ok := VerifyTOTP(secret, code, "", now)
	assert.False(t, ok)
}

func TestVerifyTOTPRejectsMalformedCode(t *testing.T) {
	secret, err := GenerateTOTPSecret()
	require.NoError(t, err)

	_, ok := VerifyTOTP(secret, "abc", "", time.Now())
	assert.False(t, ok)

	_, ok = VerifyTOTP(secret, "12345", "", time.Now())
	assert.False(t, ok)
}

func TestTOTPProvisioningURIContainsSecretAndIssuer(t *testing.T) {
	uri := TOTPProvisioningURI("openclaw-gateway", "alice", "JBSWY3DPEHPK3PXP")
	assert.Contains(t, uri, "otpauth://totp/")
	assert.Contains(t, uri, "alice")
	assert.Contains(t, uri, "JBSWY3DPEHPK3PXP")
	assert.Contains(t, uri, "openclaw-gateway")
}
