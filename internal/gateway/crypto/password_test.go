// Copyright (c) 2025 Justin Cranford

package crypto

import (
	"fmt"
	"strings"
	"testing"

	"golang.org/x/crypto/argon2"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CohesiumAI/openclaw-sub001/internal/shared/magic"
)

// legacyArgon2idForTest builds a real argon2id PHC string in the encoding
// verifyArgon2 expects, standing in for a credential created before the
// scrypt migration.
func legacyArgon2idForTest(t *testing.T, password string) string {
	t.Helper()
	salt := []byte("0123456789abcdef")
	const memKiB, timeCost, threads = 65536, 3, 2
	key := argon2.IDKey([]byte(password), salt, timeCost, memKiB, threads, magic.PasswordHashLen)
	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		memKiB, timeCost, threads, b64.EncodeToString(salt), b64.EncodeToString(key))
}

func TestHashPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$scrypt$"))

	matched, needsUpgrade, err := VerifyPassword("correct horse battery staple", hash)
	require.NoError(t, err)
	assert.True(t, matched)
	assert.False(t, needsUpgrade)
}

func TestHashPasswordWrongPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)

	matched, _, err := VerifyPassword("wrong password", hash)
	require.NoError(t, err)
	assert.False(t, matched)
}

func TestHashPasswordUniqueSaltPerCall(t *testing.T) {
	h1, err := HashPassword("same password")
	require.NoError(t, err)
	h2, err := HashPassword("same password")
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestVerifyPasswordLegacyArgon2idUpgrades(t *testing.T) {
	hash := legacyArgon2idForTest(t, "hunter2")

	matched, needsUpgrade, err := VerifyPassword("hunter2", hash)
	require.NoError(t, err)
	assert.True(t, matched)
	assert.True(t, needsUpgrade)
}

func TestVerifyPasswordUnrecognizedEncoding(t *testing.T) {
	_, _, err := VerifyPassword("anything", "not-a-phc-string")
	assert.Error(t, err)
}

func TestIsHashed(t *testing.T) {
	assert.True(t, IsHashed("$scrypt$ln=14,r=8,p=1$salt$hash"))
	assert.True(t, IsHashed("$argon2id$v=19$m=65536,t=3,p=2$salt$hash"))
	assert.False(t, IsHashed("plaintext"))
}
