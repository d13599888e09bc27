// Copyright (c) 2025 Justin Cranford

package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CohesiumAI/openclaw-sub001/internal/gateway/crypto"
)

func TestCredentialsEncryptThenDecryptRoundTrip(t *testing.T) {
	configPath, _ := newTestConfigFile(t)
	_, _, code := runCLI(t, "user", "create", "alice", "original-pass1", "--config", configPath)
	require.Equal(t, 0, code)

	out, _, code := runCLI(t, "credentials", "encrypt", "envelope-pass", "--config", configPath)
	require.Equal(t, 0, code)
	assert.Contains(t, out, "now encrypted")

	// With a wrong password, opening the encrypted file fails.
	t.Setenv("OPENCLAW_CREDENTIALS_PASSWORD", "wrong-password")
	_, errOut, code := runCLI(t, "user", "list", "--config", configPath)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "open credentials")

	t.Setenv("OPENCLAW_CREDENTIALS_PASSWORD", "envelope-pass")
	listOut, _, code := runCLI(t, "user", "list", "--config", configPath)
	require.Equal(t, 0, code)
	assert.Contains(t, listOut, "alice")

	decOut, _, code := runCLI(t, "credentials", "decrypt", "--config", configPath)
	require.Equal(t, 0, code)
	assert.Contains(t, decOut, "now plaintext")

	t.Setenv("OPENCLAW_CREDENTIALS_PASSWORD", "")
	afterOut, _, code := runCLI(t, "user", "list", "--config", configPath)
	require.Equal(t, 0, code)
	assert.Contains(t, afterOut, "alice")
}

func TestCredentialsRotateRegeneratesMachineKey(t *testing.T) {
	configPath, stateDir := newTestConfigFile(t)

	originalKey, _, err := crypto.LoadOrCreateMachineKey(stateDir)
	require.NoError(t, err)

	out, _, code := runCLI(t, "credentials", "rotate", "--config", configPath)
	require.Equal(t, 0, code)
	assert.Contains(t, out, "machine key rotated")

	rotatedKey, _, err := crypto.LoadOrCreateMachineKey(stateDir)
	require.NoError(t, err)
	assert.NotEqual(t, originalKey, rotatedKey)
}
