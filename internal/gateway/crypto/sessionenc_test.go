// Copyright (c) 2025 Justin Cranford

package crypto

import (
	"crypto/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptSessionBlobRoundTrip(t *testing.T) {
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)

	plaintext := []byte(`[{"id":"abc","username":"alice"}]`)
	blob, err := EncryptSessionBlob(key, plaintext)
	require.NoError(t, err)

	got, err := DecryptSessionBlob(key, blob)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestDecryptSessionBlobFailsOpenOnCorruption(t *testing.T) {
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)

	blob, err := EncryptSessionBlob(key, []byte("data"))
	require.NoError(t, err)
	blob[len(blob)-1] ^= 0xFF // flip the last ciphertext byte; the tag check fails

	_, err = DecryptSessionBlob(key, blob)
	assert.Error(t, err)
}

func TestDecryptSessionBlobTooShort(t *testing.T) {
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)

	_, err = DecryptSessionBlob(key, []byte("x"))
	assert.Error(t, err)
}

func TestLoadOrCreateMachineKeyPersistsAndReloads(t *testing.T) {
	dir := t.TempDir()

	key1, stale1, err := LoadOrCreateMachineKey(dir)
	require.NoError(t, err)
	assert.Len(t, key1, 32)
	assert.False(t, stale1)

	key2, stale2, err := LoadOrCreateMachineKey(dir)
	require.NoError(t, err)
	assert.Equal(t, key1, key2)
	assert.False(t, stale2)

	assert.FileExists(t, filepath.Join(dir, "credentials", "session-encryption-key"))
}

func TestRegenerateMachineKeyProducesNewKey(t *testing.T) {
	dir := t.TempDir()

	key1, _, err := LoadOrCreateMachineKey(dir)
	require.NoError(t, err)

	key2, err := RegenerateMachineKey(dir)
	require.NoError(t, err)
	assert.NotEqual(t, key1, key2)

	key3, _, err := LoadOrCreateMachineKey(dir)
	require.NoError(t, err)
	assert.Equal(t, key2, key3)
}
