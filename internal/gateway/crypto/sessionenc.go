// Copyright (c) 2025 Justin Cranford

package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/CohesiumAI/openclaw-sub001/internal/shared/gatewayerr"
	"github.com/CohesiumAI/openclaw-sub001/internal/shared/magic"
)

// MachineKeyPath returns the path to the machine-generated session
// encryption key under stateDir, per spec.md §6.
func MachineKeyPath(stateDir string) string {
	return filepath.Join(stateDir, "credentials", "session-encryption-key")
}

// LoadOrCreateMachineKey loads the 32-byte machine key from
// MachineKeyPath(stateDir), generating and persisting a new one if absent or
// malformed. warnStale is true when the existing key is older than
// MachineKeyMaxAge (non-fatal, per spec.md §4.1).
func LoadOrCreateMachineKey(stateDir string) (key []byte, warnStale bool, err error) {
	path := MachineKeyPath(stateDir)

	if info, statErr := os.Stat(path); statErr == nil {
		raw, readErr := os.ReadFile(path)
		if readErr == nil {
			decoded, hexErr := hex.DecodeString(trimNewline(raw))
			if hexErr == nil && len(decoded) == magic.MachineKeyLen {
				stale := time.Since(info.ModTime()) > magic.MachineKeyMaxAge
				return decoded, stale, nil
			}
		}
	}

	key = make([]byte, magic.MachineKeyLen)
	if _, err := rand.Read(key); err != nil {
		return nil, false, gatewayerr.Wrap(gatewayerr.KindFatal, "generate machine key", err)
	}
	if err := persistMachineKey(path, key); err != nil {
		return nil, false, err
	}
	return key, false, nil
}

// RegenerateMachineKey forcibly generates and persists a new machine key,
// for the "credentials rotate" administrative primitive.
func RegenerateMachineKey(stateDir string) ([]byte, error) {
	key := make([]byte, magic.MachineKeyLen)
	if _, err := rand.Read(key); err != nil {
		return nil, gatewayerr.Wrap(gatewayerr.KindFatal, "generate machine key", err)
	}
	if err := persistMachineKey(MachineKeyPath(stateDir), key); err != nil {
		return nil, err
	}
	return key, nil
}

func persistMachineKey(path string, key []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return gatewayerr.Wrap(gatewayerr.KindIO, "create credentials dir", err)
	}
	encoded := hex.EncodeToString(key) + "\n"
	if err := os.WriteFile(path, []byte(encoded), 0o600); err != nil {
		return gatewayerr.Wrap(gatewayerr.KindIO, "write machine key", err)
	}
	return nil
}

func trimNewline(b []byte) string {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return string(b)
}

// EncryptSessionBlob encrypts plaintext under key, producing
// IV‖tag‖ciphertext per spec.md §4.1/§4.6.
func EncryptSessionBlob(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, gatewayerr.Wrap(gatewayerr.KindFatal, "new aes cipher", err)
	}
	gcm, err := cipher.NewGCMWithTagSize(block, magic.SessionAESTagLen)
	if err != nil {
		return nil, gatewayerr.Wrap(gatewayerr.KindFatal, "new gcm", err)
	}

	iv := make([]byte, magic.SessionAESIVLen)
	if _, err := rand.Read(iv); err != nil {
		return nil, gatewayerr.Wrap(gatewayerr.KindFatal, "generate iv", err)
	}

	// gcm.Seal returns ciphertext‖tag; reorder to IV‖tag‖ciphertext.
	sealed := gcm.Seal(nil, iv, plaintext, nil)
	ctLen := len(sealed) - magic.SessionAESTagLen
	out := make([]byte, 0, len(iv)+len(sealed))
	out = append(out, iv...)
	out = append(out, sealed[ctLen:]...)
	out = append(out, sealed[:ctLen]...)
	return out, nil
}

// errShortBlob is returned by DecryptSessionBlob, unwrapped, when a session
// blob is too short to contain IV+tag; callers treat it like any other
// decrypt error and fail open.
var errShortBlob = errors.New("session blob too short")

// DecryptSessionBlob decrypts a blob produced by EncryptSessionBlob. Per
// spec.md §4.1, callers MUST treat any error as "fail open to empty" rather
// than propagating a fatal condition.
func DecryptSessionBlob(key, blob []byte) ([]byte, error) {
	if len(blob) < magic.SessionAESIVLen+magic.SessionAESTagLen {
		return nil, errShortBlob
	}
	iv := blob[:magic.SessionAESIVLen]
	tag := blob[magic.SessionAESIVLen : magic.SessionAESIVLen+magic.SessionAESTagLen]
	// gcm.Open expects ciphertext‖tag.
	sealed := make([]byte, 0, len(blob)-magic.SessionAESIVLen)
	sealed = append(sealed, blob[magic.SessionAESIVLen+magic.SessionAESTagLen:]...)
	sealed = append(sealed, tag...)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, gatewayerr.Wrap(gatewayerr.KindFatal, "new aes cipher", err)
	}
	gcm, err := cipher.NewGCMWithTagSize(block, magic.SessionAESTagLen)
	if err != nil {
		return nil, gatewayerr.Wrap(gatewayerr.KindFatal, "new gcm", err)
	}

	plaintext, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, gatewayerr.Wrap(gatewayerr.KindCorrupt, "decrypt session blob", err)
	}
	return plaintext, nil
}
