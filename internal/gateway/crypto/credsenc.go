// Copyright (c) 2025 Justin Cranford

package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"

	"golang.org/x/crypto/scrypt"

	"github.com/CohesiumAI/openclaw-sub001/internal/shared/gatewayerr"
	"github.com/CohesiumAI/openclaw-sub001/internal/shared/magic"
)

// CredentialsEnvelope is the on-disk encrypted wrapper for the credentials
// file, per spec.md §4.1 and §6.
type CredentialsEnvelope struct {
	Version   int    `json:"version"`
	Encrypted bool   `json:"encrypted"`
	Salt      string `json:"salt"`     // hex, 32 bytes
	IV        string `json:"iv"`       // hex, 12 bytes
	AuthTag   string `json:"authTag"`  // hex, 16 bytes
	Data      string `json:"data"`     // base64 ciphertext
}

// EncryptCredentials encrypts plaintext (the serialized credentials JSON)
// with a key derived from password via scrypt, producing a fresh
// salt+IV envelope on every call.
func EncryptCredentials(password string, plaintext []byte) (*CredentialsEnvelope, error) {
	salt := make([]byte, magic.CredsSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, gatewayerr.Wrap(gatewayerr.KindFatal, "generate salt", err)
	}
	iv := make([]byte, magic.CredsIVLen)
	if _, err := rand.Read(iv); err != nil {
		return nil, gatewayerr.Wrap(gatewayerr.KindFatal, "generate iv", err)
	}

	key, err := deriveCredsKey(password, salt)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, gatewayerr.Wrap(gatewayerr.KindFatal, "new aes cipher", err)
	}
	gcm, err := cipher.NewGCMWithTagSize(block, magic.CredsTagLen)
	if err != nil {
		return nil, gatewayerr.Wrap(gatewayerr.KindFatal, "new gcm", err)
	}

	sealed := gcm.Seal(nil, iv, plaintext, nil)
	ct := sealed[:len(sealed)-magic.CredsTagLen]
	tag := sealed[len(sealed)-magic.CredsTagLen:]

	return &CredentialsEnvelope{
		Version:   1,
		Encrypted: true,
		Salt:      hex.EncodeToString(salt),
		IV:        hex.EncodeToString(iv),
		AuthTag:   hex.EncodeToString(tag),
		Data:      base64.StdEncoding.EncodeToString(ct),
	}, nil
}

// DecryptCredentials decrypts an envelope with password, returning
// KindCorrupt (mapped externally to Unauthenticated, per spec.md §7) on any
// auth-tag mismatch or malformed field.
func DecryptCredentials(password string, env *CredentialsEnvelope) ([]byte, error) {
	salt, err := hex.DecodeString(env.Salt)
	if err != nil {
		return nil, gatewayerr.Wrap(gatewayerr.KindCorrupt, "decode salt", err)
	}
	iv, err := hex.DecodeString(env.IV)
	if err != nil {
		return nil, gatewayerr.Wrap(gatewayerr.KindCorrupt, "decode iv", err)
	}
	tag, err := hex.DecodeString(env.AuthTag)
	if err != nil {
		return nil, gatewayerr.Wrap(gatewayerr.KindCorrupt, "decode auth tag", err)
	}
	ct, err := base64.StdEncoding.DecodeString(env.Data)
	if err != nil {
		return nil, gatewayerr.Wrap(gatewayerr.KindCorrupt, "decode ciphertext", err)
	}

	key, err := deriveCredsKey(password, salt)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, gatewayerr.Wrap(gatewayerr.KindFatal, "new aes cipher", err)
	}
	gcm, err := cipher.NewGCMWithTagSize(block, magic.CredsTagLen)
	if err != nil {
		return nil, gatewayerr.Wrap(gatewayerr.KindFatal, "new gcm", err)
	}

	sealed := append(ct, tag...)
	plaintext, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, gatewayerr.Wrap(gatewayerr.KindCorrupt, "decrypt failed", err)
	}
	return plaintext, nil
}

func deriveCredsKey(password string, salt []byte) ([]byte, error) {
	key, err := scrypt.Key([]byte(password), salt, 1<<magic.ScryptLogN, magic.ScryptR, magic.ScryptP, magic.CredsFileKeyLen)
	if err != nil {
		return nil, gatewayerr.Wrap(gatewayerr.KindFatal, "derive creds key", err)
	}
	return key, nil
}

// ParseEnvelope attempts to interpret raw as a CredentialsEnvelope. ok is
// false when raw does not look like an envelope (e.g. plaintext user list),
// in which case callers should treat raw as plaintext credentials JSON.
func ParseEnvelope(raw []byte) (env *CredentialsEnvelope, ok bool) {
	var probe struct {
		Version   int  `json:"version"`
		Encrypted bool `json:"encrypted"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, false
	}
	if !probe.Encrypted {
		return nil, false
	}
	env = &CredentialsEnvelope{}
	if err := json.Unmarshal(raw, env); err != nil {
		return nil, false
	}
	return env, true
}
