// Copyright (c) 2025 Justin Cranford

// Package crypto implements the gateway's cryptographic primitives: PHC
// scrypt password hashing, AES-256-GCM credential/session encryption,
// RFC 6238 TOTP with backup codes, and self-signed X.509 certificate
// minting. Per spec.md §4.1.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/scrypt"

	"github.com/CohesiumAI/openclaw-sub001/internal/shared/gatewayerr"
	"github.com/CohesiumAI/openclaw-sub001/internal/shared/magic"
)

var b64 = base64.RawURLEncoding

// HashPassword produces a PHC-style scrypt string:
// $scrypt$ln=<log2N>,r=<R>,p=<P>$<saltB64u>$<hashB64u>
func HashPassword(password string) (string, error) {
	salt := make([]byte, magic.PasswordSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", gatewayerr.Wrap(gatewayerr.KindFatal, "generate salt", err)
	}
	return hashWithSalt(password, salt)
}

func hashWithSalt(password string, salt []byte) (string, error) {
	n := 1 << magic.ScryptLogN
	key, err := scrypt.Key([]byte(password), salt, n, magic.ScryptR, magic.ScryptP, magic.PasswordHashLen)
	if err != nil {
		return "", gatewayerr.Wrap(gatewayerr.KindFatal, "derive scrypt key", err)
	}
	return fmt.Sprintf("$scrypt$ln=%d,r=%d,p=%d$%s$%s",
		magic.ScryptLogN, magic.ScryptR, magic.ScryptP,
		b64.EncodeToString(salt), b64.EncodeToString(key)), nil
}

// IsHashed reports whether s looks like an already-hashed credential value,
// per spec.md §4.1's detection helper.
func IsHashed(s string) bool {
	return strings.HasPrefix(s, "$scrypt$") || strings.HasPrefix(s, "$argon2")
}

// VerifyPassword verifies password against hash, which may be the current
// scrypt PHC encoding or a legacy argon2id PHC encoding. matched reports
// whether the password is correct; needsUpgrade reports whether the caller
// should re-hash and persist the credential in the current scheme.
func VerifyPassword(password, hash string) (matched bool, needsUpgrade bool, err error) {
	switch {
	case strings.HasPrefix(hash, "$scrypt$"):
		ok, verr := verifyScrypt(password, hash)
		return ok, false, verr
	case strings.HasPrefix(hash, "$argon2id$") || strings.HasPrefix(hash, "$argon2i$"):
		ok, verr := verifyArgon2(password, hash)
		return ok, true, verr
	default:
		return false, false, gatewayerr.New(gatewayerr.KindInvalidInput, "unrecognized password hash encoding")
	}
}

func verifyScrypt(password, hash string) (bool, error) {
	parts := strings.Split(hash, "$")
	// "", "scrypt", "ln=..,r=..,p=..", saltB64, hashB64
	if len(parts) != 5 {
		return false, nil
	}
	logN, r, p, ok := parseScryptParams(parts[2])
	if !ok {
		return false, nil
	}
	salt, err := b64.DecodeString(parts[3])
	if err != nil {
		return false, nil
	}
	want, err := b64.DecodeString(parts[4])
	if err != nil {
		return false, nil
	}

	got, err := scrypt.Key([]byte(password), salt, 1<<logN, r, p, len(want))
	if err != nil {
		return false, gatewayerr.Wrap(gatewayerr.KindFatal, "derive scrypt key", err)
	}
	if len(got) != len(want) {
		return false, nil
	}
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

func parseScryptParams(s string) (logN, r, p int, ok bool) {
	fields := strings.Split(s, ",")
	if len(fields) != 3 {
		return 0, 0, 0, false
	}
	vals := map[string]int{}
	for _, f := range fields {
		kv := strings.SplitN(f, "=", 2)
		if len(kv) != 2 {
			return 0, 0, 0, false
		}
		n, err := strconv.Atoi(kv[1])
		if err != nil {
			return 0, 0, 0, false
		}
		vals[kv[0]] = n
	}
	logN, hasLn := vals["ln"]
	r, hasR := vals["r"]
	p, hasP := vals["p"]
	if !hasLn || !hasR || !hasP {
		return 0, 0, 0, false
	}
	return logN, r, p, true
}

// legacy argon2id PHC: $argon2id$v=19$m=65536,t=3,p=2$<saltB64>$<hashB64>
func verifyArgon2(password, hash string) (bool, error) {
	parts := strings.Split(hash, "$")
	if len(parts) != 6 {
		return false, nil
	}
	var memKiB, timeCost, threads uint32
	for _, f := range strings.Split(parts[3], ",") {
		kv := strings.SplitN(f, "=", 2)
		if len(kv) != 2 {
			return false, nil
		}
		n, err := strconv.Atoi(kv[1])
		if err != nil {
			return false, nil
		}
		switch kv[0] {
		case "m":
			memKiB = uint32(n)
		case "t":
			timeCost = uint32(n)
		case "p":
			threads = uint32(n)
		}
	}
	salt, err := b64.DecodeString(parts[4])
	if err != nil {
		return false, nil
	}
	want, err := b64.DecodeString(parts[5])
	if err != nil {
		return false, nil
	}

	var got []byte
	if strings.HasPrefix(hash, "$argon2id$") {
		got = argon2.IDKey([]byte(password), salt, timeCost, memKiB, uint8(threads), uint32(len(want)))
	} else {
		got = argon2.Key([]byte(password), salt, timeCost, memKiB, uint8(threads), uint32(len(want)))
	}
	if len(got) != len(want) {
		return false, nil
	}
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
