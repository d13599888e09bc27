// Copyright (c) 2025 Justin Cranford

package crypto

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1" //nolint:gosec // HOTP/TOTP (RFC 4226/6238) mandates SHA-1
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/CohesiumAI/openclaw-sub001/internal/shared/gatewayerr"
	"github.com/CohesiumAI/openclaw-sub001/internal/shared/magic"
)

var base32NoPad = base32.StdEncoding.WithPadding(base32.NoPadding)

// GenerateTOTPSecret returns a fresh 20-byte secret, base32-encoded per
// RFC 4648 without padding.
func GenerateTOTPSecret() (string, error) {
	raw := make([]byte, magic.TOTPSecretLen)
	if _, err := rand.Read(raw); err != nil {
		return "", gatewayerr.Wrap(gatewayerr.KindFatal, "generate totp secret", err)
	}
	return base32NoPad.EncodeToString(raw), nil
}

// TOTPProvisioningURI builds the otpauth:// URI for authenticator app
// enrolment, per spec.md §6.
func TOTPProvisioningURI(issuer, username, secret string) string {
	return fmt.Sprintf("otpauth://totp/%s:%s?secret=%s&issuer=%s&algorithm=SHA1&digits=6&period=30",
		issuer, username, secret, issuer)
}

// hotp computes the HOTP value (RFC 4226) for secret at counter.
func hotp(secretRaw []byte, counter uint64) string {
	msg := make([]byte, 8)
	binary.BigEndian.PutUint64(msg, counter)

	mac := hmac.New(sha1.New, secretRaw)
	mac.Write(msg)
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	truncated := (uint32(sum[offset])&0x7f)<<24 |
		(uint32(sum[offset+1])&0xff)<<16 |
		(uint32(sum[offset+2])&0xff)<<8 |
		(uint32(sum[offset+3]) & 0xff)

	mod := uint32(1)
	for i := 0; i < magic.TOTPDigits; i++ {
		mod *= 10
	}
	code := truncated % mod
	return fmt.Sprintf("%0*d", magic.TOTPDigits, code)
}

func totpCounter(t time.Time) uint64 {
	return uint64(t.Unix()) / uint64(magic.TOTPPeriod.Seconds())
}

// GenerateCurrentTOTP returns the current TOTP code for secret at time t
// (t=zero value uses time.Now()).
func GenerateCurrentTOTP(secret string, t time.Time) (string, error) {
	if t.IsZero() {
		t = time.Now()
	}
	raw, err := decodeTOTPSecret(secret)
	if err != nil {
		return "", err
	}
	return hotp(raw, totpCounter(t)), nil
}

// VerifyTOTP validates code against secret at time t, scanning offsets
// [-1, 0, +1] periods per spec.md §4.1. lastUsedCode implements anti-replay:
// if code equals lastUsedCode, verification fails even though the code is
// otherwise valid. On success, returns the matched code; callers MUST
// persist it as the new lastUsedTotpCode. Malformed code (length != 6 or
// non-digit) is rejected without constant-time handling, as it is public
// input (the attacker already knows code).
func VerifyTOTP(secret, code, lastUsedCode string, t time.Time) (matchedCode string, ok bool) {
	if !isSixDigits(code) {
		return "", false
	}
	if lastUsedCode != "" && code == lastUsedCode {
		return "", false
	}

	raw, err := decodeTOTPSecret(secret)
	if err != nil {
		return "", false
	}
	if t.IsZero() {
		t = time.Now()
	}
	counter := totpCounter(t)

	for offset := magic.TOTPWindowLow; offset <= magic.TOTPWindowHigh; offset++ {
		c := counter
		if offset < 0 {
			c -= uint64(-offset)
		} else {
			c += uint64(offset)
		}
		candidate := hotp(raw, c)
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(code)) == 1 {
			return code, true
		}
	}
	return "", false
}

func isSixDigits(s string) bool {
	if len(s) != magic.TOTPDigits {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func decodeTOTPSecret(secret string) ([]byte, error) {
	clean := strings.ToUpper(strings.TrimSpace(strings.ReplaceAll(secret, " ", "")))
	raw, err := base32NoPad.DecodeString(strings.TrimRight(clean, "="))
	if err != nil {
		return nil, gatewayerr.Wrap(gatewayerr.KindInvalidInput, "invalid totp secret encoding", err)
	}
	return raw, nil
}
