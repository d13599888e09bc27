// Copyright (c) 2025 Justin Cranford

package crypto

import (
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/CohesiumAI/openclaw-sub001/internal/shared/gatewayerr"
	"github.com/CohesiumAI/openclaw-sub001/internal/shared/magic"
)

// GenerateBackupCodes returns n fresh backup codes drawn from
// magic.BackupCodeAlphabet, each magic.BackupCodeLen characters long.
func GenerateBackupCodes(n int) ([]string, error) {
	codes := make([]string, n)
	alphabetLen := big.NewInt(int64(len(magic.BackupCodeAlphabet)))

	for i := range codes {
		var sb strings.Builder
		for j := 0; j < magic.BackupCodeLen; j++ {
			idx, err := rand.Int(rand.Reader, alphabetLen)
			if err != nil {
				return nil, gatewayerr.Wrap(gatewayerr.KindFatal, "generate backup code", err)
			}
			sb.WriteByte(magic.BackupCodeAlphabet[idx.Int64()])
		}
		codes[i] = sb.String()
	}
	return codes, nil
}

// HashBackupCode hashes a backup code using the same PHC scrypt scheme as
// passwords, per spec.md §4.1.
func HashBackupCode(code string) (string, error) {
	return HashPassword(normalizeBackupCode(code))
}

// VerifyBackupCode checks candidate (case-insensitive) against every hash in
// hashes, returning the matched index or -1. All hashes are checked
// regardless of an early match, per spec.md §4.1, to avoid disclosing the
// matched position via timing.
func VerifyBackupCode(candidate string, hashes []string) int {
	normalized := normalizeBackupCode(candidate)
	matchIndex := -1
	for i, h := range hashes {
		matched, _, err := VerifyPassword(normalized, h)
		if err == nil && matched {
			matchIndex = i
		}
	}
	return matchIndex
}

func normalizeBackupCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
