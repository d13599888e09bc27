// Copyright (c) 2025 Justin Cranford

// Package credentials implements the gateway's persisted per-user
// credential store, per spec.md §4.4.
package credentials

import (
	"time"

	"github.com/CohesiumAI/openclaw-sub001/internal/shared/magic"
)

// User is a gateway user record. Invariant: password/recovery/backup values
// are never stored in plaintext; TOTPEnabled implies TOTPSecret is set.
type User struct {
	Username          string      `json:"username"`
	PasswordHash      string      `json:"passwordHash"`
	Role              magic.Role  `json:"role"`
	RecoveryCodeHash  string      `json:"recoveryCodeHash,omitempty"`
	TOTPEnabled       bool        `json:"totpEnabled,omitempty"`
	TOTPSecret        string      `json:"totpSecret,omitempty"`
	BackupCodeHashes  []string    `json:"backupCodeHashes,omitempty"`
	LastUsedTOTPCode  string      `json:"lastUsedTotpCode,omitempty"`
	CreatedAt         time.Time   `json:"createdAt"`
	UpdatedAt         time.Time   `json:"updatedAt"`
}

// document is the on-disk (or decrypted envelope payload) shape.
type document struct {
	Version int     `json:"version"`
	Users   []*User `json:"users"`
}
