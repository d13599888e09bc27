// Copyright (c) 2025 Justin Cranford

package credentials

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/CohesiumAI/openclaw-sub001/internal/gateway/crypto"
	"github.com/CohesiumAI/openclaw-sub001/internal/shared/gatewayerr"
	"github.com/CohesiumAI/openclaw-sub001/internal/shared/magic"
)

// Store is the persisted, process-serialized user credential store. File
// writes are serialized per state directory via mu, per spec.md §5.
type Store struct {
	mu       sync.Mutex
	path     string
	password string // non-empty when the on-disk file is an encrypted envelope
	users    map[string]*User
	order    []string // case-folded usernames, insertion order, for List()
}

func usersFilePath(stateDir string) string {
	return filepath.Join(stateDir, "credentials", "gateway-users.json")
}

// Open loads the credentials file at <stateDir>/credentials/gateway-users.json.
// password is required only if the file is an encrypted envelope; pass "" for
// a plaintext file. A missing file starts an empty store.
func Open(stateDir, password string) (*Store, error) {
	s := &Store{
		path:     usersFilePath(stateDir),
		password: password,
		users:    make(map[string]*User),
	}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, gatewayerr.Wrap(gatewayerr.KindIO, "read credentials file", err)
	}

	plaintext := raw
	if env, ok := crypto.ParseEnvelope(raw); ok {
		plaintext, err = crypto.DecryptCredentials(password, env)
		if err != nil {
			return nil, gatewayerr.Wrap(gatewayerr.KindCorrupt, "decrypt credentials file", err)
		}
	}

	var doc document
	if err := json.Unmarshal(plaintext, &doc); err != nil {
		return nil, gatewayerr.Wrap(gatewayerr.KindCorrupt, "parse credentials file", err)
	}
	for _, u := range doc.Users {
		key := crypto.FoldUsername(u.Username)
		s.users[key] = u
		s.order = append(s.order, key)
	}
	return s, nil
}

// List returns all users, case-preserving, in creation order.
func (s *Store) List() []*User {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*User, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, cloneUser(s.users[key]))
	}
	return out
}

// Get returns the user matching username (case-insensitive), or nil.
func (s *Store) Get(username string) *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[crypto.FoldUsername(username)]
	if !ok {
		return nil
	}
	return cloneUser(u)
}

// Has reports whether username exists (case-insensitive).
func (s *Store) Has(username string) bool {
	return s.Get(username) != nil
}

// Create adds a new user. Fails with KindConflict if the username (case-
// insensitive) already exists.
func (s *Store) Create(u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := crypto.FoldUsername(u.Username)
	if _, exists := s.users[key]; exists {
		return gatewayerr.New(gatewayerr.KindConflict, "username already exists")
	}

	now := time.Now().UTC()
	clone := cloneUser(u)
	clone.CreatedAt = now
	clone.UpdatedAt = now

	s.users[key] = clone
	s.order = append(s.order, key)
	return s.persistLocked()
}

// UpdatePassword sets a new password hash for username.
func (s *Store) UpdatePassword(username, passwordHash string) error {
	return s.mutate(username, func(u *User) { u.PasswordHash = passwordHash })
}

// UpdateRole sets a new role for username.
func (s *Store) UpdateRole(username string, role magic.Role) error {
	return s.mutate(username, func(u *User) { u.Role = role })
}

// UpdateRecoveryCode sets the recovery code hash for username.
func (s *Store) UpdateRecoveryCode(username, recoveryCodeHash string) error {
	return s.mutate(username, func(u *User) { u.RecoveryCodeHash = recoveryCodeHash })
}

// TOTPFields describes a TOTP mutation; zero-value fields are applied as-is
// (callers must pass the full desired state for the fields they're changing).
type TOTPFields struct {
	Enabled          bool
	Secret           string
	BackupCodeHashes []string
	LastUsedCode     string
}

// UpdateTOTP applies fields to username's TOTP configuration. Invariant:
// Enabled=true requires Secret != "".
func (s *Store) UpdateTOTP(username string, fields TOTPFields) error {
	if fields.Enabled && fields.Secret == "" {
		return gatewayerr.New(gatewayerr.KindInvalidInput, "totp enabled requires a secret")
	}
	return s.mutate(username, func(u *User) {
		u.TOTPEnabled = fields.Enabled
		u.TOTPSecret = fields.Secret
		u.BackupCodeHashes = fields.BackupCodeHashes
		u.LastUsedTOTPCode = fields.LastUsedCode
	})
}

// UpdateLastUsedTOTPCode persists the anti-replay marker after a successful
// TOTP verification, per spec.md §4.1.
func (s *Store) UpdateLastUsedTOTPCode(username, code string) error {
	return s.mutate(username, func(u *User) { u.LastUsedTOTPCode = code })
}

// RemoveBackupCodeHash removes the hash at index idx from username's backup
// codes, after a successful backup-code login.
func (s *Store) RemoveBackupCodeHash(username string, idx int) error {
	return s.mutate(username, func(u *User) {
		if idx < 0 || idx >= len(u.BackupCodeHashes) {
			return
		}
		u.BackupCodeHashes = append(u.BackupCodeHashes[:idx], u.BackupCodeHashes[idx+1:]...)
	})
}

// UpdateUsername renames curr to newName. Fails with KindConflict if newName
// (case-insensitive) is taken by a different user.
func (s *Store) UpdateUsername(curr, newName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	currKey := crypto.FoldUsername(curr)
	newKey := crypto.FoldUsername(newName)

	u, ok := s.users[currKey]
	if !ok {
		return gatewayerr.New(gatewayerr.KindNotFound, "user not found")
	}
	if _, exists := s.users[newKey]; exists && newKey != currKey {
		return gatewayerr.New(gatewayerr.KindConflict, "username already exists")
	}

	u.Username = newName
	u.UpdatedAt = time.Now().UTC()

	if newKey != currKey {
		delete(s.users, currKey)
		s.users[newKey] = u
		for i, k := range s.order {
			if k == currKey {
				s.order[i] = newKey
				break
			}
		}
	}
	return s.persistLocked()
}

// Delete removes username. Cascading session revocation is the caller's
// responsibility (the session store has no knowledge of credentials), per
// spec.md §3's ownership note.
func (s *Store) Delete(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := crypto.FoldUsername(username)
	if _, ok := s.users[key]; !ok {
		return gatewayerr.New(gatewayerr.KindNotFound, "user not found")
	}
	delete(s.users, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return s.persistLocked()
}

func (s *Store) mutate(username string, apply func(*User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[crypto.FoldUsername(username)]
	if !ok {
		return gatewayerr.New(gatewayerr.KindNotFound, "user not found")
	}
	apply(u)
	u.UpdatedAt = time.Now().UTC()
	return s.persistLocked()
}

// persistLocked writes the full user list to disk under mu. Must be called
// with mu held.
func (s *Store) persistLocked() error {
	doc := document{Version: 1}
	for _, key := range s.order {
		doc.Users = append(doc.Users, s.users[key])
	}

	plaintext, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return gatewayerr.Wrap(gatewayerr.KindIO, "marshal credentials", err)
	}

	var out []byte
	if s.password != "" {
		env, err := crypto.EncryptCredentials(s.password, plaintext)
		if err != nil {
			return err
		}
		out, err = json.MarshalIndent(env, "", "  ")
		if err != nil {
			return gatewayerr.Wrap(gatewayerr.KindIO, "marshal credentials envelope", err)
		}
	} else {
		out = plaintext
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return gatewayerr.Wrap(gatewayerr.KindIO, "create credentials dir", err)
	}
	if err := os.WriteFile(s.path, out, 0o600); err != nil {
		return gatewayerr.Wrap(gatewayerr.KindIO, "write credentials file", err)
	}
	return nil
}

// SetEncryption toggles the on-disk encrypted envelope: calling with a
// non-empty password switches the store to encrypted mode (re-persisting
// immediately); calling with "" switches back to plaintext. This backs the
// `credentials encrypt|decrypt` CLI verbs (spec.md §6/§9).
func (s *Store) SetEncryption(password string) error {
	s.mu.Lock()
	s.password = password
	defer s.mu.Unlock()
	return s.persistLocked()
}

func cloneUser(u *User) *User {
	if u == nil {
		return nil
	}
	clone := *u
	clone.BackupCodeHashes = append([]string(nil), u.BackupCodeHashes...)
	return &clone
}
