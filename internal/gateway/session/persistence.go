// Copyright (c) 2025 Justin Cranford

package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"log/slog"

	"github.com/CohesiumAI/openclaw-sub001/internal/gateway/crypto"
	"github.com/CohesiumAI/openclaw-sub001/internal/shared/magic"
)

// Persistence mirrors a Store's live sessions to an encrypted file under
// <stateDir>/sessions/auth-sessions.enc, so sessions survive a gateway
// restart. Writes are debounced: a burst of session activity collapses into
// a single flush every SessionPersistDebounce, per spec.md §4.5.
type Persistence struct {
	mu        sync.Mutex
	path      string
	key       []byte
	store     *Store
	logger    *slog.Logger
	debounce  time.Duration
	pending   bool
	timer     *time.Timer
	stopCh    chan struct{}
	flushedCh chan struct{} // unused: no code path creates or closes it
}

func sessionsFilePath(stateDir string) string {
	return filepath.Join(stateDir, "sessions", "auth-sessions.enc")
}

// NewPersistence constructs a Persistence mirroring store, encrypting with
// the machine key loaded (or created) under stateDir.
func NewPersistence(stateDir string, store *Store, logger *slog.Logger) (*Persistence, error) {
	key, _, err := crypto.LoadOrCreateMachineKey(stateDir)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Persistence{
		path:     sessionsFilePath(stateDir),
		key:      key,
		store:    store,
		logger:   logger,
		debounce: magic.SessionPersistDebounce,
	}, nil
}

// persistedSession is the on-disk shape; it is identical to Session today
// but kept distinct so the wire format doesn't silently change if Session
// grows transient fields later.
type persistedSession struct {
	ID             string        `json:"id"`
	Username       string        `json:"username"`
	Role           magic.Role    `json:"role"`
	Scopes         []magic.Scope `json:"scopes"`
	CreatedAt      time.Time     `json:"createdAt"`
	ExpiresAt      time.Time     `json:"expiresAt"`
	LastActivityAt time.Time     `json:"lastActivityAt"`
	CSRFToken      string        `json:"csrfToken"`
}

type persistedDocument struct {
	Version  int                 `json:"version"`
	Sessions []persistedSession  `json:"sessions"`
}

// Load reads the encrypted mirror (if present) and restores its sessions
// into p.store. Any I/O or decryption error is fail-open: it is logged and
// treated as "no prior sessions", per the fail-open contract documented on
// crypto.DecryptSessionBlob.
func (p *Persistence) Load() int {
	raw, err := os.ReadFile(p.path)
	if err != nil {
		if !os.IsNotExist(err) {
			p.logger.Warn("session persistence: read failed, starting empty", "err", err)
		}
		return 0
	}

	plaintext, err := crypto.DecryptSessionBlob(p.key, raw)
	if err != nil {
		p.logger.Warn("session persistence: decrypt failed, starting empty", "err", err)
		return 0
	}

	var doc persistedDocument
	if err := json.Unmarshal(plaintext, &doc); err != nil {
		p.logger.Warn("session persistence: corrupt mirror, starting empty", "err", err)
		return 0
	}

	sessions := make([]*Session, 0, len(doc.Sessions))
	for _, ps := range doc.Sessions {
		sessions = append(sessions, &Session{
			ID:             ps.ID,
			Username:       ps.Username,
			Role:           ps.Role,
			Scopes:         ps.Scopes,
			CreatedAt:      ps.CreatedAt,
			ExpiresAt:      ps.ExpiresAt,
			LastActivityAt: ps.LastActivityAt,
			CSRFToken:      ps.CSRFToken,
		})
	}
	return p.store.Restore(bgCtx(), sessions)
}

// ScheduleFlush requests a flush after the debounce window. Repeated calls
// within the window collapse into one write. Call after every session
// mutation (create/refresh/delete).
func (p *Persistence) ScheduleFlush() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopCh == nil {
		// Not started (e.g. Stop already called, or tests using flush-only).
		return
	}
	if p.pending {
		return
	}
	p.pending = true
	p.timer = time.AfterFunc(p.debounce, func() {
		p.mu.Lock()
		p.pending = false
		p.mu.Unlock()
		p.Flush()
	})
}

// Start arms the debounce machinery. Must be called before ScheduleFlush is
// useful; safe to call once at gateway startup.
func (p *Persistence) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopCh != nil {
		return
	}
	p.stopCh = make(chan struct{})
}

// Stop cancels any pending debounce timer and performs one final flush, so
// shutdown never loses the last burst of activity.
func (p *Persistence) Stop() {
	p.mu.Lock()
	if p.timer != nil {
		p.timer.Stop()
	}
	p.pending = false
	p.stopCh = nil
	p.mu.Unlock()
	p.Flush()
}

// Flush writes the current snapshot of p.store to the encrypted mirror
// immediately, bypassing the debounce window.
func (p *Persistence) Flush() {
	doc := persistedDocument{Version: 1}
	for _, sess := range p.store.Snapshot() {
		doc.Sessions = append(doc.Sessions, persistedSession{
			ID:             sess.ID,
			Username:       sess.Username,
			Role:           sess.Role,
			Scopes:         sess.Scopes,
			CreatedAt:      sess.CreatedAt,
			ExpiresAt:      sess.ExpiresAt,
			LastActivityAt: sess.LastActivityAt,
			CSRFToken:      sess.CSRFToken,
		})
	}

	plaintext, err := json.Marshal(doc)
	if err != nil {
		p.logger.Error("session persistence: marshal failed", "err", err)
		return
	}
	blob, err := crypto.EncryptSessionBlob(p.key, plaintext)
	if err != nil {
		p.logger.Error("session persistence: encrypt failed", "err", err)
		return
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0o700); err != nil {
		p.logger.Error("session persistence: mkdir failed", "err", err)
		return
	}
	if err := os.WriteFile(p.path, blob, 0o600); err != nil {
		p.logger.Error("session persistence: write failed", "err", err)
	}
}

// RotateKey regenerates the machine key used to encrypt the mirror and
// immediately re-encrypts under the new key, so no window exists where the
// on-disk file is unreadable by the running process.
func (p *Persistence) RotateKey(stateDir string) error {
	newKey, err := crypto.RegenerateMachineKey(stateDir)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.key = newKey
	p.mu.Unlock()
	p.Flush()
	return nil
}
