// Copyright (c) 2025 Justin Cranford

package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/CohesiumAI/openclaw-sub001/internal/gateway/crypto"
	"github.com/CohesiumAI/openclaw-sub001/internal/shared/magic"
)

// Store is the in-memory map of session ID to Session. Safe for concurrent
// use; the sweeper goroutine and request handlers share the same mutex.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time

	sweeping bool
	stopCh   chan struct{}

	created metric.Int64Counter
	expired metric.Int64Counter
	revoked metric.Int64Counter
}

// Option configures a Store.
type Option func(*Store)

// WithTTL overrides the default 30-minute sliding TTL.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// WithClock overrides time.Now, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithMeters wires OpenTelemetry counters for session lifecycle events.
func WithMeters(created, expired, revoked metric.Int64Counter) Option {
	return func(s *Store) {
		s.created = created
		s.expired = expired
		s.revoked = revoked
	}
}

// New constructs an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		sessions: make(map[string]*Session),
		ttl:      magic.SessionTTLDefault,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateParams is the minimal input to Create.
type CreateParams struct {
	Username string
	Role     magic.Role
}

// Create mints a new session for params, starting the background sweeper if
// it isn't already running.
func (s *Store) Create(ctx context.Context, params CreateParams) (*Session, error) {
	id, err := randomToken(magic.SessionIDLen)
	if err != nil {
		return nil, err
	}
	csrf, err := randomToken(magic.CSRFTokenLen)
	if err != nil {
		return nil, err
	}

	now := s.now()
	sess := &Session{
		ID:             id,
		Username:       params.Username,
		Role:           params.Role,
		Scopes:         magic.ScopesForRole(params.Role),
		CreatedAt:      now,
		ExpiresAt:      now.Add(s.ttl),
		LastActivityAt: now,
		CSRFToken:      csrf,
	}

	s.mu.Lock()
	s.sessions[id] = sess
	needsSweeper := !s.sweeping
	if needsSweeper {
		s.sweeping = true
		s.stopCh = make(chan struct{})
	}
	s.mu.Unlock()

	if needsSweeper {
		go s.sweepLoop()
	}
	if s.created != nil {
		s.created.Add(ctx, 1)
	}
	return sess.Clone(), nil
}

// Get returns the live session for id, or nil. Expired sessions are deleted
// and nil is returned (spec.md §3's "deletion is authoritative").
func (s *Store) Get(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(id)
}

func (s *Store) getLocked(id string) *Session {
	sess, ok := s.sessions[id]
	if !ok {
		return nil
	}
	if s.now().After(sess.ExpiresAt) {
		delete(s.sessions, id)
		return nil
	}
	return sess.Clone()
}

// Refresh slides id's expiry forward to now+TTL and updates LastActivityAt.
// Returns nil if id is not a live session.
func (s *Store) Refresh(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil
	}
	now := s.now()
	if now.After(sess.ExpiresAt) {
		delete(s.sessions, id)
		return nil
	}
	sess.ExpiresAt = now.Add(s.ttl)
	sess.LastActivityAt = now
	return sess.Clone()
}

// DeleteByID removes the session with the given ID, if any.
func (s *Store) DeleteByID(ctx context.Context, id string) {
	s.mu.Lock()
	_, existed := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if existed && s.revoked != nil {
		s.revoked.Add(ctx, 1)
	}
}

// DeleteByUser removes every session belonging to username. The match is
// case-insensitive: both username and each stored Username are passed
// through crypto.FoldUsername before comparing.
func (s *Store) DeleteByUser(ctx context.Context, username string) {
	folded := crypto.FoldUsername(username)
	s.mu.Lock()
	var n int64
	for id, sess := range s.sessions {
		if crypto.FoldUsername(sess.Username) == folded {
			delete(s.sessions, id)
			n++
		}
	}
	s.mu.Unlock()
	if n > 0 && s.revoked != nil {
		s.revoked.Add(ctx, n)
	}
}

// DeleteAll clears every session (full reset), per spec.md §3.
func (s *Store) DeleteAll(ctx context.Context) {
	s.mu.Lock()
	n := int64(len(s.sessions))
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()
	if n > 0 && s.revoked != nil {
		s.revoked.Add(ctx, n)
	}
}

// ListUserSessionIDs returns the IDs of all live sessions for username.
func (s *Store) ListUserSessionIDs(username string) []string {
	folded := crypto.FoldUsername(username)
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	now := s.now()
	for id, sess := range s.sessions {
		if now.After(sess.ExpiresAt) {
			continue
		}
		if crypto.FoldUsername(sess.Username) == folded {
			ids = append(ids, id)
		}
	}
	return ids
}

// Snapshot returns a defensive copy of every live session, for
// SessionPersistence's mirror.
func (s *Store) Snapshot() []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		if now.After(sess.ExpiresAt) {
			continue
		}
		out = append(out, sess.Clone())
	}
	return out
}

// Restore installs sessions into the store (e.g. from SessionPersistence at
// startup), skipping any that have already expired.
func (s *Store) Restore(ctx context.Context, sessions []*Session) int {
	s.mu.Lock()
	now := s.now()
	restored := 0
	for _, sess := range sessions {
		if now.After(sess.ExpiresAt) {
			continue
		}
		s.sessions[sess.ID] = sess.Clone()
		restored++
	}
	needsSweeper := restored > 0 && !s.sweeping
	if needsSweeper {
		s.sweeping = true
		s.stopCh = make(chan struct{})
	}
	s.mu.Unlock()

	if needsSweeper {
		go s.sweepLoop()
	}
	if restored > 0 && s.created != nil {
		s.created.Add(ctx, int64(restored))
	}
	return restored
}

// sweepLoop evicts expired sessions every SessionSweepInterval, stopping
// itself once the map is empty so its timer does not keep the process
// alive, per spec.md §4.5/§5.
func (s *Store) sweepLoop() {
	ticker := time.NewTicker(magic.SessionSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if s.sweepOnce() {
				return
			}
		case <-s.stopCh:
			return
		}
	}
}

// sweepOnce evicts expired entries and reports whether the store is now
// empty (meaning the sweeper should stop itself).
func (s *Store) sweepOnce() bool {
	s.mu.Lock()
	now := s.now()
	var expired int64
	for id, sess := range s.sessions {
		if now.After(sess.ExpiresAt) {
			delete(s.sessions, id)
			expired++
		}
	}
	empty := len(s.sessions) == 0
	if empty {
		s.sweeping = false
	}
	s.mu.Unlock()

	if expired > 0 && s.expired != nil {
		s.expired.Add(bgCtx(), expired)
	}
	return empty
}

func randomToken(n int) (string, error) {
	raw := make([]byte, n)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func bgCtx() context.Context { return context.Background() }
