// Copyright (c) 2025 Justin Cranford

// Package session implements the gateway's in-memory session store with
// sliding expiry and background sweeping, per spec.md §4.5.
package session

import (
	"time"

	"github.com/CohesiumAI/openclaw-sub001/internal/shared/magic"
)

// Session is a live authenticated session. Invariant: now <= ExpiresAt for
// every session exposed to callers (Get deletes and returns nil otherwise).
type Session struct {
	ID             string        `json:"id"`
	Username       string        `json:"username"`
	Role           magic.Role    `json:"role"`
	Scopes         []magic.Scope `json:"scopes"`
	CreatedAt      time.Time     `json:"createdAt"`
	ExpiresAt      time.Time     `json:"expiresAt"`
	LastActivityAt time.Time     `json:"lastActivityAt"`
	CSRFToken      string        `json:"csrfToken"`
}

// Clone returns a defensive copy of s.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	clone := *s
	clone.Scopes = append([]magic.Scope(nil), s.Scopes...)
	return &clone
}
