// Copyright (c) 2025 Justin Cranford

// Package ratelimit implements the gateway's progressive anti-brute-force
// limiter, per spec.md §4.2.
package ratelimit

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/CohesiumAI/openclaw-sub001/internal/shared/magic"
)

const (
	ipPrefix   = "ip:"
	userPrefix = "user:"
)

type bucket struct {
	count       int
	lockedUntil time.Time
}

// Limiter is a tiered cooldown rate limiter keyed by opaque strings. The
// count for a key never decays except via Reset; cooldown is purely a
// function of count (spec.md §4.2's monotonic tier step function). Safe for
// concurrent use.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time

	locked metric.Int64Counter
	reset  metric.Int64Counter
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides time.Now, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithMeters wires lock/reset counters into an OpenTelemetry meter, per
// SPEC_FULL.md §4.2.
func WithMeters(locked, reset metric.Int64Counter) Option {
	return func(l *Limiter) {
		l.locked = locked
		l.reset = reset
	}
}

// New constructs an empty Limiter.
func New(opts ...Option) *Limiter {
	l := &Limiter{
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// tier returns the cooldown duration for a given failure count, per the
// step function in spec.md §4.2.
func tier(count int) time.Duration {
	switch {
	case count >= magic.RateLimitTier4Count:
		return magic.RateLimitTier4Cooldown
	case count >= magic.RateLimitTier3Count:
		return magic.RateLimitTier3Cooldown
	case count >= magic.RateLimitTier2Count:
		return magic.RateLimitTier2Cooldown
	case count >= magic.RateLimitTier1Count:
		return magic.RateLimitTier1Cooldown
	default:
		return 0
	}
}

// Check returns the remaining lock duration for key, or 0 if not locked.
func (l *Limiter) Check(key string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.checkLocked(key)
}

func (l *Limiter) checkLocked(key string) time.Duration {
	b, ok := l.buckets[key]
	if !ok {
		return 0
	}
	remaining := b.lockedUntil.Sub(l.now())
	if remaining <= 0 {
		return 0
	}
	return remaining
}

// RecordFailure increments key's failure count and (re-)computes its
// lockout from the resulting tier.
func (l *Limiter) RecordFailure(ctx context.Context, key string) {
	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{}
		l.buckets[key] = b
	}
	b.count++
	cooldown := tier(b.count)
	locked := cooldown > 0
	if locked {
		b.lockedUntil = l.now().Add(cooldown)
	}
	l.mu.Unlock()

	if locked && l.locked != nil {
		l.locked.Add(ctx, 1, metric.WithAttributes(keyPrefixAttr(key)))
	}
}

// Reset clears key's failure count and lockout, on authentication success.
func (l *Limiter) Reset(ctx context.Context, key string) {
	l.mu.Lock()
	_, existed := l.buckets[key]
	delete(l.buckets, key)
	l.mu.Unlock()

	if existed && l.reset != nil {
		l.reset.Add(ctx, 1, metric.WithAttributes(keyPrefixAttr(key)))
	}
}

// CheckDoubleKey returns max(Check(IPKey(ip)), Check(UserKey(user))), per
// spec.md §4.2's double-keying.
func (l *Limiter) CheckDoubleKey(ip, user string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	a := l.checkLocked(IPKey(ip))
	b := l.checkLocked(UserKey(user))
	if a > b {
		return a
	}
	return b
}

// RecordDoubleKeyFailure increments both the IP and user keys' failure
// counts.
func (l *Limiter) RecordDoubleKeyFailure(ctx context.Context, ip, user string) {
	l.RecordFailure(ctx, IPKey(ip))
	l.RecordFailure(ctx, UserKey(user))
}

// ResetDoubleKey clears both the IP and user keys.
func (l *Limiter) ResetDoubleKey(ctx context.Context, ip, user string) {
	l.Reset(ctx, IPKey(ip))
	l.Reset(ctx, UserKey(user))
}

// IPKey and UserKey apply the consistent key prefixes required by
// spec.md §4.2.
func IPKey(ip string) string     { return ipPrefix + ip }
func UserKey(user string) string { return userPrefix + user }

func keyPrefixAttr(key string) attribute.KeyValue {
	prefix := "unknown"
	switch {
	case strings.HasPrefix(key, ipPrefix):
		prefix = "ip"
	case strings.HasPrefix(key, userPrefix):
		prefix = "user"
	}
	return attribute.String("key_prefix", prefix)
}
