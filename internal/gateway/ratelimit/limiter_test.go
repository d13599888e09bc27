// Copyright (c) 2025 Justin Cranford

package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/CohesiumAI/openclaw-sub001/internal/shared/magic"
)

func TestLimiterNotLockedBelowTier1(t *testing.T) {
	ctx := context.Background()
	l := New()

	for i := 0; i < magic.RateLimitTier1Count-1; i++ {
		l.RecordFailure(ctx, "user:alice")
	}
	assert.Equal(t, time.Duration(0), l.Check("user:alice"))
}

func TestLimiterTierStepFunctionIsMonotonic(t *testing.T) {
	ctx := context.Background()
	current := time.Unix(0, 0)
	l := New(WithClock(func() time.Time { return current }))

	counts := []int{magic.RateLimitTier1Count, magic.RateLimitTier2Count, magic.RateLimitTier3Count, magic.RateLimitTier4Count}
	wantCooldowns := []time.Duration{
		magic.RateLimitTier1Cooldown,
		magic.RateLimitTier2Cooldown,
		magic.RateLimitTier3Cooldown,
		magic.RateLimitTier4Cooldown,
	}

	recorded := 0
	var last time.Duration
	for i, count := range counts {
		for ; recorded < count; recorded++ {
			l.RecordFailure(ctx, "user:bob")
		}
		got := l.Check("user:bob")
		assert.Equal(t, wantCooldowns[i], got)
		assert.GreaterOrEqual(t, got, last)
		last = got
	}
}

func TestLimiterResetClearsLockout(t *testing.T) {
	ctx := context.Background()
	l := New()

	for i := 0; i < magic.RateLimitTier1Count; i++ {
		l.RecordFailure(ctx, "user:carol")
	}
	assert.Greater(t, l.Check("user:carol"), time.Duration(0))

	l.Reset(ctx, "user:carol")
	assert.Equal(t, time.Duration(0), l.Check("user:carol"))
}

func TestLimiterCheckExpiresAfterCooldown(t *testing.T) {
	ctx := context.Background()
	current := time.Unix(1000, 0)
	l := New(WithClock(func() time.Time { return current }))

	for i := 0; i < magic.RateLimitTier1Count; i++ {
		l.RecordFailure(ctx, "user:dave")
	}
	assert.Greater(t, l.Check("user:dave"), time.Duration(0))

	current = current.Add(magic.RateLimitTier1Cooldown + time.Second)
	assert.Equal(t, time.Duration(0), l.Check("user:dave"))
}

func TestLimiterDoubleKeyChecksBothIPAndUser(t *testing.T) {
	ctx := context.Background()
	l := New()

	for i := 0; i < magic.RateLimitTier1Count; i++ {
		l.RecordFailure(ctx, IPKey("10.0.0.1"))
	}

	assert.Greater(t, l.CheckDoubleKey("10.0.0.1", "erin"), time.Duration(0))
	assert.Equal(t, time.Duration(0), l.CheckDoubleKey("10.0.0.2", "erin"))
}

func TestLimiterResetDoubleKeyClearsBoth(t *testing.T) {
	ctx := context.Background()
	l := New()

	l.RecordDoubleKeyFailure(ctx, "10.0.0.9", "frank")
	l.RecordDoubleKeyFailure(ctx, "10.0.0.9", "frank")
	l.RecordDoubleKeyFailure(ctx, "10.0.0.9", "frank")

	assert.Greater(t, l.CheckDoubleKey("10.0.0.9", "frank"), time.Duration(0))

	l.ResetDoubleKey(ctx, "10.0.0.9", "frank")
	assert.Equal(t, time.Duration(0), l.CheckDoubleKey("10.0.0.9", "frank"))
}

func TestIPKeyAndUserKeyPrefixes(t *testing.T) {
	assert.Equal(t, "ip:1.2.3.4", IPKey("1.2.3.4"))
	assert.Equal(t, "user:alice", UserKey("alice"))
}
