// Copyright (c) 2025 Justin Cranford

package gatewayerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfReadsErrorChainNotMessageText(t *testing.T) {
	base := New(KindNotFound, "user not found")
	wrapped := errors.New("context: " + base.Error())
	assert.Equal(t, KindUnknown, KindOf(wrapped)) // plain errors.New doesn't chain

	assert.Equal(t, KindNotFound, KindOf(base))
}

func TestKindOfDefaultsToUnknownForPlainError(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("boom")))
}

func TestWrapPreservesCauseViaUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	wrapped := Wrap(KindIO, "write file", cause)

	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, KindIO, KindOf(wrapped))
}

func TestRateLimitedCarriesRetryAfter(t *testing.T) {
	err := RateLimited(30000)
	assert.Equal(t, KindRateLimited, KindOf(err))
	assert.EqualValues(t, 30000, err.RetryAfterMs)
}

func TestKindStringValues(t *testing.T) {
	cases := map[Kind]string{
		KindInvalidInput:    "invalid_input",
		KindUnauthenticated: "unauthenticated",
		KindForbidden:       "forbidden",
		KindRateLimited:     "rate_limited",
		KindNotFound:        "not_found",
		KindConflict:        "conflict",
		KindCorrupt:         "corrupt",
		KindResourceLimit:   "resource_limit",
		KindIO:              "io",
		KindFatal:           "fatal",
		KindUnknown:         "unknown",
	}
	for kind, want := range cases {
		assert.Equal(t, want, kind.String())
	}
}
