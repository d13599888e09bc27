// Copyright (c) 2025 Justin Cranford

// Package logging constructs the gateway's process-wide structured logger.
package logging

import (
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/log/noop"
)

// New builds a logger that fans out every record to a human-readable
// console handler and an OpenTelemetry log bridge, so operators reading the
// console see the same events that would ship to a collector once one is
// configured. Passing an io.Writer other than os.Stdout is supported for
// tests.
func New(w io.Writer, level slog.Level) *slog.Logger {
	console := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})

	// No OTLP collector is assumed for a local/self-hosted gateway (see
	// DESIGN.md); the bridge is backed by a no-op LoggerProvider so the
	// fanout still exercises the bridging code path without requiring one.
	otelHandler := otelslog.NewHandler("openclaw-gateway", otelslog.WithLoggerProvider(noop.NewLoggerProvider()))

	handler := slogmulti.Fanout(console, otelHandler)
	return slog.New(handler)
}

// Diagnostic returns a logger scoped for out-of-band failures that must
// never affect the primary request flow (e.g. audit write errors), per
// spec.md §9's open question.
func Diagnostic(base *slog.Logger) *slog.Logger {
	return base.With(slog.String("channel", "diagnostic"))
}

// Default returns a logger writing to stderr at info level, used when no
// logger has been constructed explicitly (e.g. early CLI bootstrap).
func Default() *slog.Logger {
	return New(os.Stderr, slog.LevelInfo)
}

// WithComponent scopes a logger to a named gateway component.
func WithComponent(base *slog.Logger, name string) *slog.Logger {
	return base.With(slog.String("component", name))
}

// Discard returns a logger that writes nowhere, for tests that don't want
// log output mixed into `go test -v`.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
