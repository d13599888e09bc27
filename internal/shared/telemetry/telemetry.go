// Copyright (c) 2025 Justin Cranford

// Package telemetry wires the gateway's OpenTelemetry metrics pipeline. No
// OTLP collector is assumed for a local/self-hosted deployment (see
// DESIGN.md); metrics are exported to stdout for operator visibility, and
// tests use the noop meter provider to avoid console noise.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Meters bundles the counters/histograms shared across gateway components.
type Meters struct {
	provider metric.MeterProvider

	RateLimitLocked   metric.Int64Counter
	RateLimitReset     metric.Int64Counter
	AuditFlushed      metric.Int64Counter
	AuditRotated      metric.Int64Counter
	AuditWriteFailed  metric.Int64Counter
	SessionsCreated   metric.Int64Counter
	SessionsExpired   metric.Int64Counter
	SessionsRevoked   metric.Int64Counter
	LoginAttempts     metric.Int64Counter
}

// NewStdout builds a Meters backed by a periodic stdout exporter.
func NewStdout() (*Meters, error) {
	exporter, err := stdoutmetric.New(stdoutmetric.WithoutTimestamps())
	if err != nil {
		return nil, err
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)))
	return newMeters(provider)
}

// NewNoop builds a Meters that records nothing, for tests and CLI subcommands
// that don't need metrics.
func NewNoop() (*Meters, error) {
	return newMeters(noop.NewMeterProvider())
}

func newMeters(provider metric.MeterProvider) (*Meters, error) {
	m := provider.Meter("github.com/CohesiumAI/openclaw-sub001/gateway")

	var err error
	meters := &Meters{provider: provider}

	if meters.RateLimitLocked, err = m.Int64Counter("gateway.ratelimit.locked_total"); err != nil {
		return nil, err
	}
	if meters.RateLimitReset, err = m.Int64Counter("gateway.ratelimit.reset_total"); err != nil {
		return nil, err
	}
	if meters.AuditFlushed, err = m.Int64Counter("gateway.audit.flushed_total"); err != nil {
		return nil, err
	}
	if meters.AuditRotated, err = m.Int64Counter("gateway.audit.rotated_total"); err != nil {
		return nil, err
	}
	if meters.AuditWriteFailed, err = m.Int64Counter("gateway.audit.write_failed_total"); err != nil {
		return nil, err
	}
	if meters.SessionsCreated, err = m.Int64Counter("gateway.sessions.created_total"); err != nil {
		return nil, err
	}
	if meters.SessionsExpired, err = m.Int64Counter("gateway.sessions.expired_total"); err != nil {
		return nil, err
	}
	if meters.SessionsRevoked, err = m.Int64Counter("gateway.sessions.revoked_total"); err != nil {
		return nil, err
	}
	if meters.LoginAttempts, err = m.Int64Counter("gateway.login.attempts_total"); err != nil {
		return nil, err
	}

	return meters, nil
}

// Shutdown flushes and releases the underlying provider, if it supports
// shutdown (the stdout-backed SDK provider does; the noop provider is a
// no-op here).
func (m *Meters) Shutdown(ctx context.Context) error {
	if sp, ok := m.provider.(interface{ Shutdown(context.Context) error }); ok {
		return sp.Shutdown(ctx)
	}
	return nil
}
