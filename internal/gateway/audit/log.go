// Copyright (c) 2025 Justin Cranford

// Package audit implements the gateway's append-only JSONL security audit
// log, per spec.md §4.3.
package audit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// Event is a single audit record. Per spec.md §3, each occupies exactly one
// JSONL line.
type Event struct {
	Timestamp time.Time      `json:"ts"`
	Event     string         `json:"event"`
	Actor     string         `json:"actor"`
	IP        string         `json:"ip"`
	Details   map[string]any `json:"details,omitempty"`
}

// Log is a singleton-shaped buffered JSONL writer with periodic/threshold
// flush, size-triggered rotation, retention pruning, and sync-on-shutdown.
// Safe for concurrent use. Append before Init is a documented no-op.
type Log struct {
	mu        sync.Mutex
	dir       string
	retention int
	buf       []Event
	initiated bool
	stopCh    chan struct{}
	wg        sync.WaitGroup

	logger      *slog.Logger
	flushed     metric.Int64Counter
	rotated     metric.Int64Counter
	writeFailed metric.Int64Counter
}

// Option configures a Log.
type Option func(*Log)

// WithLogger wires a diagnostic logger for write failures (spec.md §9's
// open question); defaults to an Error-level text logger on stderr.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Log) { l.logger = logger }
}

// WithMeters wires OpenTelemetry counters for flush/rotation/write-failure
// events.
func WithMeters(flushed, rotated, writeFailed metric.Int64Counter) Option {
	return func(l *Log) {
		l.flushed = flushed
		l.rotated = rotated
		l.writeFailed = writeFailed
	}
}

// New constructs a Log. Call Init to start accepting events.
func New(opts ...Option) *Log {
	l := &Log{logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// logsDir returns the logs directory (<stateDir>/logs) for stateDir.
func logsDir(stateDir string) string {
	return filepath.Join(stateDir, "logs")
}

// auditFilePath returns the live audit.jsonl path given the logs dir.
func auditFilePath(dir string) string {
	return filepath.Join(dir, "audit.jsonl")
}

// Init starts the log, creating <stateDir>/logs if needed and launching the
// periodic flush timer. retention<=0 defaults to 10.
func (l *Log) Init(stateDir string, retention int) error {
	if retention <= 0 {
		retention = 10
	}

	l.mu.Lock()
	l.dir = logsDir(stateDir)
	l.retention = retention
	l.initiated = true
	l.stopCh = make(chan struct{})
	l.mu.Unlock()

	if err := os.MkdirAll(l.dir, 0o700); err != nil {
		return fmt.Errorf("create audit log dir: %w", err)
	}

	l.wg.Add(1)
	go l.periodicFlush()
	return nil
}

func (l *Log) periodicFlush() {
	defer l.wg.Done()
	ticker := time.NewTicker(flushIntervalOverride())
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.Flush()
		case <-l.stopCh:
			return
		}
	}
}

// Append enqueues event into the in-memory buffer. No-op if Init has not
// been called. Flushes immediately once the buffer reaches the threshold
// batch size.
func (l *Log) Append(event, actor, ip string, details map[string]any) {
	l.mu.Lock()
	if !l.initiated {
		l.mu.Unlock()
		return
	}
	l.buf = append(l.buf, Event{
		Timestamp: time.Now().UTC(),
		Event:     event,
		Actor:     actor,
		IP:        ip,
		Details:   details,
	})
	shouldFlush := len(l.buf) >= flushBatchSizeOverride()
	l.mu.Unlock()

	if shouldFlush {
		l.Flush()
	}
}

// Flush writes the buffered events to disk, rotating first if the file has
// grown past the size threshold. I/O errors are swallowed per spec.md §4.3
// and §7: the auth flow MUST NOT fail because of audit I/O. Failures are
// instead surfaced on the diagnostic logging channel and a counter.
func (l *Log) Flush() {
	l.mu.Lock()
	initiated := l.initiated
	l.mu.Unlock()
	if !initiated {
		return
	}
	l.flush()
}

// flush is Flush's body minus the initiated gate, so Shutdown can run a
// final sync flush after it has already cleared l.initiated.
func (l *Log) flush() {
	l.mu.Lock()
	if len(l.buf) == 0 {
		l.mu.Unlock()
		return
	}
	pending := l.buf
	l.buf = nil
	dir := l.dir
	l.mu.Unlock()

	l.maybeRotate(dir)

	var out bytes.Buffer
	for _, e := range pending {
		line, err := json.Marshal(e)
		if err != nil {
			l.noteFailure("marshal audit event", err)
			continue
		}
		out.Write(line)
		out.WriteByte('\n')
	}

	f, err := os.OpenFile(auditFilePath(dir), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		l.noteFailure("open audit log", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(out.Bytes()); err != nil {
		l.noteFailure("write audit log", err)
		return
	}

	if l.flushed != nil {
		l.flushed.Add(bgCtx(), int64(len(pending)))
	}
}

func (l *Log) noteFailure(msg string, err error) {
	l.logger.Error("audit.write_failed", slog.String("detail", msg), slog.Any("error", err))
	if l.writeFailed != nil {
		l.writeFailed.Add(bgCtx(), 1)
	}
}

// maybeRotate renames the live audit.jsonl to a timestamped file if it has
// grown past the rotation threshold, then prunes rotated files beyond
// retention.
func (l *Log) maybeRotate(dir string) {
	path := auditFilePath(dir)
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	if info.Size() < rotateSizeOverride() {
		return
	}

	ts := time.Now().UTC().Format("2006-01-02T15-04-05.000000Z")
	rotated := filepath.Join(dir, fmt.Sprintf("audit-%s.jsonl", ts))
	if err := os.Rename(path, rotated); err != nil {
		l.noteFailure("rotate audit log", err)
		return
	}
	if l.rotated != nil {
		l.rotated.Add(bgCtx(), 1)
	}
	l.pruneRotated(dir)
}

func (l *Log) pruneRotated(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	var rotated []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, "audit-") && strings.HasSuffix(name, ".jsonl") {
			rotated = append(rotated, name)
		}
	}
	sort.Strings(rotated) // lexicographic == chronological, timestamps are zero-padded/ISO-ish

	if len(rotated) <= l.retention {
		return
	}
	toRemove := rotated[:len(rotated)-l.retention]
	for _, name := range toRemove {
		_ = os.Remove(filepath.Join(dir, name))
	}
}

// Shutdown cancels the periodic timer and does a final synchronous flush.
func (l *Log) Shutdown() {
	l.mu.Lock()
	if !l.initiated {
		l.mu.Unlock()
		return
	}
	l.initiated = false
	close(l.stopCh)
	l.mu.Unlock()

	l.wg.Wait()
	l.flush()
}

func flushIntervalOverride() time.Duration { return auditFlushInterval }
func flushBatchSizeOverride() int          { return auditFlushBatchSize }
func rotateSizeOverride() int64            { return auditRotateSizeBytes }
