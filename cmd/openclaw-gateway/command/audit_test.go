// Copyright (c) 2025 Justin Cranford

package command

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSinceAcceptsDuration(t *testing.T) {
	before := time.Now().Add(-24 * time.Hour)
	got, err := parseSince("24h")
	require.NoError(t, err)
	assert.WithinDuration(t, before, got, 2*time.Second)
}

func TestParseSinceAcceptsRFC3339(t *testing.T) {
	got, err := parseSince("2026-01-02T15:04:05Z")
	require.NoError(t, err)
	assert.Equal(t, 2026, got.Year())
}

func TestParseSinceRejectsGarbage(t *testing.T) {
	_, err := parseSince("not a time")
	assert.Error(t, err)
}

func TestReadAuditLinesMissingFileIsEmpty(t *testing.T) {
	dir := t.TempDir()
	lines, err := readAuditLines(dir)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestReadAuditLinesParsesAndSortsByTimestamp(t *testing.T) {
	dir := t.TempDir()
	logsDir := filepath.Join(dir, "logs")
	require.NoError(t, os.MkdirAll(logsDir, 0o700))

	t1 := time.Now().Add(-time.Hour).UTC().Truncate(time.Second)
	t2 := time.Now().UTC().Truncate(time.Second)
	content := `{"ts":"` + t2.Format(time.RFC3339) + `","event":"b","actor":"alice","ip":"1.1.1.1"}` + "\n" +
		`{"ts":"` + t1.Format(time.RFC3339) + `","event":"a","actor":"bob","ip":"2.2.2.2"}` + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(logsDir, "audit.jsonl"), []byte(content), 0o600))

	lines, err := readAuditLines(dir)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "a", lines[0].Event)
	assert.Equal(t, "b", lines[1].Event)
}

func TestReadAuditLinesTolerantOfPartialFinalLine(t *testing.T) {
	dir := t.TempDir()
	logsDir := filepath.Join(dir, "logs")
	require.NoError(t, os.MkdirAll(logsDir, 0o700))

	content := `{"ts":"2026-01-01T00:00:00Z","event":"ok","actor":"alice","ip":"1.1.1.1"}` + "\n" +
		`{"ts":"2026-01-01T00:00:01Z","event":"trunc`
	require.NoError(t, os.WriteFile(filepath.Join(logsDir, "audit.jsonl"), []byte(content), 0o600))

	lines, err := readAuditLines(dir)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "ok", lines[0].Event)
}

func TestPrintAuditLinesJSONMode(t *testing.T) {
	cmd := &cobra.Command{}
	var buf bytes.Buffer
	cmd.SetOut(&buf)

	printAuditLines(cmd, []auditLine{{Event: "auth.login.success", Actor: "alice", IP: "1.1.1.1"}}, true)
	assert.Contains(t, buf.String(), `"event":"auth.login.success"`)
}

func TestPrintAuditLinesTableMode(t *testing.T) {
	cmd := &cobra.Command{}
	var buf bytes.Buffer
	cmd.SetOut(&buf)

	printAuditLines(cmd, []auditLine{{Event: "auth.login.success", Actor: "alice", IP: "1.1.1.1"}}, false)
	out := buf.String()
	assert.Contains(t, out, "auth.login.success")
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "1.1.1.1")
}
