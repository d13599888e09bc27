// Copyright (c) 2025 Justin Cranford

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenNoFileOrEnv(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8443", cfg.ListenAddr)
	assert.False(t, cfg.TLSEnabled)
	assert.Equal(t, 30, cfg.SessionTTLMinutes)
}

func TestLoadFromExplicitFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "gateway.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(
		"stateDir: "+dir+"\nlistenAddr: \":9443\"\nsessionTTLMinutes: 60\nauditRetention: 5\n",
	), 0o600))

	cfg, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.StateDir)
	assert.Equal(t, ":9443", cfg.ListenAddr)
	assert.Equal(t, 60, cfg.SessionTTLMinutes)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "gateway.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(
		"stateDir: "+dir+"\nlistenAddr: \":9443\"\nsessionTTLMinutes: 60\nauditRetention: 5\n",
	), 0o600))

	t.Setenv("OPENCLAW_LISTEN_ADDR", ":7777")

	cfg, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, ":7777", cfg.ListenAddr)
}

func TestSessionTTLConvertsMinutesToDuration(t *testing.T) {
	cfg := &Config{SessionTTLMinutes: 45}
	assert.Equal(t, 45*60, int(cfg.SessionTTL().Seconds()))
}

func TestValidateRejectsRelativeStateDir(t *testing.T) {
	cfg := &Config{StateDir: "relative/path", SessionTTLMinutes: 30, AuditRetention: 10}
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsNonPositiveSessionTTL(t *testing.T) {
	cfg := &Config{StateDir: "/tmp/x", SessionTTLMinutes: 0, AuditRetention: 10}
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsAuditRetentionBelowOne(t *testing.T) {
	cfg := &Config{StateDir: "/tmp/x", SessionTTLMinutes: 30, AuditRetention: 0}
	assert.Error(t, cfg.Validate())
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	cfg := &Config{StateDir: "/tmp/x", SessionTTLMinutes: 30, AuditRetention: 10}
	assert.NoError(t, cfg.Validate())
}

func TestSourcesReportsEnvOverFileOverDefault(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "gateway.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("listenAddr: \":9443\"\n"), 0o600))

	t.Setenv("OPENCLAW_LISTEN_ADDR", ":7777")

	sources := Sources(configPath)
	assert.Equal(t, "env", sources["listenAddr"])
	assert.Equal(t, "default", sources["stateDir"])
}
