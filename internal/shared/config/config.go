// Copyright (c) 2025 Justin Cranford

// Package config loads and validates the gateway's runtime configuration,
// per SPEC_FULL.md §4.10. Precedence (highest to lowest): the OPENCLAW_*
// environment variable, the YAML config file, compiled default. No per-field
// CLI flag layer is applied.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config is the gateway's resolved runtime configuration.
type Config struct {
	StateDir          string        `mapstructure:"stateDir"`
	ListenAddr        string        `mapstructure:"listenAddr"`
	TLSEnabled        bool          `mapstructure:"tlsEnabled"`
	SessionTTLMinutes int           `mapstructure:"sessionTTLMinutes"`
	AuditRetention    int           `mapstructure:"auditRetention"`
	LegacyTokenAuth   string        `mapstructure:"legacyTokenAuth"`
}

// SessionTTL is SessionTTLMinutes as a time.Duration.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

func defaults() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		StateDir:          filepath.Join(home, ".openclaw"),
		ListenAddr:        ":8443",
		TLSEnabled:        false,
		SessionTTLMinutes: 30,
		AuditRetention:    10,
		LegacyTokenAuth:   "",
	}
}

// Load resolves configuration from, in increasing precedence: compiled
// defaults, configFile (if non-empty and present), OPENCLAW_* environment
// variables, then validates the result. It does not apply CLI flags.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	d := defaults()

	v.SetDefault("stateDir", d.StateDir)
	v.SetDefault("listenAddr", d.ListenAddr)
	v.SetDefault("tlsEnabled", d.TLSEnabled)
	v.SetDefault("sessionTTLMinutes", d.SessionTTLMinutes)
	v.SetDefault("auditRetention", d.AuditRetention)
	v.SetDefault("legacyTokenAuth", d.LegacyTokenAuth)

	v.SetEnvPrefix("OPENCLAW")
	v.AutomaticEnv()
	bindEnvKeys(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config file %s: %w", configFile, err)
			}
		}
	} else {
		v.SetConfigName("gateway")
		v.SetConfigType("yaml")
		v.AddConfigPath(d.StateDir)
		_ = v.ReadInConfig() // optional; absence is not an error
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations that would leave the gateway in an
// inconsistent state.
func (c *Config) Validate() error {
	if !filepath.IsAbs(c.StateDir) {
		return fmt.Errorf("stateDir must be an absolute path, got %q", c.StateDir)
	}
	if c.SessionTTLMinutes <= 0 {
		return fmt.Errorf("sessionTTLMinutes must be > 0, got %d", c.SessionTTLMinutes)
	}
	if c.AuditRetention < 1 {
		return fmt.Errorf("auditRetention must be >= 1, got %d", c.AuditRetention)
	}
	return nil
}

// Sources returns a map describing which layer resolved each field, for the
// `config show` CLI command.
func Sources(configFile string) map[string]string {
	v := viper.New()
	v.SetEnvPrefix("OPENCLAW")
	v.AutomaticEnv()
	if configFile != "" {
		v.SetConfigFile(configFile)
		_ = v.ReadInConfig()
	}

	fields := []string{"stateDir", "listenAddr", "tlsEnabled", "sessionTTLMinutes", "auditRetention", "legacyTokenAuth"}
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		switch {
		case os.Getenv("OPENCLAW_"+envKey(f)) != "":
			out[f] = "env"
		case v.InConfig(f):
			out[f] = "file"
		default:
			out[f] = "default"
		}
	}
	return out
}

// bindEnvKeys explicitly binds each field to its SCREAMING_SNAKE_CASE
// OPENCLAW_* variable. AutomaticEnv alone would check OPENCLAW_LISTENADDR
// (camelCase collapsed, no separator) rather than OPENCLAW_LISTEN_ADDR, which
// would silently diverge from what Sources reports and from the naming
// users expect in gateway.yaml-adjacent env files.
func bindEnvKeys(v *viper.Viper) {
	for _, f := range []string{"stateDir", "listenAddr", "tlsEnabled", "sessionTTLMinutes", "auditRetention", "legacyTokenAuth"} {
		_ = v.BindEnv(f, "OPENCLAW_"+envKey(f))
	}
}

func envKey(field string) string {
	out := make([]byte, 0, len(field)+4)
	for i, r := range field {
		if r >= 'A' && r <= 'Z' && i > 0 {
			out = append(out, '_')
		}
		if r >= 'a' && r <= 'z' {
			r -= 'a' - 'A'
		}
		out = append(out, byte(r))
	}
	return string(out)
}
