// Copyright (c) 2025 Justin Cranford

// Package command implements the openclaw-gateway CLI, covering both the
// long-running server (`serve`) and the administrative surface of
// spec.md §6 (user lifecycle, credentials, TLS, audit inspection).
package command

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/CohesiumAI/openclaw-sub001/internal/gateway/credentials"
	"github.com/CohesiumAI/openclaw-sub001/internal/shared/config"
)

var configFile string

// Execute runs the CLI, reading args/stdin/stdout/stderr explicitly so it
// can be driven from tests, matching the teacher's entry-point shape.
func Execute(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root := NewRoot()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.Execute(); err != nil {
		return 1
	}
	return 0
}

// NewRoot builds the top-level "openclaw-gateway" command and every
// subcommand named in spec.md §6.
func NewRoot() *cobra.Command {
	root := &cobra.Command{
		Use:   "openclaw-gateway",
		Short: "OpenClaw authentication and session gateway",
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to gateway.yaml (default ~/.openclaw/gateway.yaml)")

	root.AddCommand(newServeCommand())
	root.AddCommand(newUserCommand())
	root.AddCommand(newCredentialsCommand())
	root.AddCommand(newTLSCommand())
	root.AddCommand(newAuditCommand())
	root.AddCommand(newConfigCommand())
	return root
}

// loadConfig loads configuration honoring the --config flag set on root.
func loadConfig() (*config.Config, error) {
	return config.Load(configFile)
}

// openCredentials opens the credentials store for administrative CLI
// commands, which run as the process owner directly against the state
// directory rather than through the HTTP/WS surface, per spec.md §6. The
// decryption password (if the file is an encrypted envelope) comes from
// OPENCLAW_CREDENTIALS_PASSWORD, since these commands are meant to run
// unattended (e.g. from scripts/systemd units).
func openCredentials(cfg *config.Config) (*credentials.Store, error) {
	return credentials.Open(cfg.StateDir, os.Getenv("OPENCLAW_CREDENTIALS_PASSWORD"))
}

func fail(cmd *cobra.Command, format string, args ...any) error {
	fmt.Fprintf(cmd.ErrOrStderr(), format+"\n", args...)
	return fmt.Errorf(format, args...)
}

func ensureStateDir(cfg *config.Config) error {
	return os.MkdirAll(cfg.StateDir, 0o700)
}
