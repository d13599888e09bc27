// Copyright (c) 2025 Justin Cranford

package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CohesiumAI/openclaw-sub001/internal/shared/config"
)

// newConfigCommand implements `config show`, the SPEC_FULL.md §4.10
// addition for inspecting the resolved configuration and which layer
// (flag/env/file/default) produced each value.
func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Inspect gateway configuration"}
	cmd.AddCommand(newConfigShowCommand())
	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration and its source per field",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fail(cmd, "load config: %v", err)
			}
			if err := cfg.Validate(); err != nil {
				return fail(cmd, "invalid config: %v", err)
			}

			sources := config.Sources(configFile)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "stateDir:          %s\t(%s)\n", cfg.StateDir, sources["stateDir"])
			fmt.Fprintf(out, "listenAddr:        %s\t(%s)\n", cfg.ListenAddr, sources["listenAddr"])
			fmt.Fprintf(out, "tlsEnabled:        %v\t(%s)\n", cfg.TLSEnabled, sources["tlsEnabled"])
			fmt.Fprintf(out, "sessionTTLMinutes: %d\t(%s)\n", cfg.SessionTTLMinutes, sources["sessionTTLMinutes"])
			fmt.Fprintf(out, "auditRetention:    %d\t(%s)\n", cfg.AuditRetention, sources["auditRetention"])
			return nil
		},
	}
}
