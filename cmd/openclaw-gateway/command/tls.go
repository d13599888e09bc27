// Copyright (c) 2025 Justin Cranford

package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CohesiumAI/openclaw-sub001/internal/gateway/tlsboot"
)

func newTLSCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "tls", Short: "Manage the gateway's self-signed TLS material"}
	cmd.AddCommand(newTLSEnableCommand(), newTLSDisableCommand(), newTLSStatusCommand(), newTLSRegenerateCommand())
	return cmd
}

func newTLSEnableCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "enable",
		Short: "Generate a self-signed certificate if none exists and enable TLS",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fail(cmd, "load config: %v", err)
			}
			if err := tlsboot.Enable(cfg.StateDir, "openclaw-gateway"); err != nil {
				return fail(cmd, "enable tls: %v", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "tls material ready; set tlsEnabled: true in gateway.yaml")
			return nil
		},
	}
}

func newTLSDisableCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "disable",
		Short: "Remove the gateway's TLS material",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fail(cmd, "load config: %v", err)
			}
			if err := tlsboot.Disable(cfg.StateDir); err != nil {
				return fail(cmd, "disable tls: %v", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "tls material removed")
			return nil
		},
	}
}

func newTLSStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether TLS material exists",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fail(cmd, "load config: %v", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "tls material present: %v\n", tlsboot.Status(cfg.StateDir))
			return nil
		},
	}
}

func newTLSRegenerateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "regenerate",
		Short: "Regenerate the self-signed certificate and key",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fail(cmd, "load config: %v", err)
			}
			if err := tlsboot.Regenerate(cfg.StateDir, "openclaw-gateway"); err != nil {
				return fail(cmd, "regenerate tls: %v", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "tls material regenerated")
			return nil
		},
	}
}
