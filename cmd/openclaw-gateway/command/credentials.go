// Copyright (c) 2025 Justin Cranford

package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CohesiumAI/openclaw-sub001/internal/gateway/session"
)

// newCredentialsCommand implements `credentials encrypt|decrypt|rotate`,
// the CLI verbs for the bidirectional encrypted/plaintext conversion
// named in spec.md §4.4/§9.
func newCredentialsCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "credentials", Short: "Manage the on-disk credentials file encryption wrapper"}
	cmd.AddCommand(newCredentialsEncryptCommand(), newCredentialsDecryptCommand(), newCredentialsRotateCommand())
	return cmd
}

func newCredentialsEncryptCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt <password>",
		Short: "Wrap the credentials file in an encrypted envelope",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fail(cmd, "load config: %v", err)
			}
			store, err := openCredentials(cfg)
			if err != nil {
				return fail(cmd, "open credentials: %v", err)
			}
			if err := store.SetEncryption(args[0]); err != nil {
				return fail(cmd, "encrypt credentials: %v", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "credentials file is now encrypted")
			return nil
		},
	}
}

func newCredentialsDecryptCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "decrypt",
		Short: "Remove the encrypted envelope, writing plaintext JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fail(cmd, "load config: %v", err)
			}
			store, err := openCredentials(cfg)
			if err != nil {
				return fail(cmd, "open credentials: %v", err)
			}
			if err := store.SetEncryption(""); err != nil {
				return fail(cmd, "decrypt credentials: %v", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "credentials file is now plaintext")
			return nil
		},
	}
}

func newCredentialsRotateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rotate",
		Short: "Rotate the session-persistence machine key, re-encrypting persisted sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fail(cmd, "load config: %v", err)
			}
			persistence, err := session.NewPersistence(cfg.StateDir, session.New(), nil)
			if err != nil {
				return fail(cmd, "load machine key: %v", err)
			}
			restored := persistence.Load()
			if err := persistence.RotateKey(cfg.StateDir); err != nil {
				return fail(cmd, "rotate machine key: %v", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "machine key rotated; %d persisted sessions re-encrypted\n", restored)
			return nil
		},
	}
}
