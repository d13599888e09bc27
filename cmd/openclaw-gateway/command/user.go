// Copyright (c) 2025 Justin Cranford

package command

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/spf13/cobra"

	"github.com/CohesiumAI/openclaw-sub001/internal/gateway/credentials"
	"github.com/CohesiumAI/openclaw-sub001/internal/gateway/crypto"
	"github.com/CohesiumAI/openclaw-sub001/internal/shared/magic"
)

func newUserCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Manage gateway user accounts"}
	cmd.AddCommand(
		newUserCreateCommand(),
		newUserListCommand(),
		newUserDeleteCommand(),
		newUserPasswdCommand(),
		newUserResetPasswordCommand(),
		newUserRenameCommand(),
		newUserRecoveryCodeCommand(),
		newUserRevokeCommand(),
		newUserTOTPSetupCommand(),
		newUserTOTPDisableCommand(),
		newUserTOTPBackupRegenerateCommand(),
	)
	return cmd
}

func newUserCreateCommand() *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "create <username> <password>",
		Short: "Create a new user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fail(cmd, "load config: %v", err)
			}
			store, err := openCredentials(cfg)
			if err != nil {
				return fail(cmd, "open credentials: %v", err)
			}
			hash, err := crypto.HashPassword(args[1])
			if err != nil {
				return fail(cmd, "hash password: %v", err)
			}
			user := &credentials.User{Username: args[0], PasswordHash: hash, Role: magic.Role(role)}
			if err := store.Create(user); err != nil {
				return fail(cmd, "create user: %v", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %s (role=%s)\n", user.Username, user.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", string(magic.RoleReadOnly), "role: admin|operator|read-only")
	return cmd
}

func newUserListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fail(cmd, "load config: %v", err)
			}
			store, err := openCredentials(cfg)
			if err != nil {
				return fail(cmd, "open credentials: %v", err)
			}
			for _, u := range store.List() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\ttotp=%v\n", u.Username, u.Role, u.TOTPEnabled)
			}
			return nil
		},
	}
}

func newUserDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <username>",
		Short: "Delete a user",
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
			if err := store.Delete(args[0]); err != nil {
				return fail(cmd, "delete user: %v", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted user %s\n", args[0])
			return nil
		},
	}
}

func newUserPasswdCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "passwd <username> <new-password>",
		Short: "Set a user's password",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setPassword(cmd, args[0], args[1])
		},
	}
}

func newUserResetPasswordCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-password <username> <new-password>",
		Short: "Reset a user's password (administrative, bypasses current-password check)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setPassword(cmd, args[0], args[1])
		},
	}
}

func setPassword(cmd *cobra.Command, username, password string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fail(cmd, "load config: %v", err)
	}
	store, err := openCredentials(cfg)
	if err != nil {
		return fail(cmd, "open credentials: %v", err)
	}
	hash, err := crypto.HashPassword(password)
	if err != nil {
		return fail(cmd, "hash password: %v", err)
	}
	if err := store.UpdatePassword(username, hash); err != nil {
		return fail(cmd, "update password: %v", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "password updated for %s\n", username)
	return nil
}

func newUserRenameCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <username> <new-username>",
		Short: "Rename a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fail(cmd, "load config: %v", err)
			}
			store, err := openCredentials(cfg)
			if err != nil {
				return fail(cmd, "open credentials: %v", err)
			}
			if err := store.UpdateUsername(args[0], args[1]); err != nil {
				return fail(cmd, "rename user: %v", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "renamed %s to %s\n", args[0], args[1])
			return nil
		},
	}
}

func newUserRecoveryCodeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "recovery-code <username>",
		Short: "Generate and set a new numeric recovery code",
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
			digits := make([]byte, magic.BackupCodeLen)
			for i := range digits {
				d, err := rand.Int(rand.Reader, big.NewInt(10))
				if err != nil {
					return fail(cmd, "generate recovery code: %v", err)
				}
				digits[i] = byte('0' + d.Int64())
			}
			recoveryCode := string(digits)
			hash, err := crypto.HashBackupCode(recoveryCode)
			if err != nil {
				return fail(cmd, "hash recovery code: %v", err)
			}
			if err := store.UpdateRecoveryCode(args[0], hash); err != nil {
				return fail(cmd, "set recovery code: %v", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "recovery code for %s: %s\n", args[0], recoveryCode)
			return nil
		},
	}
}

func newUserRevokeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <username>",
		Short: "Print how to revoke a user's sessions on a running gateway (revokes nothing itself)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fail(cmd, "load config: %v", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "session revocation for %s requires a running gateway; call the admin HTTP endpoint POST /api/users/%s/revoke-sessions (stateDir=%s)\n", args[0], args[0], cfg.StateDir)
			return nil
		},
	}
}

func newUserTOTPSetupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "totp-setup <username>",
		Short: "Begin TOTP enrolment, printing the secret and provisioning URI",
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
			secret, err := crypto.GenerateTOTPSecret()
			if err != nil {
				return fail(cmd, "generate totp secret: %v", err)
			}
			if err := store.UpdateTOTP(args[0], credentials.TOTPFields{Enabled: false, Secret: secret}); err != nil {
				return fail(cmd, "save pending totp secret: %v", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "secret: %s\nprovisioning uri: %s\n", secret, crypto.TOTPProvisioningURI("OpenClaw", args[0], secret))
			return nil
		},
	}
}

func newUserTOTPDisableCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "totp-disable <username>",
		Short: "Disable TOTP for a user",
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
			if err := store.UpdateTOTP(args[0], credentials.TOTPFields{Enabled: false}); err != nil {
				return fail(cmd, "disable totp: %v", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "totp disabled for %s\n", args[0])
			return nil
		},
	}
}

func newUserTOTPBackupRegenerateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "totp-backup-regenerate <username>",
		Short: "Regenerate backup codes for a TOTP-enabled user",
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
			user := store.Get(args[0])
			if user == nil {
				return fail(cmd, "user not found: %s", args[0])
			}
			if !user.TOTPEnabled {
				return fail(cmd, "totp is not enabled for %s", args[0])
			}
			codes, err := crypto.GenerateBackupCodes(magic.BackupCodeCount)
			if err != nil {
				return fail(cmd, "generate backup codes: %v", err)
			}
			hashes := make([]string, 0, len(codes))
			for _, code := range codes {
				h, err := crypto.HashBackupCode(code)
				if err != nil {
					return fail(cmd, "hash backup code: %v", err)
				}
				hashes = append(hashes, h)
			}
			fields := credentials.TOTPFields{Enabled: true, Secret: user.TOTPSecret, BackupCodeHashes: hashes, LastUsedCode: user.LastUsedTOTPCode}
			if err := store.UpdateTOTP(args[0], fields); err != nil {
				return fail(cmd, "save backup codes: %v", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "backup codes:")
			for _, code := range codes {
				fmt.Fprintln(cmd.OutOrStdout(), " ", code)
			}
			return nil
		},
	}
}
