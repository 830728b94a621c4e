package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lu-zhengda/mailacct/internal/app"
	"github.com/lu-zhengda/mailacct/internal/listener"
)

func newSanitizeCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "sanitize",
		Short: "Repair stored server URLs that no longer parse",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all {
				if err := requireUser(); err != nil {
					return err
				}
			}
			svc, _, err := openService(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			ctx := cmd.Context()
			if all {
				if err := svc.Sanitizer.SanitizeContext(ctx, contextID, svc.Storage); err != nil {
					return err
				}
				return printAction(cmd, jsonAction{Action: "sanitize"}, "Sanitized context %d", contextID)
			}
			if err := svc.Sanitizer.Sanitize(ctx, userID, contextID, svc.Storage); err != nil {
				return err
			}
			return printAction(cmd, jsonAction{Action: "sanitize", UserID: userID},
				"Sanitized accounts of user %d", userID)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "sanitize every user of the context")
	return cmd
}

func newPasswordsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "passwords",
		Short: "Maintain encrypted account passwords",
	}
	cmd.AddCommand(newPasswordsMigrateCmd())
	cmd.AddCommand(newPasswordsCleanupCmd())
	cmd.AddCommand(newPasswordsPurgeCmd())
	return cmd
}

// passwordCmd builds a per-user command that runs fn with the configured
// secret.
func passwordCmd(use, short, action, done string, fn func(cmd *cobra.Command, svc *app.Service, secret string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}
			svc, cfg, err := openService(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			secret, err := app.Secret(cfg.Secret)
			if err != nil {
				return err
			}
			if err := fn(cmd, svc, secret); err != nil {
				return err
			}
			return printAction(cmd, jsonAction{Action: action, UserID: userID}, done, userID)
		},
	}
}

func newPasswordsMigrateCmd() *cobra.Command {
	var oldSecret string

	cmd := passwordCmd("migrate", "Re-encrypt passwords from an old secret to the configured one",
		"passwords-migrate", "Migrated passwords of user %d",
		func(cmd *cobra.Command, svc *app.Service, secret string) error {
			return svc.Storage.MigratePasswords(cmd.Context(), userID, contextID, oldSecret, secret)
		})
	cmd.Flags().StringVar(&oldSecret, "old-secret", "", "secret the passwords are encrypted with")
	cmd.MarkFlagRequired("old-secret")
	return cmd
}

func newPasswordsCleanupCmd() *cobra.Command {
	return passwordCmd("cleanup", "Blank passwords the configured secret cannot decrypt",
		"passwords-cleanup", "Cleaned up passwords of user %d",
		func(cmd *cobra.Command, svc *app.Service, secret string) error {
			return svc.Storage.CleanUp(cmd.Context(), userID, contextID, secret)
		})
}

func newPasswordsPurgeCmd() *cobra.Command {
	return passwordCmd("purge", "Delete accounts whose password the configured secret cannot decrypt",
		"passwords-purge", "Removed unrecoverable accounts of user %d",
		func(cmd *cobra.Command, svc *app.Service, secret string) error {
			return svc.Storage.RemoveUnrecoverableItems(cmd.Context(), userID, contextID, secret)
		})
}

// inTx runs fn in a transaction on the service's database. Hooks fn
// registers run after the commit.
func inTx(ctx context.Context, svc *app.Service, fn func(tx *listener.Tx) error) error {
	stx, err := svc.DB.BeginTx(ctx)
	if err != nil {
		return err
	}
	tx := listener.WrapTx(stx)
	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			err = errors.Join(err, rerr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func newContextCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "context",
		Short: "Context-wide maintenance",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Delete all mail account data of the context",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := openService(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			ctx := cmd.Context()
			err = inTx(ctx, svc, func(tx *listener.Tx) error {
				return svc.ContextDelete.OnContextDelete(ctx, tx, contextID)
			})
			if err != nil {
				return err
			}
			return printAction(cmd, jsonAction{Action: "context-purge"}, "Purged context %d", contextID)
		},
	})
	return cmd
}

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "User-wide maintenance",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Delete all mail accounts of the user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}
			svc, _, err := openService(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			ctx := cmd.Context()
			err = inTx(ctx, svc, func(tx *listener.Tx) error {
				return svc.UserDelete.OnUserDelete(ctx, tx, userID, contextID)
			})
			if err != nil {
				return err
			}
			return printAction(cmd, jsonAction{Action: "user-purge", UserID: userID},
				"Purged mail accounts of user %d", userID)
		},
	})
	return cmd
}
