package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lu-zhengda/mailacct/internal/app"
	"github.com/lu-zhengda/mailacct/internal/domain"
	"github.com/lu-zhengda/mailacct/internal/store"
)

func newAccountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage the mail accounts of a user",
	}
	cmd.AddCommand(newAccountListCmd())
	cmd.AddCommand(newAccountGetCmd())
	cmd.AddCommand(newAccountAddCmd())
	cmd.AddCommand(newAccountUpdateCmd())
	cmd.AddCommand(newAccountDeleteCmd())
	cmd.AddCommand(newAccountEnableCmd())
	cmd.AddCommand(newResolveLoginCmd())
	cmd.AddCommand(newResolveAddrCmd())
	cmd.AddCommand(newByHostCmd())
	return cmd
}

func parseAccountID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("invalid account ID: %s", s)
	}
	return id, nil
}

func writeAccounts(w io.Writer, accounts []*domain.MailAccount) error {
	tw := newTable(w, "ID", "NAME", "LOGIN", "PRIMARY", "MAIL", "TRANSPORT")
	for _, a := range accounts {
		name := a.Name
		if a.IsDefault() {
			name += " (default)"
		}
		transport := "-"
		if a.HasTransport() {
			transport = a.GenerateTransportServerURL()
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			a.ID, name, a.Login, a.PrimaryAddress, a.GenerateMailServerURL(), transport)
	}
	return tw.Flush()
}

func newAccountListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the accounts of a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}
			svc, _, err := openService(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			accounts, err := svc.Storage.GetUserMailAccounts(cmd.Context(), userID, contextID)
			if err != nil {
				return fmt.Errorf("failed to list accounts: %w", err)
			}
			if jsonFlag {
				return printJSON(cmd, toJSONAccounts(accounts))
			}
			if len(accounts) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No mail accounts for user %d.\n", userID)
				return nil
			}
			return writeAccounts(cmd.OutOrStdout(), accounts)
		},
	}
}

func newAccountGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}
			id, err := parseAccountID(args[0])
			if err != nil {
				return err
			}
			svc, _, err := openService(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			acc, err := svc.Storage.GetMailAccount(cmd.Context(), id, userID, contextID)
			if err != nil {
				return err
			}
			if jsonFlag {
				return printJSON(cmd, toJSONAccount(acc))
			}
			return writeAccounts(cmd.OutOrStdout(), []*domain.MailAccount{acc})
		},
	}
}

func newAccountAddCmd() *cobra.Command {
	acc := domain.NewMailAccount()

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an account",
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
			id, err := svc.Storage.InsertMailAccount(cmd.Context(), acc, userID, contextID, secret)
			if err != nil {
				return err
			}
			return printAction(cmd, jsonAction{Action: "add", AccountID: &id, UserID: userID},
				"Account added: %d", id)
		},
	}
	bindAccountFlags(cmd.Flags(), acc)
	cmd.Flags().BoolVar(&acc.DefaultFlag, "default", false, "make this the user's primary account")
	return cmd
}

func newAccountUpdateCmd() *cobra.Command {
	acc := domain.NewMailAccount()

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change the attributes given as flags",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}
			id, err := parseAccountID(args[0])
			if err != nil {
				return err
			}
			attrs := changedAttributes(cmd.Flags())
			if len(attrs) == 0 {
				return errors.New("nothing to update; pass at least one attribute flag")
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
			acc.ID = id
			if err := svc.Storage.UpdateMailAccount(cmd.Context(), acc, attrs, userID, contextID, secret); err != nil {
				return err
			}
			names := make([]string, 0, len(attrs))
			for _, a := range attrs.Sorted() {
				names = append(names, a.String())
			}
			return printAction(cmd, jsonAction{Action: "update", AccountID: &id, UserID: userID, Attributes: names},
				"Account %d updated: %s", id, attrs)
		},
	}
	bindAccountFlags(cmd.Flags(), acc)
	return cmd
}

func newAccountDeleteCmd() *cobra.Command {
	var primary bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}
			id, err := parseAccountID(args[0])
			if err != nil {
				return err
			}
			svc, _, err := openService(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			if err := svc.Storage.DeleteMailAccount(cmd.Context(), id, nil, userID, contextID, primary); err != nil {
				return err
			}
			return printAction(cmd, jsonAction{Action: "delete", AccountID: &id, UserID: userID},
				"Account deleted: %d", id)
		},
	}
	cmd.Flags().BoolVar(&primary, "primary", false, "allow deleting the primary account")
	return cmd
}

func newAccountEnableCmd() *cobra.Command {
	var transport bool

	cmd := &cobra.Command{
		Use:   "enable <id>",
		Short: "Re-enable mail or transport access of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}
			id, err := parseAccountID(args[0])
			if err != nil {
				return err
			}
			svc, _, err := openService(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			enable, side := svc.Storage.EnableMailAccount, "mail"
			if transport {
				enable, side = svc.Storage.EnableTransportAccount, "transport"
			}
			if err := enable(cmd.Context(), id, userID, contextID); err != nil {
				return err
			}
			return printAction(cmd, jsonAction{Action: "enable-" + side, AccountID: &id, UserID: userID},
				"Enabled %s access of account %d", side, id)
		},
	}
	cmd.Flags().BoolVar(&transport, "transport", false, "enable the transport side instead of the mail side")
	return cmd
}

func writeUserAccounts(cmd *cobra.Command, l []store.UserAccount) error {
	if jsonFlag {
		return printJSON(cmd, toJSONUserAccounts(l))
	}
	if len(l) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No matching accounts.")
		return nil
	}
	tw := newTable(cmd.OutOrStdout(), "USER", "ACCOUNT")
	for _, u := range l {
		fmt.Fprintf(tw, "%d\t%d\n", u.UserID, u.AccountID)
	}
	return tw.Flush()
}

func newResolveLoginCmd() *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:   "resolve-login <login>",
		Short: "Find the accounts using a login in the context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := openService(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			var l []store.UserAccount
			if server != "" {
				l, err = svc.Storage.ResolveLoginAtServer(cmd.Context(), args[0], server, contextID)
			} else {
				l, err = svc.Storage.ResolveLogin(cmd.Context(), args[0], contextID)
			}
			if err != nil {
				return err
			}
			return writeUserAccounts(cmd, l)
		},
	}
	cmd.Flags().StringVar(&server, "server", "", "restrict to a mail server (host[:port])")
	return cmd
}

func newResolveAddrCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve-addr <address>",
		Short: "Find the accounts with a primary address in the context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := openService(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			l, err := svc.Storage.ResolvePrimaryAddr(cmd.Context(), args[0], contextID)
			if err != nil {
				return err
			}
			return writeUserAccounts(cmd, l)
		},
	}
}

func newByHostCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "by-host <host>...",
		Short: "List the user's accounts on any of the given mail hosts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}
			svc, _, err := openService(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			accounts, err := svc.Storage.GetByHostNames(cmd.Context(), args, userID, contextID)
			if err != nil {
				return err
			}
			if jsonFlag {
				return printJSON(cmd, toJSONAccounts(accounts))
			}
			return writeAccounts(cmd.OutOrStdout(), accounts)
		},
	}
}
