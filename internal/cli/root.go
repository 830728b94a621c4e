package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lu-zhengda/mailacct/internal/app"
	"github.com/lu-zhengda/mailacct/internal/config"
)

var (
	// version is set via ldflags at build time.
	version = "dev"
	cfgFile string

	// jsonFlag enables JSON output for all commands.
	jsonFlag bool

	userID    int
	contextID int
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "mailacct",
		Short:        "Mail account storage administration",
		Long:         "Inspect and maintain the mail accounts stored for the users of a context.",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("failed to load .env: %w", err)
			}
			return nil
		},
	}
	root.SetVersionTemplate(fmt.Sprintf("mailacct %s\n", version))
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	root.PersistentFlags().BoolVar(&jsonFlag, "json", false, "output in JSON format")
	root.PersistentFlags().IntVarP(&userID, "user", "u", -1, "user ID")
	root.PersistentFlags().IntVarP(&contextID, "context", "c", 1, "context ID")
	root.AddCommand(newAccountCmd())
	root.AddCommand(newSanitizeCmd())
	root.AddCommand(newPasswordsCmd())
	root.AddCommand(newContextCmd())
	root.AddCommand(newUserCmd())
	return root
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig loads the application configuration and applies its logging
// settings.
func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		path = filepath.Join(config.ConfigDir(), "config.toml")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := setupLogging(cfg.Log); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupLogging(cfg config.LogConfig) error {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %w", err)
	}
	logrus.SetLevel(level)
	if cfg.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}

// openService loads the config and assembles the storage stack.
func openService(cmd *cobra.Command) (*app.Service, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	svc, err := app.NewStorageService(cmd.Context(), cfg, app.Deps{})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open storage: %w", err)
	}
	return svc, cfg, nil
}

// requireUser fails unless --user was given.
func requireUser() error {
	if userID < 0 {
		return errors.New("--user is required")
	}
	return nil
}

// printAction writes the outcome of a mutating command.
func printAction(cmd *cobra.Command, a jsonAction, text string, args ...any) error {
	if jsonFlag {
		a.OK = true
		a.ContextID = contextID
		return printJSON(cmd, a)
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), text+"\n", args...)
	return err
}
