package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

// Environment variables overriding the file.
const (
	EnvDatabaseDSN = "MAILACCT_DATABASE_DSN"
	EnvSecret      = "MAILACCT_SECRET"
)

// Config holds all mailacct configuration.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Cache    CacheConfig    `toml:"cache"`
	Log      LogConfig      `toml:"log"`
	Sanitize SanitizeConfig `toml:"sanitize"`
	Folders  FoldersConfig  `toml:"folders"`
	Worker   WorkerConfig   `toml:"worker"`
	Secret   SecretConfig   `toml:"secret"`
}

// DatabaseConfig selects the relational backend.
type DatabaseConfig struct {
	Driver string `toml:"driver" validate:"oneof=sqlite3 postgres"`
	DSN    string `toml:"dsn" validate:"required"`
}

// CacheConfig selects the cache in front of the database. Backend "none"
// disables caching.
type CacheConfig struct {
	Backend string      `toml:"backend" validate:"oneof=memory redis none"`
	TTL     string      `toml:"ttl" validate:"required"`
	Redis   RedisConfig `toml:"redis"`
}

// RedisConfig holds the Redis connection used when Backend is "redis".
type RedisConfig struct {
	Address  string `toml:"address" validate:"required_if=Enabled true"`
	Password string `toml:"password"`
	DB       int    `toml:"db" validate:"min=0"`
	Prefix   string `toml:"prefix"`
	Enabled  bool   `toml:"-"`
}

// LogConfig holds logrus settings.
type LogConfig struct {
	Level  string `toml:"level" validate:"oneof=trace debug info warn error"`
	Format string `toml:"format" validate:"oneof=text json"`
}

// SanitizeConfig controls the repair of broken server URLs.
type SanitizeConfig struct {
	OnRead         bool `toml:"on_read"`
	IMAPPort       int  `toml:"imap_port" validate:"min=1,max=65535"`
	IMAPSecurePort int  `toml:"imap_secure_port" validate:"min=1,max=65535"`
	SMTPPort       int  `toml:"smtp_port" validate:"min=1,max=65535"`
	SMTPSecurePort int  `toml:"smtp_secure_port" validate:"min=1,max=65535"`
}

// FoldersConfig holds the standard folder names given to new accounts.
type FoldersConfig struct {
	Trash         string `toml:"trash"`
	Sent          string `toml:"sent"`
	Drafts        string `toml:"drafts"`
	Spam          string `toml:"spam"`
	ConfirmedSpam string `toml:"confirmed_spam"`
	ConfirmedHam  string `toml:"confirmed_ham"`
	Archive       string `toml:"archive"`
	Prefix        string `toml:"prefix"`
	Separator     string `toml:"separator" validate:"max=1"`
}

// WorkerConfig sizes the pool for deferred session updates.
type WorkerConfig struct {
	Size int `toml:"size" validate:"min=1,max=1024"`
}

// SecretConfig names where the password encryption secret comes from.
type SecretConfig struct {
	Source      string `toml:"source" validate:"oneof=keyring env config"`
	Value       string `toml:"value" validate:"required_if=Source config"`
	KeyringUser string `toml:"keyring_user"`
}

func defaults() Config {
	return Config{
		Database: DatabaseConfig{
			Driver: "sqlite3",
			DSN:    filepath.Join(DataDir(), "mailacct.db"),
		},
		Cache: CacheConfig{
			Backend: "memory",
			TTL:     "10m",
			Redis:   RedisConfig{Address: "localhost:6379", Prefix: "mailacct:"},
		},
		Log: LogConfig{Level: "info", Format: "text"},
		Sanitize: SanitizeConfig{
			OnRead:         true,
			IMAPPort:       143,
			IMAPSecurePort: 993,
			SMTPPort:       25,
			SMTPSecurePort: 465,
		},
		Folders: FoldersConfig{
			Trash:         "Trash",
			Sent:          "Sent",
			Drafts:        "Drafts",
			Spam:          "Spam",
			ConfirmedSpam: "confirmed-spam",
			ConfirmedHam:  "confirmed-ham",
			Archive:       "Archive",
			Separator:     "/",
		},
		Worker: WorkerConfig{Size: 4},
		Secret: SecretConfig{Source: "keyring", KeyringUser: "default"},
	}
}

var validate = validator.New()

// Load reads config from path. If path is empty or missing, defaults are
// used. Environment overrides are applied before validation.
func Load(path string) (*Config, error) {
	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err == nil {
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}
	if dsn := os.Getenv(EnvDatabaseDSN); dsn != "" {
		cfg.Database.DSN = dsn
	}
	if secret := os.Getenv(EnvSecret); secret != "" {
		cfg.Secret.Value = secret
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	c.Cache.Redis.Enabled = c.Cache.Backend == "redis"
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("failed to validate config: %w", err)
		}
		var msgs []string
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s: failed %q", strings.ToLower(fe.Namespace()), fe.Tag()))
		}
		return fmt.Errorf("invalid config: %s", strings.Join(msgs, ", "))
	}
	if _, err := c.Cache.TTLDuration(); err != nil {
		return fmt.Errorf("invalid config: cache.ttl: %w", err)
	}
	if c.Secret.Source == "env" && c.Secret.Value == "" {
		return fmt.Errorf("invalid config: secret source is env but %s is not set", EnvSecret)
	}
	return nil
}

// TTLDuration parses TTL. Zero means entries never expire.
func (c CacheConfig) TTLDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.TTL)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", c.TTL)
	}
	return d, nil
}

// ConfigDir returns the mailacct config directory path.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "mailacct")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "mailacct")
}

// DataDir returns the mailacct data directory path.
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "mailacct")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "mailacct")
}
