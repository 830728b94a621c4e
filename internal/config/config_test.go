package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/custom/data")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Database.Driver != "sqlite3" {
		t.Errorf("driver = %q, want %q", cfg.Database.Driver, "sqlite3")
	}
	if want := "/custom/data/mailacct/mailacct.db"; cfg.Database.DSN != want {
		t.Errorf("dsn = %q, want %q", cfg.Database.DSN, want)
	}
	if cfg.Cache.Backend != "memory" {
		t.Errorf("cache backend = %q, want %q", cfg.Cache.Backend, "memory")
	}
	if d, _ := cfg.Cache.TTLDuration(); d != 10*time.Minute {
		t.Errorf("cache ttl = %v, want 10m", d)
	}
	if !cfg.Sanitize.OnRead || cfg.Sanitize.IMAPSecurePort != 993 {
		t.Errorf("sanitize = %+v", cfg.Sanitize)
	}
	if cfg.Worker.Size != 4 {
		t.Errorf("worker size = %d, want 4", cfg.Worker.Size)
	}
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfig(t, `
[database]
driver = "postgres"
dsn = "postgres://localhost/mail?sslmode=disable"

[cache]
backend = "redis"
ttl = "30s"

[cache.redis]
address = "redis:6379"
db = 2

[log]
level = "debug"
format = "json"

[folders]
trash = "Papierkorb"
prefix = "INBOX"
separator = "."
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Database.Driver != "postgres" {
		t.Errorf("driver = %q, want postgres", cfg.Database.Driver)
	}
	if cfg.Cache.Redis.Address != "redis:6379" || cfg.Cache.Redis.DB != 2 {
		t.Errorf("redis = %+v", cfg.Cache.Redis)
	}
	if cfg.Cache.Redis.Prefix != "mailacct:" {
		t.Errorf("redis prefix = %q, want default", cfg.Cache.Redis.Prefix)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("log format = %q, want json", cfg.Log.Format)
	}
	if cfg.Folders.Trash != "Papierkorb" || cfg.Folders.Sent != "Sent" {
		t.Errorf("folders = %+v", cfg.Folders)
	}
}

func TestLoad_NonExistentFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.toml")
	if err != nil {
		t.Fatalf("Load() should return defaults for missing file, got error: %v", err)
	}
	if cfg.Cache.TTL != "10m" {
		t.Errorf("ttl = %q, want default %q", cfg.Cache.TTL, "10m")
	}
}

func TestLoad_InvalidTOML(t *testing.T) {
	_, err := Load(writeConfig(t, "not valid [[ toml"))
	if err == nil {
		t.Fatal("Load() should return error for invalid TOML")
	}
	if !strings.Contains(err.Error(), "failed to parse config") {
		t.Errorf("error = %q, want it to contain %q", err.Error(), "failed to parse config")
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"driver", "[database]\ndriver = \"mysql\"", "config.database.driver"},
		{"cache backend", "[cache]\nbackend = \"disk\"", "config.cache.backend"},
		{"ttl", "[cache]\nttl = \"soon\"", "cache.ttl"},
		{"log level", "[log]\nlevel = \"loud\"", "config.log.level"},
		{"port", "[sanitize]\nimap_port = 70000", "config.sanitize.imapport"},
		{"worker", "[worker]\nsize = 0", "config.worker.size"},
		{"secret value", "[secret]\nsource = \"config\"", "config.secret.value"},
		{"redis address", "[cache]\nbackend = \"redis\"\n[cache.redis]\naddress = \"\"", "config.cache.redis.address"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("Load() should fail")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to mention %q", err.Error(), tt.want)
			}
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvDatabaseDSN, "file:override.db")
	t.Setenv(EnvSecret, "from-env")
	cfg, err := Load(writeConfig(t, "[secret]\nsource = \"env\""))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Database.DSN != "file:override.db" {
		t.Errorf("dsn = %q, want override", cfg.Database.DSN)
	}
	if cfg.Secret.Value != "from-env" {
		t.Errorf("secret = %q, want from-env", cfg.Secret.Value)
	}
}

func TestLoad_EnvSecretMissing(t *testing.T) {
	t.Setenv(EnvSecret, "")
	_, err := Load(writeConfig(t, "[secret]\nsource = \"env\""))
	if err == nil || !strings.Contains(err.Error(), EnvSecret) {
		t.Errorf("err = %v, want it to mention %s", err, EnvSecret)
	}
}

func TestConfigDir(t *testing.T) {
	t.Run("with XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/custom/config")
		dir := ConfigDir()
		want := "/custom/config/mailacct"
		if dir != want {
			t.Errorf("ConfigDir() = %q, want %q", dir, want)
		}
	})
	t.Run("without XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		dir := ConfigDir()
		if !strings.HasSuffix(dir, filepath.Join(".config", "mailacct")) {
			t.Errorf("ConfigDir() = %q, want suffix %q", dir, filepath.Join(".config", "mailacct"))
		}
	})
}

func TestDataDir(t *testing.T) {
	t.Run("with XDG_DATA_HOME", func(t *testing.T) {
		t.Setenv("XDG_DATA_HOME", "/custom/data")
		dir := DataDir()
		want := "/custom/data/mailacct"
		if dir != want {
			t.Errorf("DataDir() = %q, want %q", dir, want)
		}
	})
	t.Run("without XDG_DATA_HOME", func(t *testing.T) {
		t.Setenv("XDG_DATA_HOME", "")
		dir := DataDir()
		if !strings.HasSuffix(dir, filepath.Join(".local", "share", "mailacct")) {
			t.Errorf("DataDir() = %q, want suffix %q", dir, filepath.Join(".local", "share", "mailacct"))
		}
	})
}
