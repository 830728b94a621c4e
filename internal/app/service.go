// Package app assembles the mail account storage from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/lu-zhengda/mailacct/internal/cache"
	"github.com/lu-zhengda/mailacct/internal/config"
	"github.com/lu-zhengda/mailacct/internal/crypto"
	"github.com/lu-zhengda/mailacct/internal/listener"
	"github.com/lu-zhengda/mailacct/internal/oauth"
	"github.com/lu-zhengda/mailacct/internal/session"
	"github.com/lu-zhengda/mailacct/internal/store"
	"github.com/lu-zhengda/mailacct/internal/store/rdb"
	"github.com/lu-zhengda/mailacct/internal/worker"
)

var log = logrus.WithField("component", "app")

// Deps are the collaborators supplied by the embedding server. Nil fields get
// local defaults.
type Deps struct {
	Cryptor  store.Cryptor
	OAuth    *oauth.KeyringService
	Sessions store.SessionRegistry
	Folders  store.FolderCacheInvalidator
	Aliases  store.AliasProvider
	POP3     store.POP3FolderRemover
	Cache    cache.Cache
}

// Service is the assembled storage stack.
type Service struct {
	// Storage is the outermost layer; callers use it for all account
	// operations.
	Storage   store.MailAccountStorage
	DB        *rdb.DB
	Sanitizer *store.Sanitizer
	OAuth     *oauth.KeyringService

	UserDelete    *listener.UserDeleteListener
	ContextDelete *listener.ContextDeleteListener

	cache cache.Cache
	pool  *worker.Pool
}

// NewStorageService opens the database and builds the decorator chain
// sanitizing -> caching -> relational.
func NewStorageService(ctx context.Context, cfg *config.Config, deps Deps) (*Service, error) {
	if deps.Cryptor == nil {
		deps.Cryptor = crypto.NewService()
	}
	if deps.OAuth == nil {
		deps.OAuth = oauth.NewKeyringService(oauth.NewKeyringTokenStore())
	}
	if deps.Sessions == nil {
		deps.Sessions = session.NewRegistry()
	}

	if err := ensureDataDir(cfg.Database); err != nil {
		return nil, err
	}
	folders := &store.DefaultFolderNames{
		Names: store.FolderNames{
			Trash:         cfg.Folders.Trash,
			Sent:          cfg.Folders.Sent,
			Drafts:        cfg.Folders.Drafts,
			Spam:          cfg.Folders.Spam,
			ConfirmedSpam: cfg.Folders.ConfirmedSpam,
			ConfirmedHam:  cfg.Folders.ConfirmedHam,
			Archive:       cfg.Folders.Archive,
		},
		Prefix:    cfg.Folders.Prefix,
		Separator: cfg.Folders.Separator,
	}
	opts := []rdb.Option{
		rdb.WithFolderNames(folders),
		rdb.WithDeleteListener(listener.NewOAuthDeleteListener(deps.OAuth)),
	}
	if deps.Aliases != nil {
		opts = append(opts, rdb.WithAliases(deps.Aliases))
	}
	if deps.POP3 != nil {
		opts = append(opts, rdb.WithPOP3FolderRemover(deps.POP3))
	}
	db, err := rdb.Open(cfg.Database.Driver, cfg.Database.DSN, deps.Cryptor, opts...)
	if err != nil {
		return nil, err
	}

	c := deps.Cache
	if c == nil {
		if c, err = newCache(ctx, cfg.Cache); err != nil {
			db.Close()
			return nil, err
		}
	}

	pool := worker.NewPool(cfg.Worker.Size)
	copts := []store.CachingOption{
		store.WithSessions(deps.Sessions),
		store.WithExecutor(pool),
	}
	if deps.Folders != nil {
		copts = append(copts, store.WithFolderCacheInvalidator(deps.Folders))
	}
	var storage store.MailAccountStorage = store.NewCachingStorage(db, c, copts...)

	sanitizer := store.NewSanitizer(db)
	sanitizer.IMAP = store.URIDefaults{Protocol: "imap", Port: cfg.Sanitize.IMAPPort, SecurePort: cfg.Sanitize.IMAPSecurePort}
	sanitizer.SMTP = store.URIDefaults{Protocol: "smtp", Port: cfg.Sanitize.SMTPPort, SecurePort: cfg.Sanitize.SMTPSecurePort}
	if cfg.Sanitize.OnRead {
		storage = store.NewSanitizingStorage(storage, sanitizer)
	}

	deps.OAuth.OnDelete(listener.NewOAuthAccountDeleteListener(storage))
	deps.OAuth.OnReauthorize(listener.NewReauthorizeListener(storage))

	log.WithFields(logrus.Fields{
		"driver":   cfg.Database.Driver,
		"cache":    cfg.Cache.Backend,
		"sanitize": cfg.Sanitize.OnRead,
	}).Debug("storage service ready")

	return &Service{
		Storage:       storage,
		DB:            db,
		Sanitizer:     sanitizer,
		OAuth:         deps.OAuth,
		UserDelete:    listener.NewUserDeleteListener(db, storage),
		ContextDelete: listener.NewContextDeleteListener(db, storage),
		cache:         c,
		pool:          pool,
	}, nil
}

func ensureDataDir(cfg config.DatabaseConfig) error {
	if cfg.Driver != "sqlite3" || cfg.DSN == ":memory:" || strings.HasPrefix(cfg.DSN, "file:") {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DSN), 0700); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	return nil
}

func newCache(ctx context.Context, cfg config.CacheConfig) (cache.Cache, error) {
	ttl, err := cfg.TTLDuration()
	if err != nil {
		return nil, fmt.Errorf("failed to parse cache ttl: %w", err)
	}
	switch cfg.Backend {
	case "none":
		return nil, nil
	case "redis":
		r := cache.NewRedis(cache.RedisOptions{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
			TTL:      ttl,
		})
		if err := r.Ping(ctx); err != nil {
			r.Close()
			return nil, err
		}
		return r, nil
	default:
		return cache.NewMemory(ttl), nil
	}
}

// Close waits for deferred work and releases the cache and database.
func (s *Service) Close() error {
	s.pool.Wait()
	var errs []error
	if s.cache != nil {
		errs = append(errs, s.cache.Close())
	}
	errs = append(errs, s.DB.Close())
	return errors.Join(errs...)
}

// Secret returns the password encryption secret named by cfg.
func Secret(cfg config.SecretConfig) (string, error) {
	switch cfg.Source {
	case "config", "env":
		if cfg.Value == "" {
			return "", fmt.Errorf("no secret configured for source %s", cfg.Source)
		}
		return cfg.Value, nil
	default:
		return crypto.NewKeyringSecret(cfg.KeyringUser).Load()
	}
}
