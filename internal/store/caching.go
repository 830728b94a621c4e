package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/lu-zhengda/mailacct/internal/cache"
	"github.com/lu-zhengda/mailacct/internal/domain"
)

var (
	metricCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mailacct_cache_hits_total",
		Help: "Mail account lookups answered from the cache.",
	})
	metricCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mailacct_cache_misses_total",
		Help: "Mail account lookups that went to the underlying storage.",
	})
)

const (
	keyIDs          = "ids"
	keyUnifiedInbox = "unifiedinbox"
)

// userGroup holds a user's accounts, keyed by account ID, and the ID list.
func userGroup(userID, contextID int) string {
	return "mailaccount:" + strconv.Itoa(contextID) + ":" + strconv.Itoa(userID)
}

// resolveGroup holds the resolution results of a context.
func resolveGroup(contextID int) string {
	return "mailaccount-resolve:" + strconv.Itoa(contextID)
}

// CachingStorage is a read-through cache in front of another
// MailAccountStorage. Mutations go to the wrapped storage first; the
// affected cache entries are dropped afterwards.
type CachingStorage struct {
	MailAccountStorage

	cache    cache.Cache
	sessions SessionRegistry
	folders  FolderCacheInvalidator
	executor Executor

	loads singleflight.Group

	// gens counts the drops per group. Loads are shared and stored only
	// within one generation.
	genMu sync.Mutex
	gens  map[string]uint64
}

var _ MailAccountStorage = (*CachingStorage)(nil)

// CachingOption configures a CachingStorage.
type CachingOption func(*CachingStorage)

// WithSessions sets the registry whose sessions get their Unified-Inbox flag
// reset after a mutation.
func WithSessions(r SessionRegistry) CachingOption {
	return func(s *CachingStorage) { s.sessions = r }
}

// WithFolderCacheInvalidator sets the folder tree cache evicted after a
// mutation.
func WithFolderCacheInvalidator(f FolderCacheInvalidator) CachingOption {
	return func(s *CachingStorage) { s.folders = f }
}

// WithExecutor sets the executor running the session update. Without one the
// update runs inline.
func WithExecutor(e Executor) CachingOption {
	return func(s *CachingStorage) { s.executor = e }
}

// NewCachingStorage wraps next. A nil c disables caching; every call is then
// delegated.
func NewCachingStorage(next MailAccountStorage, c cache.Cache, opts ...CachingOption) *CachingStorage {
	s := &CachingStorage{MailAccountStorage: next, cache: c, gens: map[string]uint64{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func cached[T any](ctx context.Context, s *CachingStorage, group, key string, load func() (T, error)) (T, error) {
	if s.cache == nil {
		return load()
	}
	fields := logrus.Fields{"group": group, "key": key}
	b, err := s.cache.GetFromGroup(ctx, group, key)
	if err == nil {
		var v T
		if err := json.Unmarshal(b, &v); err == nil {
			metricCacheHits.Inc()
			return v, nil
		}
		log.WithFields(fields).Warn("dropping undecodable cache entry")
	} else if !errors.Is(err, cache.ErrMiss) {
		log.WithError(err).WithFields(fields).Warn("cache lookup failed")
	}
	metricCacheMisses.Inc()

	gen := s.generation(group)
	flight := group + "\x00" + strconv.FormatUint(gen, 10) + "\x00" + key
	v, err, _ := s.loads.Do(flight, func() (any, error) {
		v, err := load()
		if err != nil {
			return v, err
		}
		if s.generation(group) != gen {
			return v, nil
		}
		if b, err := json.Marshal(v); err != nil {
			log.WithError(err).WithFields(fields).Warn("failed to encode cache entry")
		} else if err := s.cache.PutInGroup(ctx, group, key, b); err != nil {
			log.WithError(err).WithFields(fields).Warn("failed to populate cache")
		}
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

func (s *CachingStorage) GetMailAccount(ctx context.Context, id, userID, contextID int) (*domain.MailAccount, error) {
	acc, err := cached(ctx, s, userGroup(userID, contextID), strconv.Itoa(id), func() (*domain.MailAccount, error) {
		return s.MailAccountStorage.GetMailAccount(ctx, id, userID, contextID)
	})
	if err != nil {
		return nil, err
	}
	// Callers may modify the account; the shared instance stays untouched.
	return acc.Clone(), nil
}

func (s *CachingStorage) GetDefaultMailAccount(ctx context.Context, userID, contextID int) (*domain.MailAccount, error) {
	return s.GetMailAccount(ctx, domain.DefaultID, userID, contextID)
}

func (s *CachingStorage) GetUserMailAccountIDs(ctx context.Context, userID, contextID int) ([]int, error) {
	return cached(ctx, s, userGroup(userID, contextID), keyIDs, func() ([]int, error) {
		return s.MailAccountStorage.GetUserMailAccountIDs(ctx, userID, contextID)
	})
}

func (s *CachingStorage) GetUserMailAccounts(ctx context.Context, userID, contextID int) ([]*domain.MailAccount, error) {
	ids, err := s.GetUserMailAccountIDs(ctx, userID, contextID)
	if err != nil {
		return nil, err
	}
	accounts := make([]*domain.MailAccount, 0, len(ids))
	for _, id := range ids {
		acc, err := s.GetMailAccount(ctx, id, userID, contextID)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acc)
	}
	return accounts, nil
}

func (s *CachingStorage) ExistsMailAccount(ctx context.Context, id, userID, contextID int) (bool, error) {
	_, err := s.GetMailAccount(ctx, id, userID, contextID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	}
	return s.MailAccountStorage.ExistsMailAccount(ctx, id, userID, contextID)
}

func (s *CachingStorage) GetUnifiedInboxAccountID(ctx context.Context, userID, contextID int) (int, error) {
	return cached(ctx, s, userGroup(userID, contextID), keyUnifiedInbox, func() (int, error) {
		return s.MailAccountStorage.GetUnifiedInboxAccountID(ctx, userID, contextID)
	})
}

func (s *CachingStorage) ResolveLogin(ctx context.Context, login string, contextID int) ([]UserAccount, error) {
	return cached(ctx, s, resolveGroup(contextID), "login:"+login, func() ([]UserAccount, error) {
		return s.MailAccountStorage.ResolveLogin(ctx, login, contextID)
	})
}

func (s *CachingStorage) ResolveLoginAtServer(ctx context.Context, login, serverAddr string, contextID int) ([]UserAccount, error) {
	key := "login:" + login + "@" + strings.ToLower(serverAddr)
	return cached(ctx, s, resolveGroup(contextID), key, func() ([]UserAccount, error) {
		return s.MailAccountStorage.ResolveLoginAtServer(ctx, login, serverAddr, contextID)
	})
}

func (s *CachingStorage) ResolvePrimaryAddr(ctx context.Context, primaryAddr string, contextID int) ([]UserAccount, error) {
	key := "primary:" + strings.ToLower(primaryAddr)
	return cached(ctx, s, resolveGroup(contextID), key, func() ([]UserAccount, error) {
		return s.MailAccountStorage.ResolvePrimaryAddr(ctx, primaryAddr, contextID)
	})
}

func (s *CachingStorage) InsertMailAccount(ctx context.Context, acc *domain.MailAccount, userID, contextID int, secret string) (int, error) {
	id, err := s.MailAccountStorage.InsertMailAccount(ctx, acc, userID, contextID, secret)
	if err != nil {
		return 0, err
	}
	s.drop(ctx, userID, contextID)
	s.changed(ctx, userID, contextID)
	return id, nil
}

func (s *CachingStorage) UpdateMailAccount(ctx context.Context, acc *domain.MailAccount, attrs domain.AttributeSet, userID, contextID int, secret string) error {
	err := s.MailAccountStorage.UpdateMailAccount(ctx, acc, attrs, userID, contextID, secret)
	s.drop(ctx, userID, contextID)
	if err != nil {
		return err
	}
	s.changed(ctx, userID, contextID)
	s.repopulate(ctx, acc.ID, userID, contextID)
	return nil
}

func (s *CachingStorage) ReplaceMailAccount(ctx context.Context, acc *domain.MailAccount, userID, contextID int, secret string) error {
	err := s.MailAccountStorage.ReplaceMailAccount(ctx, acc, userID, contextID, secret)
	s.drop(ctx, userID, contextID)
	if err != nil {
		return err
	}
	s.changed(ctx, userID, contextID)
	s.repopulate(ctx, acc.ID, userID, contextID)
	return nil
}

func (s *CachingStorage) DeleteMailAccount(ctx context.Context, id int, props EventProps, userID, contextID int, deletePrimary bool) error {
	err := s.MailAccountStorage.DeleteMailAccount(ctx, id, props, userID, contextID, deletePrimary)
	s.drop(ctx, userID, contextID)
	if err != nil {
		return err
	}
	s.changed(ctx, userID, contextID)
	return nil
}

func (s *CachingStorage) DeleteUserMailAccounts(ctx context.Context, userID, contextID int) error {
	err := s.MailAccountStorage.DeleteUserMailAccounts(ctx, userID, contextID)
	s.drop(ctx, userID, contextID)
	if err != nil {
		return err
	}
	s.changed(ctx, userID, contextID)
	return nil
}

func (s *CachingStorage) EnableMailAccount(ctx context.Context, id, userID, contextID int) error {
	err := s.MailAccountStorage.EnableMailAccount(ctx, id, userID, contextID)
	s.drop(ctx, userID, contextID)
	if err != nil {
		return err
	}
	s.changed(ctx, userID, contextID)
	return nil
}

func (s *CachingStorage) EnableTransportAccount(ctx context.Context, id, userID, contextID int) error {
	err := s.MailAccountStorage.EnableTransportAccount(ctx, id, userID, contextID)
	s.drop(ctx, userID, contextID)
	if err != nil {
		return err
	}
	s.changed(ctx, userID, contextID)
	return nil
}

func (s *CachingStorage) MigratePasswords(ctx context.Context, userID, contextID int, oldSecret, newSecret string) error {
	err := s.MailAccountStorage.MigratePasswords(ctx, userID, contextID, oldSecret, newSecret)
	s.drop(ctx, userID, contextID)
	return err
}

func (s *CachingStorage) CleanUp(ctx context.Context, userID, contextID int, secret string) error {
	err := s.MailAccountStorage.CleanUp(ctx, userID, contextID, secret)
	s.drop(ctx, userID, contextID)
	return err
}

func (s *CachingStorage) RemoveUnrecoverableItems(ctx context.Context, userID, contextID int, secret string) error {
	err := s.MailAccountStorage.RemoveUnrecoverableItems(ctx, userID, contextID, secret)
	s.drop(ctx, userID, contextID)
	if err != nil {
		return err
	}
	s.changed(ctx, userID, contextID)
	return nil
}

func (s *CachingStorage) InvalidateMailAccount(ctx context.Context, id, userID, contextID int) error {
	s.drop(ctx, userID, contextID)
	return s.MailAccountStorage.InvalidateMailAccount(ctx, id, userID, contextID)
}

func (s *CachingStorage) InvalidateMailAccounts(ctx context.Context, userID, contextID int) error {
	s.drop(ctx, userID, contextID)
	return s.MailAccountStorage.InvalidateMailAccounts(ctx, userID, contextID)
}

// drop removes the user's entries and the context's resolution results.
func (s *CachingStorage) drop(ctx context.Context, userID, contextID int) {
	if s.cache == nil {
		return
	}
	for _, g := range []string{userGroup(userID, contextID), resolveGroup(contextID)} {
		s.bump(g)
		if err := s.cache.InvalidateGroup(ctx, g); err != nil {
			log.WithError(err).WithField("group", g).Warn("failed to invalidate cache group")
		}
	}
}

func (s *CachingStorage) generation(group string) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.gens[group]
}

func (s *CachingStorage) bump(group string) {
	s.genMu.Lock()
	s.gens[group]++
	s.genMu.Unlock()
}

func (s *CachingStorage) repopulate(ctx context.Context, id, userID, contextID int) {
	if s.cache == nil {
		return
	}
	if _, err := s.GetMailAccount(ctx, id, userID, contextID); err != nil {
		log.WithError(err).WithFields(logrus.Fields{"account": id, "user": userID, "context": contextID}).
			Debug("failed to repopulate cache")
	}
}

// changed propagates a mutation to the user's folder trees and sessions.
func (s *CachingStorage) changed(ctx context.Context, userID, contextID int) {
	if s.folders != nil {
		if err := s.folders.InvalidateFolderTrees(ctx, userID, contextID); err != nil {
			log.WithError(err).WithFields(logrus.Fields{"user": userID, "context": contextID}).
				Warn("failed to invalidate folder trees")
		}
	}
	if s.sessions == nil {
		return
	}
	reset := func() {
		for _, sess := range s.sessions.UserSessions(userID, contextID) {
			sess.SetParameter(ParamUnifiedInboxEnabled, nil)
		}
	}
	if s.executor == nil {
		reset()
		return
	}
	s.executor.Submit(reset)
}
