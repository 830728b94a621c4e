// Package oauth manages the OAuth accounts that mail accounts authenticate
// with.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

var log = logrus.WithField("component", "oauth")

// Scopes an OAuth account can be authorized for.
const (
	ScopeMail     = "mail"
	ScopeCalendar = "calendar"
	ScopeContacts = "contacts"
)

// ErrNotFound is returned for unknown OAuth accounts.
var ErrNotFound = errors.New("oauth account not found")

// Account is an OAuth grant of one user.
type Account struct {
	ID          int           `json:"id"`
	UserID      int           `json:"user_id"`
	ContextID   int           `json:"context_id"`
	DisplayName string        `json:"display_name"`
	Provider    string        `json:"provider"`
	Scopes      []string      `json:"scopes"`
	Token       *oauth2.Token `json:"-"`
}

// HasScope reports whether scope is enabled on a.
func (a *Account) HasScope(scope string) bool {
	return slices.Contains(a.Scopes, scope)
}

// Service is the OAuth account store used by the mail account listeners.
type Service interface {
	GetAccount(ctx context.Context, id, userID, contextID int) (*Account, error)
	ListAccounts(ctx context.Context, userID, contextID int) ([]*Account, error)
	UpdateScopes(ctx context.Context, id, userID, contextID int, scopes []string) error
	DeleteAccount(ctx context.Context, id, userID, contextID int) error
}

// DeletionObserver is told about deleted OAuth accounts.
type DeletionObserver interface {
	OnOAuthAccountDeleted(ctx context.Context, acc *Account) error
}

// ReauthorizationObserver is told when an OAuth account got a fresh grant.
type ReauthorizationObserver interface {
	OnReauthorized(ctx context.Context, acc *Account) error
}

// TokenStore persists tokens outside the account metadata.
type TokenStore interface {
	SaveToken(key string, token *oauth2.Token) error
	LoadToken(key string) (*oauth2.Token, error)
	DeleteToken(key string) error
}

type accountKey struct{ contextID, userID, id int }

func (k accountKey) String() string {
	return fmt.Sprintf("%d.%d.%d", k.contextID, k.userID, k.id)
}

// KeyringService keeps account metadata in memory and tokens in a
// TokenStore, normally the OS keyring.
type KeyringService struct {
	tokens TokenStore

	mu       sync.Mutex
	accounts map[accountKey]*Account
	nextID   map[int]int

	deleted      []DeletionObserver
	reauthorized []ReauthorizationObserver
}

var _ Service = (*KeyringService)(nil)

func NewKeyringService(tokens TokenStore) *KeyringService {
	return &KeyringService{
		tokens:   tokens,
		accounts: map[accountKey]*Account{},
		nextID:   map[int]int{},
	}
}

// OnDelete registers an observer for account deletion.
func (s *KeyringService) OnDelete(o DeletionObserver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, o)
}

// OnReauthorize registers an observer for reauthorization.
func (s *KeyringService) OnReauthorize(o ReauthorizationObserver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reauthorized = append(s.reauthorized, o)
}

func clone(a *Account) *Account {
	c := *a
	c.Scopes = slices.Clone(a.Scopes)
	return &c
}

// CreateAccount stores acc and its token and returns the new ID, unique per
// context.
func (s *KeyringService) CreateAccount(ctx context.Context, acc *Account) (int, error) {
	s.mu.Lock()
	s.nextID[acc.ContextID]++
	a := clone(acc)
	a.ID = s.nextID[acc.ContextID]
	a.Token = nil
	key := accountKey{a.ContextID, a.UserID, a.ID}
	s.accounts[key] = a
	s.mu.Unlock()

	if acc.Token != nil {
		if err := s.tokens.SaveToken(key.String(), acc.Token); err != nil {
			s.mu.Lock()
			delete(s.accounts, key)
			s.mu.Unlock()
			return 0, err
		}
	}
	return a.ID, nil
}

func (s *KeyringService) GetAccount(ctx context.Context, id, userID, contextID int) (*Account, error) {
	key := accountKey{contextID, userID, id}
	s.mu.Lock()
	a, ok := s.accounts[key]
	if ok {
		a = clone(a)
	}
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	token, err := s.tokens.LoadToken(key.String())
	if err != nil {
		log.WithError(err).WithField("account", id).Debug("no token stored")
	} else {
		a.Token = token
	}
	return a, nil
}

func (s *KeyringService) ListAccounts(ctx context.Context, userID, contextID int) ([]*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var l []*Account
	for k, a := range s.accounts {
		if k.userID == userID && k.contextID == contextID {
			l = append(l, clone(a))
		}
	}
	sort.Slice(l, func(i, j int) bool { return l[i].ID < l[j].ID })
	return l, nil
}

func (s *KeyringService) UpdateScopes(ctx context.Context, id, userID, contextID int, scopes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountKey{contextID, userID, id}]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	a.Scopes = slices.Clone(scopes)
	return nil
}

// DeleteAccount removes the account and its token, then notifies the
// deletion observers. Observer errors are logged.
func (s *KeyringService) DeleteAccount(ctx context.Context, id, userID, contextID int) error {
	key := accountKey{contextID, userID, id}
	s.mu.Lock()
	a, ok := s.accounts[key]
	delete(s.accounts, key)
	observers := slices.Clone(s.deleted)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}

	if err := s.tokens.DeleteToken(key.String()); err != nil {
		log.WithError(err).WithField("account", id).Debug("failed to delete token")
	}
	for _, o := range observers {
		if err := o.OnOAuthAccountDeleted(ctx, a); err != nil {
			log.WithError(err).WithField("account", id).Warn("oauth deletion observer failed")
		}
	}
	return nil
}

// Reauthorize stores a fresh token for the account and notifies the
// reauthorization observers.
func (s *KeyringService) Reauthorize(ctx context.Context, id, userID, contextID int, token *oauth2.Token) error {
	key := accountKey{contextID, userID, id}
	s.mu.Lock()
	a, ok := s.accounts[key]
	if ok {
		a = clone(a)
	}
	observers := slices.Clone(s.reauthorized)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err := s.tokens.SaveToken(key.String(), token); err != nil {
		return err
	}
	a.Token = token
	for _, o := range observers {
		if err := o.OnReauthorized(ctx, a); err != nil {
			log.WithError(err).WithField("account", id).Warn("oauth reauthorization observer failed")
		}
	}
	return nil
}
