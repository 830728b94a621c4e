// Package listener reacts to deletion and OAuth lifecycle events by
// cascading them onto the stored mail accounts.
package listener

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/lu-zhengda/mailacct/internal/domain"
	"github.com/lu-zhengda/mailacct/internal/oauth"
	"github.com/lu-zhengda/mailacct/internal/store"
)

var log = logrus.WithField("component", "listener")

// Event property keys set by OAuthDeleteListener.
const (
	PropMailOAuthID      = "mail.oauth.id"
	PropTransportOAuthID = "transport.oauth.id"
)

// OAuthDeleteListener releases the OAuth account a deleted mail account was
// bound to.
type OAuthDeleteListener struct {
	oauth oauth.Service
}

var _ store.DeleteListener = (*OAuthDeleteListener)(nil)

func NewOAuthDeleteListener(svc oauth.Service) *OAuthDeleteListener {
	return &OAuthDeleteListener{oauth: svc}
}

// BeforeDeletion records the OAuth bindings of acc.
func (l *OAuthDeleteListener) BeforeDeletion(ctx context.Context, acc *domain.MailAccount, props store.EventProps) error {
	if acc.MailOAuth != domain.NoOAuth {
		props[PropMailOAuthID] = acc.MailOAuth
	}
	if acc.TransportOAuth != domain.NoOAuth {
		props[PropTransportOAuthID] = acc.TransportOAuth
	}
	return nil
}

// AfterDeletion drops the mail scope from each recorded OAuth account and
// deletes accounts left without scopes. When the deletion was itself caused
// by the removal of the OAuth account, the account is deleted outright and a
// missing account is not an error.
func (l *OAuthDeleteListener) AfterDeletion(ctx context.Context, acc *domain.MailAccount, props store.EventProps) error {
	originated, _ := props[store.PropOAuthOriginated].(bool)

	var errs []error
	seen := map[int]bool{}
	for _, key := range []string{PropMailOAuthID, PropTransportOAuthID} {
		id, ok := props[key].(int)
		if !ok || seen[id] {
			continue
		}
		seen[id] = true

		fields := logrus.Fields{"oauth": id, "user": acc.UserID, "context": acc.ContextID}
		if originated {
			err := l.oauth.DeleteAccount(ctx, id, acc.UserID, acc.ContextID)
			if err != nil && !errors.Is(err, oauth.ErrNotFound) {
				errs = append(errs, err)
			}
			continue
		}
		if err := l.dropMailScope(ctx, id, acc); err != nil {
			errs = append(errs, err)
			continue
		}
		log.WithFields(fields).Debug("released oauth account")
	}
	return errors.Join(errs...)
}

func (l *OAuthDeleteListener) dropMailScope(ctx context.Context, id int, acc *domain.MailAccount) error {
	oa, err := l.oauth.GetAccount(ctx, id, acc.UserID, acc.ContextID)
	if errors.Is(err, oauth.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !oa.HasScope(oauth.ScopeMail) {
		return nil
	}
	var scopes []string
	for _, s := range oa.Scopes {
		if s != oauth.ScopeMail {
			scopes = append(scopes, s)
		}
	}
	if len(scopes) == 0 {
		return l.oauth.DeleteAccount(ctx, id, acc.UserID, acc.ContextID)
	}
	return l.oauth.UpdateScopes(ctx, id, acc.UserID, acc.ContextID, scopes)
}

// ReauthorizeListener re-enables the accounts bound to an OAuth account once
// it has a fresh grant.
type ReauthorizeListener struct {
	storage store.MailAccountStorage
}

var _ oauth.ReauthorizationObserver = (*ReauthorizeListener)(nil)

func NewReauthorizeListener(storage store.MailAccountStorage) *ReauthorizeListener {
	return &ReauthorizeListener{storage: storage}
}

func (l *ReauthorizeListener) OnReauthorized(ctx context.Context, oa *oauth.Account) error {
	accounts, err := l.storage.GetUserMailAccounts(ctx, oa.UserID, oa.ContextID)
	if err != nil {
		return err
	}
	var errs []error
	for _, acc := range accounts {
		if acc.MailOAuth == oa.ID && acc.MailDisabled {
			if err := l.storage.EnableMailAccount(ctx, acc.ID, oa.UserID, oa.ContextID); err != nil {
				errs = append(errs, err)
			}
		}
		if acc.TransportOAuth == oa.ID && acc.TransportDisabled {
			if err := l.storage.EnableTransportAccount(ctx, acc.ID, oa.UserID, oa.ContextID); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// OAuthAccountDeleteListener removes the mail accounts whose mail side
// authenticated with a deleted OAuth account. Accounts that only send with it
// get their transport binding cleared and disabled.
type OAuthAccountDeleteListener struct {
	storage store.MailAccountStorage
}

var _ oauth.DeletionObserver = (*OAuthAccountDeleteListener)(nil)

func NewOAuthAccountDeleteListener(storage store.MailAccountStorage) *OAuthAccountDeleteListener {
	return &OAuthAccountDeleteListener{storage: storage}
}

func (l *OAuthAccountDeleteListener) OnOAuthAccountDeleted(ctx context.Context, oa *oauth.Account) error {
	accounts, err := l.storage.GetUserMailAccounts(ctx, oa.UserID, oa.ContextID)
	if err != nil {
		return err
	}
	var errs []error
	for _, acc := range accounts {
		fields := logrus.Fields{"account": acc.ID, "oauth": oa.ID, "user": oa.UserID, "context": oa.ContextID}
		switch {
		case acc.MailOAuth == oa.ID && acc.IsDefault():
			log.WithFields(fields).Warn("default account bound to deleted oauth account")
		case acc.MailOAuth == oa.ID:
			props := store.EventProps{store.PropOAuthOriginated: true}
			if err := l.storage.DeleteMailAccount(ctx, acc.ID, props, oa.UserID, oa.ContextID, false); err != nil {
				errs = append(errs, err)
				continue
			}
			log.WithFields(fields).Info("deleted mail account of removed oauth account")
		case acc.TransportOAuth == oa.ID:
			upd := acc.Clone()
			upd.TransportOAuth = domain.NoOAuth
			upd.TransportDisabled = true
			attrs := domain.NewAttributeSet(domain.AttrTransportOAuth, domain.AttrTransportDisabled)
			if err := l.storage.UpdateMailAccount(ctx, upd, attrs, oa.UserID, oa.ContextID, ""); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
