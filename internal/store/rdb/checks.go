package rdb

import (
	"context"
	"strings"
	"unicode"

	"github.com/badoux/checkmail"

	"github.com/lu-zhengda/mailacct/internal/domain"
	"github.com/lu-zhengda/mailacct/internal/store"
)

const maxNameLength = 256

// validName is deliberately permissive: control characters and overlong
// names are the only things rejected.
func validName(name string) bool {
	if len(name) > maxNameLength {
		return false
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}

func validate(a *domain.MailAccount) error {
	if !validName(a.Name) {
		return store.Errorf(store.CodeInvalidName, "invalid account name %q", a.Name)
	}
	if a.MailServer == "" {
		return store.Errorf(store.CodeInvalidData, "missing mail server")
	}
	if a.MailPort < 0 || a.MailPort > 65535 || a.TransportPort < 0 || a.TransportPort > 65535 {
		return store.Errorf(store.CodeInvalidData, "port out of range")
	}
	if !a.IsUnifiedInbox() && a.PrimaryAddress != "" {
		if err := checkmail.ValidateFormat(a.PrimaryAddress); err != nil {
			return store.Wrap(store.CodeInvalidData, err, "invalid primary address %q", a.PrimaryAddress)
		}
	}
	return nil
}

type accountRef struct {
	userID, id  int
	url         string
	login       string
	primary     string
	defaultFlag bool
}

func (r accountRef) isUnifiedInbox() bool {
	return strings.HasPrefix(strings.ToLower(r.url), domain.UnifiedInboxProtocol+"://")
}

func (s *DB) contextMailRefs(ctx context.Context, q querier, contextID int) ([]accountRef, error) {
	rows, err := s.query(ctx, q, `SELECT user_id, id, url, login, primary_addr, default_flag
		FROM user_mail_account WHERE cid = ?`, contextID)
	if err != nil {
		return nil, sqlError(err, "failed to scan mail accounts of context %d", contextID)
	}
	defer rows.Close()

	var refs []accountRef
	for rows.Next() {
		var r accountRef
		if err := rows.Scan(&r.userID, &r.id, &r.url, &r.login, &r.primary, &r.defaultFlag); err != nil {
			return nil, sqlError(err, "failed to scan mail account")
		}
		refs = append(refs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, sqlError(err, "failed to scan mail accounts of context %d", contextID)
	}
	return refs, nil
}

func (s *DB) userTransportRefs(ctx context.Context, q querier, userID, contextID int) ([]accountRef, error) {
	rows, err := s.query(ctx, q, `SELECT user_id, id, url, login FROM user_transport_account
		WHERE cid = ? AND user_id = ?`, contextID, userID)
	if err != nil {
		return nil, sqlError(err, "failed to scan transport accounts of user %d", userID)
	}
	defer rows.Close()

	var refs []accountRef
	for rows.Next() {
		var r accountRef
		if err := rows.Scan(&r.userID, &r.id, &r.url, &r.login); err != nil {
			return nil, sqlError(err, "failed to scan transport account")
		}
		refs = append(refs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, sqlError(err, "failed to scan transport accounts of user %d", userID)
	}
	return refs, nil
}

func sameServer(u domain.ServerURL, host string, port int, protocol string) bool {
	return strings.EqualFold(domain.NormalizeHost(u.Host), domain.NormalizeHost(host)) &&
		u.Port == port &&
		strings.EqualFold(u.Protocol, protocol)
}

// checkDuplicates scans the context for accounts conflicting with a. self is
// the ID of the account being updated, or -1 for an insert.
func (s *DB) checkDuplicates(ctx context.Context, q querier, a *domain.MailAccount, self int) error {
	refs, err := s.contextMailRefs(ctx, q, a.ContextID)
	if err != nil {
		return err
	}
	mailLogins := map[int]string{}
	for _, r := range refs {
		sameUser := r.userID == a.UserID
		if sameUser {
			mailLogins[r.id] = r.login
		}
		if sameUser && r.id == self {
			continue
		}
		if sameUser && self < 0 && a.DefaultFlag && (r.defaultFlag || r.id == domain.DefaultID) {
			return store.Errorf(store.CodeDuplicateDefault, "user %d already has a default account", a.UserID)
		}
		if a.IsUnifiedInbox() {
			if sameUser && r.isUnifiedInbox() {
				return store.Errorf(store.CodeDuplicateUnifiedInbox, "user %d already has a unified inbox account", a.UserID)
			}
			continue
		}
		if r.isUnifiedInbox() {
			continue
		}
		if a.PrimaryAddress != "" && strings.EqualFold(r.primary, a.PrimaryAddress) {
			return store.Errorf(store.CodeDuplicatePrimaryAddr, "primary address %s already in use in context %d",
				a.PrimaryAddress, a.ContextID)
		}
		if !sameUser {
			continue
		}
		u, err := domain.ParseServerURL(r.url)
		if err != nil {
			continue
		}
		if sameServer(u, a.MailServer, a.MailPort, a.MailProtocol) && r.login == a.Login {
			return store.Errorf(store.CodeDuplicateMailAccount, "mail account %s@%s:%d already exists for user %d",
				a.Login, a.MailServer, a.MailPort, a.UserID)
		}
	}

	if !a.HasTransport() {
		return nil
	}
	trefs, err := s.userTransportRefs(ctx, q, a.UserID, a.ContextID)
	if err != nil {
		return err
	}
	// An empty transport login falls back to the mail login.
	login := a.TransportLogin
	if login == "" {
		login = a.Login
	}
	for _, r := range trefs {
		if r.id == self {
			continue
		}
		u, err := domain.ParseServerURL(r.url)
		if err != nil {
			continue
		}
		rlogin := r.login
		if rlogin == "" {
			rlogin = mailLogins[r.id]
		}
		if sameServer(u, a.TransportServer, a.TransportPort, a.TransportProtocol) && rlogin == login {
			return store.Errorf(store.CodeDuplicateTransportAccount, "transport account %s@%s:%d already exists for user %d",
				login, a.TransportServer, a.TransportPort, a.UserID)
		}
	}
	return nil
}
