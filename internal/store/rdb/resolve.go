package rdb

import (
	"context"
	"errors"
	"net"
	"slices"
	"strconv"
	"strings"

	"github.com/lu-zhengda/mailacct/internal/domain"
	"github.com/lu-zhengda/mailacct/internal/store"
)

// ResolveLogin returns every account in the context using login.
func (s *DB) ResolveLogin(ctx context.Context, login string, contextID int) ([]store.UserAccount, error) {
	refs, err := s.contextMailRefs(ctx, s.db, contextID)
	if err != nil {
		return nil, err
	}
	res := []store.UserAccount{}
	for _, r := range refs {
		if !r.isUnifiedInbox() && r.login == login {
			res = append(res, store.UserAccount{UserID: r.userID, AccountID: r.id})
		}
	}
	return res, nil
}

// ResolveLoginAtServer returns the accounts using login against serverAddr,
// given as host or host:port. Without a port any port matches.
func (s *DB) ResolveLoginAtServer(ctx context.Context, login, serverAddr string, contextID int) ([]store.UserAccount, error) {
	host, port := splitServerAddr(serverAddr)
	refs, err := s.contextMailRefs(ctx, s.db, contextID)
	if err != nil {
		return nil, err
	}
	res := []store.UserAccount{}
	for _, r := range refs {
		if r.isUnifiedInbox() || r.login != login {
			continue
		}
		u, err := domain.ParseServerURL(r.url)
		if err != nil {
			return nil, uriError(err, r.id, r.userID, contextID)
		}
		if port > 0 && u.Port != port {
			continue
		}
		if s.hostEqual(ctx, u.Host, host) {
			res = append(res, store.UserAccount{UserID: r.userID, AccountID: r.id})
		}
	}
	return res, nil
}

// ResolvePrimaryAddr returns the accounts whose primary address equals addr,
// ignoring case.
func (s *DB) ResolvePrimaryAddr(ctx context.Context, primaryAddr string, contextID int) ([]store.UserAccount, error) {
	refs, err := s.contextMailRefs(ctx, s.db, contextID)
	if err != nil {
		return nil, err
	}
	res := []store.UserAccount{}
	for _, r := range refs {
		if r.primary != "" && strings.EqualFold(r.primary, primaryAddr) {
			res = append(res, store.UserAccount{UserID: r.userID, AccountID: r.id})
		}
	}
	return res, nil
}

// GetByHostNames returns the user's accounts whose mail server is one of
// hostNames.
func (s *DB) GetByHostNames(ctx context.Context, hostNames []string, userID, contextID int) ([]*domain.MailAccount, error) {
	wanted := make([]string, 0, len(hostNames))
	for _, h := range hostNames {
		if h = strings.TrimSpace(h); h != "" {
			wanted = append(wanted, strings.ToLower(domain.NormalizeHost(h)))
		}
	}
	accounts, err := s.GetUserMailAccounts(ctx, userID, contextID)
	if err != nil {
		return nil, err
	}
	res := []*domain.MailAccount{}
	for _, acc := range accounts {
		if acc.IsUnifiedInbox() {
			continue
		}
		if slices.Contains(wanted, strings.ToLower(domain.NormalizeHost(acc.MailServer))) {
			res = append(res, acc)
		}
	}
	return res, nil
}

func splitServerAddr(addr string) (string, int) {
	host, p, err := net.SplitHostPort(addr)
	if err != nil {
		return strings.Trim(addr, "[]"), 0
	}
	port, err := strconv.Atoi(p)
	if err != nil {
		return host, 0
	}
	return host, port
}

// hostEqual compares host names case-insensitively and falls back to
// comparing their resolved addresses.
func (s *DB) hostEqual(ctx context.Context, a, b string) bool {
	if strings.EqualFold(domain.NormalizeHost(a), domain.NormalizeHost(b)) {
		return true
	}
	if s.resolver == nil {
		return false
	}
	addrsA, err := s.resolver.LookupHost(ctx, a)
	if err != nil {
		logLookup(a, err)
		return false
	}
	addrsB, err := s.resolver.LookupHost(ctx, b)
	if err != nil {
		logLookup(b, err)
		return false
	}
	for _, x := range addrsA {
		if slices.Contains(addrsB, x) {
			return true
		}
	}
	return false
}

func logLookup(host string, err error) {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
		log.WithField("host", host).Debug("host not found")
		return
	}
	log.WithError(err).WithField("host", host).Warn("failed to resolve host")
}
