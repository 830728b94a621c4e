package store

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/lu-zhengda/mailacct/internal/domain"
)

var metricRepairs = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "mailacct_sanitize_repairs_total",
		Help: "Stored server URLs rewritten by the sanitizer.",
	},
	[]string{
		"side", // "mail", "transport"
	},
)

// URLEntry is the stored server URL of one side of an account.
type URLEntry struct {
	ContextID int
	UserID    int
	ID        int
	Transport bool
	URL       string
}

// URLRepository gives the sanitizer raw access to stored server URLs.
type URLRepository interface {
	// ListAccountURLs lists the URLs of a user, or of the whole context when
	// userID is negative.
	ListAccountURLs(ctx context.Context, contextID, userID int) ([]URLEntry, error)
	// RepairURLs writes all fixes in one transaction.
	RepairURLs(ctx context.Context, fixes []URLEntry) error
}

// URIDefaults is the template used to complete a broken server URL.
type URIDefaults struct {
	Protocol   string
	Port       int
	SecurePort int
}

var (
	IMAPDefaults = URIDefaults{Protocol: "imap", Port: 143, SecurePort: 993}
	SMTPDefaults = URIDefaults{Protocol: "smtp", Port: 25, SecurePort: 465}
)

// Fallback is the URL stored when nothing can be recovered.
func (d URIDefaults) Fallback() string {
	return d.Protocol + "://localhost:" + strconv.Itoa(d.Port)
}

var knownProtocols = map[string]bool{"imap": true, "pop3": true, "smtp": true}

// Repair turns raw into a URL that passes domain.ParseServerURL. Missing
// scheme and port are taken from d; userinfo and path are dropped.
func (d URIDefaults) Repair(raw string) string {
	s := strings.Join(strings.Fields(raw), "")
	if s == "" {
		return d.Fallback()
	}
	if !strings.Contains(s, "://") {
		s = d.Protocol + "://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return d.Fallback()
	}

	su := domain.ServerURL{Protocol: strings.ToLower(u.Scheme)}
	if p, ok := strings.CutSuffix(su.Protocol, "s"); ok && knownProtocols[p] {
		su.Protocol, su.Secure = p, true
	}
	if su.Protocol == "" {
		su.Protocol = d.Protocol
	}
	su.Host = domain.NormalizeHost(u.Hostname())
	if su.Host == "" {
		return d.Fallback()
	}
	if port, err := strconv.Atoi(u.Port()); err == nil && port > 0 && port <= 65535 {
		su.Port = port
	} else if su.Secure {
		su.Port = d.SecurePort
	} else {
		su.Port = d.Port
	}

	fixed := su.String()
	if _, err := domain.ParseServerURL(fixed); err != nil {
		return d.Fallback()
	}
	return fixed
}

// Sanitizer rewrites stored server URLs that no longer parse.
type Sanitizer struct {
	repo URLRepository
	IMAP URIDefaults
	SMTP URIDefaults

	group singleflight.Group
}

func NewSanitizer(repo URLRepository) *Sanitizer {
	return &Sanitizer{repo: repo, IMAP: IMAPDefaults, SMTP: SMTPDefaults}
}

// Sanitize repairs the accounts of one user and invalidates every repaired
// account in storage.
func (z *Sanitizer) Sanitize(ctx context.Context, userID, contextID int, storage MailAccountStorage) error {
	return z.run(ctx, contextID, userID, storage)
}

// SanitizeContext repairs all accounts of a context.
func (z *Sanitizer) SanitizeContext(ctx context.Context, contextID int, storage MailAccountStorage) error {
	return z.run(ctx, contextID, -1, storage)
}

// run collapses concurrent runs for the same scope.
func (z *Sanitizer) run(ctx context.Context, contextID, userID int, storage MailAccountStorage) error {
	key := strconv.Itoa(contextID) + ":" + strconv.Itoa(userID)
	_, err, _ := z.group.Do(key, func() (any, error) {
		return nil, z.sanitize(ctx, contextID, userID, storage)
	})
	return err
}

func (z *Sanitizer) sanitize(ctx context.Context, contextID, userID int, storage MailAccountStorage) error {
	entries, err := z.repo.ListAccountURLs(ctx, contextID, userID)
	if err != nil {
		return err
	}
	var fixes []URLEntry
	for _, e := range entries {
		if _, err := domain.ParseServerURL(e.URL); err == nil {
			continue
		}
		d, side := z.IMAP, "mail"
		if e.Transport {
			d, side = z.SMTP, "transport"
		}
		fixed := e
		fixed.URL = d.Repair(e.URL)
		fixes = append(fixes, fixed)
		metricRepairs.WithLabelValues(side).Inc()
		log.WithFields(logrus.Fields{
			"context": e.ContextID, "user": e.UserID, "account": e.ID, "side": side,
			"from": e.URL, "to": fixed.URL,
		}).Info("repairing server url")
	}
	if len(fixes) == 0 {
		return nil
	}
	if err := z.repo.RepairURLs(ctx, fixes); err != nil {
		return err
	}

	type key struct{ userID, id int }
	done := map[key]bool{}
	for _, f := range fixes {
		k := key{f.UserID, f.ID}
		if done[k] || storage == nil {
			continue
		}
		done[k] = true
		if err := storage.InvalidateMailAccount(ctx, f.ID, f.UserID, f.ContextID); err != nil {
			log.WithError(err).WithField("account", f.ID).Warn("failed to invalidate repaired account")
		}
	}
	return nil
}
