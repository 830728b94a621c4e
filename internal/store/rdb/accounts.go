package rdb

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/lu-zhengda/mailacct/internal/domain"
	"github.com/lu-zhengda/mailacct/internal/store"
)

const mailColumnList = `id, user_id, name, url, login, password, primary_addr, personal, reply_to,
	default_flag, spam_handler, trash, sent, drafts, spam, confirmed_spam, confirmed_ham, archive,
	trash_fullname, sent_fullname, drafts_fullname, spam_fullname, confirmed_spam_fullname,
	confirmed_ham_fullname, archive_fullname, unified_inbox, starttls, oauth, disabled`

type scanner interface {
	Scan(dest ...any) error
}

func scanMail(sc scanner) (*domain.MailAccount, string, error) {
	acc := domain.NewMailAccount()
	var (
		rawURL            string
		personal, replyTo sql.NullString
	)
	err := sc.Scan(
		&acc.ID, &acc.UserID, &acc.Name, &rawURL, &acc.Login, &acc.Password, &acc.PrimaryAddress,
		&personal, &replyTo, &acc.DefaultFlag, &acc.SpamHandler,
		&acc.Trash, &acc.Sent, &acc.Drafts, &acc.Spam, &acc.ConfirmedSpam, &acc.ConfirmedHam, &acc.Archive,
		&acc.TrashFullname, &acc.SentFullname, &acc.DraftsFullname, &acc.SpamFullname,
		&acc.ConfirmedSpamFullname, &acc.ConfirmedHamFullname, &acc.ArchiveFullname,
		&acc.UnifiedInboxEnabled, &acc.MailStartTLS, &acc.MailOAuth, &acc.MailDisabled,
	)
	if err != nil {
		return nil, "", err
	}
	acc.Personal, acc.ReplyTo = personal.String, replyTo.String
	return acc, rawURL, nil
}

func uriError(err error, id, userID, contextID int) error {
	return store.Wrap(store.CodeURIParseFailed, err, "mail account %d of user %d in context %d", id, userID, contextID)
}

// loadAccount reads the mail row, the transport row and both property sets.
// With strict unset, unparsable server URLs are ignored instead of failing.
func (s *DB) loadAccount(ctx context.Context, q querier, id, userID, contextID int, strict bool) (*domain.MailAccount, error) {
	row := s.queryRow(ctx, q, `SELECT `+mailColumnList+` FROM user_mail_account
		WHERE cid = ? AND id = ? AND user_id = ?`, contextID, id, userID)
	acc, rawURL, err := scanMail(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFound(id, userID, contextID)
	}
	if err != nil {
		return nil, sqlError(err, "failed to get mail account %d", id)
	}
	acc.ContextID = contextID
	if err := acc.SetMailServerURL(rawURL); err != nil && strict {
		return nil, uriError(err, id, userID, contextID)
	}

	var (
		transportURL      string
		personal, replyTo sql.NullString
	)
	err = s.queryRow(ctx, q, `SELECT url, login, password, personal, reply_to, starttls, oauth, disabled
		FROM user_transport_account WHERE cid = ? AND id = ? AND user_id = ?`, contextID, id, userID,
	).Scan(&transportURL, &acc.TransportLogin, &acc.TransportPassword, &personal, &replyTo,
		&acc.TransportStartTLS, &acc.TransportOAuth, &acc.TransportDisabled)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// No transport configured.
	case err != nil:
		return nil, sqlError(err, "failed to get transport account %d", id)
	default:
		acc.TransportPersonal, acc.TransportReplyTo = personal.String, replyTo.String
		if err := acc.SetTransportServerURL(transportURL); err != nil && strict {
			return nil, uriError(err, id, userID, contextID)
		}
	}

	if acc.Properties, err = s.loadProperties(ctx, q, "user_mail_account_properties", id, userID, contextID); err != nil {
		return nil, err
	}
	if acc.TransportProperties, err = s.loadProperties(ctx, q, "user_transport_account_properties", id, userID, contextID); err != nil {
		return nil, err
	}
	if acc.IsDefault() {
		acc.SetProperty(domain.PropAddresses, s.addresses(ctx, acc))
	}
	return acc, nil
}

func (s *DB) loadProperties(ctx context.Context, q querier, table string, id, userID, contextID int) (map[string]string, error) {
	rows, err := s.query(ctx, q, `SELECT name, value FROM `+table+`
		WHERE cid = ? AND id = ? AND user_id = ?`, contextID, id, userID)
	if err != nil {
		return nil, sqlError(err, "failed to load properties of account %d", id)
	}
	defer rows.Close()

	var props map[string]string
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, sqlError(err, "failed to scan property")
		}
		if props == nil {
			props = map[string]string{}
		}
		props[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, sqlError(err, "failed to load properties of account %d", id)
	}
	return props, nil
}

// addresses joins the primary address and the user's aliases.
func (s *DB) addresses(ctx context.Context, acc *domain.MailAccount) string {
	var l []string
	seen := map[string]bool{}
	add := func(addr string) {
		addr = strings.TrimSpace(addr)
		if addr == "" || seen[strings.ToLower(addr)] {
			return
		}
		seen[strings.ToLower(addr)] = true
		l = append(l, addr)
	}
	add(acc.PrimaryAddress)
	if s.aliases != nil {
		aliases, err := s.aliases.Aliases(ctx, acc.UserID, acc.ContextID)
		if err != nil {
			log.WithError(err).WithFields(logrus.Fields{"user": acc.UserID, "context": acc.ContextID}).
				Warn("failed to load user aliases")
		}
		for _, a := range aliases {
			add(a)
		}
	}
	return strings.Join(l, ",")
}

func (s *DB) GetMailAccount(ctx context.Context, id, userID, contextID int) (*domain.MailAccount, error) {
	return s.loadAccount(ctx, s.db, id, userID, contextID, true)
}

func (s *DB) GetDefaultMailAccount(ctx context.Context, userID, contextID int) (*domain.MailAccount, error) {
	return s.GetMailAccount(ctx, domain.DefaultID, userID, contextID)
}

func (s *DB) GetUserMailAccountIDs(ctx context.Context, userID, contextID int) ([]int, error) {
	return s.userAccountIDs(ctx, s.db, userID, contextID)
}

func (s *DB) userAccountIDs(ctx context.Context, q querier, userID, contextID int) ([]int, error) {
	rows, err := s.query(ctx, q, `SELECT id FROM user_mail_account WHERE cid = ? AND user_id = ? ORDER BY id`,
		contextID, userID)
	if err != nil {
		return nil, sqlError(err, "failed to list mail accounts of user %d", userID)
	}
	defer rows.Close()

	ids := []int{}
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, sqlError(err, "failed to scan account ID")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, sqlError(err, "failed to list mail accounts of user %d", userID)
	}
	return ids, nil
}

func (s *DB) GetUserMailAccounts(ctx context.Context, userID, contextID int) ([]*domain.MailAccount, error) {
	ids, err := s.userAccountIDs(ctx, s.db, userID, contextID)
	if err != nil {
		return nil, err
	}
	accounts := make([]*domain.MailAccount, 0, len(ids))
	for _, id := range ids {
		acc, err := s.loadAccount(ctx, s.db, id, userID, contextID, true)
		if errors.Is(err, store.ErrNotFound) {
			// Deleted concurrently.
			continue
		}
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acc)
	}
	return accounts, nil
}

func (s *DB) ExistsMailAccount(ctx context.Context, id, userID, contextID int) (bool, error) {
	var one int
	err := s.queryRow(ctx, s.db, `SELECT 1 FROM user_mail_account WHERE cid = ? AND id = ? AND user_id = ?`,
		contextID, id, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, sqlError(err, "failed to check mail account %d", id)
	}
	return true, nil
}

func (s *DB) GetUnifiedInboxAccountID(ctx context.Context, userID, contextID int) (int, error) {
	rows, err := s.query(ctx, s.db, `SELECT id, url FROM user_mail_account WHERE cid = ? AND user_id = ? ORDER BY id`,
		contextID, userID)
	if err != nil {
		return -1, sqlError(err, "failed to list mail accounts of user %d", userID)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id     int
			rawURL string
		)
		if err := rows.Scan(&id, &rawURL); err != nil {
			return -1, sqlError(err, "failed to scan mail account")
		}
		if strings.HasPrefix(strings.ToLower(rawURL), domain.UnifiedInboxProtocol+"://") {
			return id, nil
		}
	}
	if err := rows.Err(); err != nil {
		return -1, sqlError(err, "failed to list mail accounts of user %d", userID)
	}
	return -1, nil
}
