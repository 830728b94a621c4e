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

// column maps an attribute to the column it is persisted in.
type column struct {
	attr  domain.Attribute
	name  string
	value func(a *domain.MailAccount) any
}

var mailColumns = []column{
	{domain.AttrName, "name", func(a *domain.MailAccount) any { return a.Name }},
	{domain.AttrLogin, "login", func(a *domain.MailAccount) any { return a.Login }},
	{domain.AttrPrimaryAddress, "primary_addr", func(a *domain.MailAccount) any { return a.PrimaryAddress }},
	{domain.AttrPersonal, "personal", func(a *domain.MailAccount) any { return nullIfEmpty(a.Personal) }},
	{domain.AttrReplyTo, "reply_to", func(a *domain.MailAccount) any { return nullIfEmpty(a.ReplyTo) }},
	{domain.AttrSpamHandler, "spam_handler", func(a *domain.MailAccount) any { return a.SpamHandler }},
	{domain.AttrTrash, "trash", func(a *domain.MailAccount) any { return a.Trash }},
	{domain.AttrSent, "sent", func(a *domain.MailAccount) any { return a.Sent }},
	{domain.AttrDrafts, "drafts", func(a *domain.MailAccount) any { return a.Drafts }},
	{domain.AttrSpam, "spam", func(a *domain.MailAccount) any { return a.Spam }},
	{domain.AttrConfirmedSpam, "confirmed_spam", func(a *domain.MailAccount) any { return a.ConfirmedSpam }},
	{domain.AttrConfirmedHam, "confirmed_ham", func(a *domain.MailAccount) any { return a.ConfirmedHam }},
	{domain.AttrArchive, "archive", func(a *domain.MailAccount) any { return a.Archive }},
	{domain.AttrTrashFullname, "trash_fullname", func(a *domain.MailAccount) any { return a.TrashFullname }},
	{domain.AttrSentFullname, "sent_fullname", func(a *domain.MailAccount) any { return a.SentFullname }},
	{domain.AttrDraftsFullname, "drafts_fullname", func(a *domain.MailAccount) any { return a.DraftsFullname }},
	{domain.AttrSpamFullname, "spam_fullname", func(a *domain.MailAccount) any { return a.SpamFullname }},
	{domain.AttrConfirmedSpamFullname, "confirmed_spam_fullname", func(a *domain.MailAccount) any { return a.ConfirmedSpamFullname }},
	{domain.AttrConfirmedHamFullname, "confirmed_ham_fullname", func(a *domain.MailAccount) any { return a.ConfirmedHamFullname }},
	{domain.AttrArchiveFullname, "archive_fullname", func(a *domain.MailAccount) any { return a.ArchiveFullname }},
	{domain.AttrUnifiedInboxEnabled, "unified_inbox", func(a *domain.MailAccount) any { return boolInt(a.UnifiedInboxEnabled) }},
	{domain.AttrMailStartTLS, "starttls", func(a *domain.MailAccount) any { return boolInt(a.MailStartTLS) }},
	{domain.AttrMailOAuth, "oauth", func(a *domain.MailAccount) any { return a.MailOAuth }},
	{domain.AttrMailDisabled, "disabled", func(a *domain.MailAccount) any { return boolInt(a.MailDisabled) }},
}

// The transport row mirrors the account name and uses the primary address
// as its sender address.
var transportColumns = []column{
	{domain.AttrName, "name", func(a *domain.MailAccount) any { return a.Name }},
	{domain.AttrPrimaryAddress, "send_addr", func(a *domain.MailAccount) any { return a.PrimaryAddress }},
	{domain.AttrTransportLogin, "login", func(a *domain.MailAccount) any { return a.TransportLogin }},
	{domain.AttrTransportPersonal, "personal", func(a *domain.MailAccount) any { return nullIfEmpty(a.TransportPersonal) }},
	{domain.AttrTransportReplyTo, "reply_to", func(a *domain.MailAccount) any { return nullIfEmpty(a.TransportReplyTo) }},
	{domain.AttrTransportStartTLS, "starttls", func(a *domain.MailAccount) any { return boolInt(a.TransportStartTLS) }},
	{domain.AttrTransportOAuth, "oauth", func(a *domain.MailAccount) any { return a.TransportOAuth }},
	{domain.AttrTransportDisabled, "disabled", func(a *domain.MailAccount) any { return boolInt(a.TransportDisabled) }},
}

var (
	mailServerAttrs      = []domain.Attribute{domain.AttrMailServer, domain.AttrMailPort, domain.AttrMailProtocol, domain.AttrMailSecure}
	transportServerAttrs = []domain.Attribute{domain.AttrTransportServer, domain.AttrTransportPort, domain.AttrTransportProtocol, domain.AttrTransportSecure}
	identifyingAttrs     = []domain.Attribute{
		domain.AttrLogin, domain.AttrPrimaryAddress, domain.AttrMailServer, domain.AttrMailPort,
		domain.AttrMailProtocol, domain.AttrMailSecure, domain.AttrTransportLogin, domain.AttrTransportServer,
		domain.AttrTransportPort, domain.AttrTransportProtocol, domain.AttrTransportSecure,
	}
	validatedAttrs = []domain.Attribute{
		domain.AttrName, domain.AttrPrimaryAddress, domain.AttrMailServer, domain.AttrMailPort, domain.AttrTransportPort,
	}
)

type assignments struct {
	sets []string
	args []any
}

func (as *assignments) add(col string, v any) {
	as.sets = append(as.sets, col+" = ?")
	as.args = append(as.args, v)
}

func (s *DB) updateRow(ctx context.Context, q querier, table string, a *domain.MailAccount, as assignments) error {
	if len(as.sets) == 0 {
		return nil
	}
	args := append(as.args, a.ContextID, a.ID, a.UserID)
	_, err := s.exec(ctx, q, `UPDATE `+table+` SET `+strings.Join(as.sets, ", ")+`
		WHERE cid = ? AND id = ? AND user_id = ?`, args...)
	if err != nil {
		return sqlError(err, "failed to update %s %d", table, a.ID)
	}
	return nil
}

// UpdateMailAccount persists the attributes in attrs from acc. Only listed
// attributes are written; everything else keeps its stored value.
func (s *DB) UpdateMailAccount(ctx context.Context, acc *domain.MailAccount, attrs domain.AttributeSet, userID, contextID int, secret string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return s.UpdateMailAccountTx(ctx, tx, acc, attrs, userID, contextID, secret)
	})
}

// UpdateMailAccountTx is UpdateMailAccount on a caller-owned transaction.
func (s *DB) UpdateMailAccountTx(ctx context.Context, tx *sql.Tx, acc *domain.MailAccount, attrs domain.AttributeSet, userID, contextID int, secret string) error {
	current, err := s.loadAccount(ctx, tx, acc.ID, userID, contextID, false)
	if err != nil {
		return err
	}
	attrs = attrs.Clone()
	if current.IsDefault() {
		allowed := domain.DefaultAccountAttributes()
		for a := range attrs {
			if allowed.Contains(a) {
				continue
			}
			changed, err := s.differs(current, acc, a, secret)
			if err != nil {
				return err
			}
			if changed {
				return store.Errorf(store.CodeNoDefaultUpdate, "attribute %s of the default account must not be changed", a)
			}
			attrs.Remove(a)
		}
	}
	if len(attrs) == 0 {
		return nil
	}
	return s.applyAttributes(ctx, tx, current, acc, attrs, secret)
}

// differs reports whether attr of acc differs from the stored account. An
// empty password never differs; others compare against the decrypted value.
func (s *DB) differs(current, acc *domain.MailAccount, attr domain.Attribute, secret string) (bool, error) {
	var stored, given string
	switch attr {
	case domain.AttrPassword:
		stored, given = current.Password, acc.Password
	case domain.AttrTransportPassword:
		stored, given = current.TransportPassword, acc.TransportPassword
	default:
		return domain.AttributeValue(current, attr) != domain.AttributeValue(acc, attr), nil
	}
	if given == "" {
		return false, nil
	}
	if stored == "" {
		return true, nil
	}
	plain, err := s.cryptor.Decrypt(stored, secret)
	if err != nil {
		return true, nil
	}
	return plain != given, nil
}

func (s *DB) applyAttributes(ctx context.Context, tx *sql.Tx, current, acc *domain.MailAccount, attrs domain.AttributeSet, secret string) error {
	merged := current.Clone()
	for a := range attrs {
		domain.CopyAttribute(merged, acc, a)
	}
	if attrs.ContainsAny(validatedAttrs...) {
		if err := validate(merged); err != nil {
			return err
		}
	}
	normalizeFullnames(merged)
	if attrs.ContainsAny(identifyingAttrs...) {
		if err := s.checkDuplicates(ctx, tx, merged, merged.ID); err != nil {
			return err
		}
	}

	var mail assignments
	for _, c := range mailColumns {
		if attrs.Contains(c.attr) {
			mail.add(c.name, c.value(merged))
		}
	}
	if attrs.ContainsAny(mailServerAttrs...) {
		mail.add("url", merged.GenerateMailServerURL())
	}
	if attrs.Contains(domain.AttrPassword) {
		p, err := s.encrypt(merged.Password, secret)
		if err != nil {
			return err
		}
		mail.add("password", p)
	}
	if err := s.updateRow(ctx, tx, "user_mail_account", merged, mail); err != nil {
		return err
	}

	transportKept, err := s.applyTransport(ctx, tx, merged, attrs, secret)
	if err != nil {
		return err
	}

	for a := range attrs {
		key, ok := a.PropertyKey()
		if !ok {
			continue
		}
		table, value := "user_mail_account_properties", merged.Properties[key]
		if a.IsTransport() {
			if !transportKept {
				continue
			}
			table, value = "user_transport_account_properties", merged.TransportProperties[key]
		}
		if err := s.setProperty(ctx, tx, table, merged.ID, merged.UserID, merged.ContextID, key, value); err != nil {
			return err
		}
	}

	log.WithFields(logrus.Fields{
		"account": merged.ID, "user": merged.UserID, "context": merged.ContextID, "attributes": attrs.String(),
	}).Debug("updated mail account")
	return nil
}

func (s *DB) transportExists(ctx context.Context, q querier, id, userID, contextID int) (bool, error) {
	var one int
	err := s.queryRow(ctx, q, `SELECT 1 FROM user_transport_account WHERE cid = ? AND id = ? AND user_id = ?`,
		contextID, id, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, sqlError(err, "failed to check transport account %d", id)
	}
	return true, nil
}

// applyTransport writes the transport side of merged. The row is created when
// a transport server appears and dropped when it is cleared. It reports
// whether a transport row exists afterwards.
func (s *DB) applyTransport(ctx context.Context, tx *sql.Tx, merged *domain.MailAccount, attrs domain.AttributeSet, secret string) (bool, error) {
	exists, err := s.transportExists(ctx, tx, merged.ID, merged.UserID, merged.ContextID)
	if err != nil {
		return false, err
	}

	if attrs.Contains(domain.AttrTransportServer) && merged.TransportServer == "" {
		if exists {
			if err := s.deleteTransport(ctx, tx, merged.ID, merged.UserID, merged.ContextID); err != nil {
				return false, err
			}
		}
		return false, nil
	}

	if !exists {
		if !merged.HasTransport() {
			return false, nil
		}
		t := merged.Clone()
		if attrs.Contains(domain.AttrTransportPassword) {
			if t.TransportPassword, err = s.encrypt(merged.TransportPassword, secret); err != nil {
				return false, err
			}
		}
		if err := s.insertTransport(ctx, tx, t, secret, false); err != nil {
			return false, err
		}
		return true, nil
	}

	var as assignments
	for _, c := range transportColumns {
		if attrs.Contains(c.attr) {
			as.add(c.name, c.value(merged))
		}
	}
	if attrs.ContainsAny(transportServerAttrs...) {
		as.add("url", merged.GenerateTransportServerURL())
	}
	if attrs.Contains(domain.AttrTransportPassword) {
		p, err := s.encrypt(merged.TransportPassword, secret)
		if err != nil {
			return false, err
		}
		as.add("password", p)
	}
	if err := s.updateRow(ctx, tx, "user_transport_account", merged, as); err != nil {
		return false, err
	}
	return true, nil
}

func (s *DB) deleteTransport(ctx context.Context, q querier, id, userID, contextID int) error {
	for _, table := range []string{"user_transport_account_properties", "user_transport_account"} {
		_, err := s.exec(ctx, q, `DELETE FROM `+table+` WHERE cid = ? AND id = ? AND user_id = ?`,
			contextID, id, userID)
		if err != nil {
			return sqlError(err, "failed to delete from %s for account %d", table, id)
		}
	}
	return nil
}

// ReplaceMailAccount overwrites every field of a non-default account with
// acc and replaces its properties. Empty passwords keep the stored ones.
func (s *DB) ReplaceMailAccount(ctx context.Context, acc *domain.MailAccount, userID, contextID int, secret string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		current, err := s.loadAccount(ctx, tx, acc.ID, userID, contextID, false)
		if err != nil {
			return err
		}
		if current.IsDefault() {
			return store.Errorf(store.CodeNoDefaultUpdate, "the default account must not be replaced")
		}
		attrs := domain.AllAttributes()
		if acc.Password == "" {
			attrs.Remove(domain.AttrPassword)
		}
		if acc.TransportPassword == "" {
			attrs.Remove(domain.AttrTransportPassword)
		}
		if err := s.applyAttributes(ctx, tx, current, acc, attrs, secret); err != nil {
			return err
		}

		_, err = s.exec(ctx, tx, `DELETE FROM user_mail_account_properties WHERE cid = ? AND id = ? AND user_id = ?`,
			contextID, acc.ID, userID)
		if err != nil {
			return sqlError(err, "failed to clear properties of account %d", acc.ID)
		}
		if err := s.writeProperties(ctx, tx, "user_mail_account_properties", acc.ID, userID, contextID, acc.Properties); err != nil {
			return err
		}
		if !acc.HasTransport() {
			return nil
		}
		_, err = s.exec(ctx, tx, `DELETE FROM user_transport_account_properties WHERE cid = ? AND id = ? AND user_id = ?`,
			contextID, acc.ID, userID)
		if err != nil {
			return sqlError(err, "failed to clear transport properties of account %d", acc.ID)
		}
		return s.writeProperties(ctx, tx, "user_transport_account_properties", acc.ID, userID, contextID, acc.TransportProperties)
	})
}

// EnableMailAccount clears the disabled flag of the mail side.
func (s *DB) EnableMailAccount(ctx context.Context, id, userID, contextID int) error {
	return s.enable(ctx, "user_mail_account", id, userID, contextID)
}

// EnableTransportAccount clears the disabled flag of the transport side. A
// missing transport row is not an error.
func (s *DB) EnableTransportAccount(ctx context.Context, id, userID, contextID int) error {
	return s.enable(ctx, "user_transport_account", id, userID, contextID)
}

func (s *DB) enable(ctx context.Context, table string, id, userID, contextID int) error {
	res, err := s.exec(ctx, s.db, `UPDATE `+table+` SET disabled = 0 WHERE cid = ? AND id = ? AND user_id = ?`,
		contextID, id, userID)
	if err != nil {
		return sqlError(err, "failed to enable %s %d", table, id)
	}
	if table != "user_mail_account" {
		return nil
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.NotFound(id, userID, contextID)
	}
	return nil
}
