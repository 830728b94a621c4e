package rdb

import (
	"context"
	"database/sql"

	"github.com/sirupsen/logrus"

	"github.com/lu-zhengda/mailacct/internal/domain"
	"github.com/lu-zhengda/mailacct/internal/store"
)

func (s *DB) encrypt(plaintext, secret string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	c, err := s.cryptor.Encrypt(plaintext, secret)
	if err != nil {
		return "", store.Wrap(store.CodeUnexpected, err, "failed to encrypt password")
	}
	return c, nil
}

func normalizeFullnames(a *domain.MailAccount) {
	for _, p := range []*string{
		&a.TrashFullname, &a.SentFullname, &a.DraftsFullname, &a.SpamFullname,
		&a.ConfirmedSpamFullname, &a.ConfirmedHamFullname, &a.ArchiveFullname,
	} {
		*p = domain.PrepareFullname(*p)
	}
}

// InsertMailAccount stores acc for the user and returns the new account ID.
// A default account always gets ID 0.
func (s *DB) InsertMailAccount(ctx context.Context, acc *domain.MailAccount, userID, contextID int, secret string) (int, error) {
	var id int
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = s.InsertMailAccountTx(ctx, tx, acc, userID, contextID, secret)
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// InsertMailAccountTx is InsertMailAccount on a caller-owned transaction.
func (s *DB) InsertMailAccountTx(ctx context.Context, tx *sql.Tx, acc *domain.MailAccount, userID, contextID int, secret string) (int, error) {
	a := acc.Clone()
	a.UserID, a.ContextID = userID, contextID
	if err := validate(a); err != nil {
		return 0, err
	}
	if !a.IsUnifiedInbox() && s.folders != nil {
		names, err := s.folders.FolderNames(ctx, a)
		if err != nil {
			return 0, store.Wrap(store.CodeUnexpected, err, "failed to determine default folder names")
		}
		store.ApplyFolderNames(a, names)
	}
	normalizeFullnames(a)
	if a.MailProtocol == "" {
		a.MailProtocol = "imap"
	}
	if a.HasTransport() && a.TransportProtocol == "" {
		a.TransportProtocol = "smtp"
	}

	if err := s.checkDuplicates(ctx, tx, a, -1); err != nil {
		return 0, err
	}

	if a.DefaultFlag {
		a.ID = domain.DefaultID
	} else {
		id, err := s.ids.NextID(ctx, tx, contextID)
		if err != nil {
			return 0, err
		}
		a.ID = id
	}

	password, err := s.encrypt(a.Password, secret)
	if err != nil {
		return 0, err
	}
	_, err = s.exec(ctx, tx, `INSERT INTO user_mail_account (cid, id, user_id, name, url, login, password,
		primary_addr, personal, reply_to, default_flag, spam_handler, trash, sent, drafts, spam,
		confirmed_spam, confirmed_ham, archive, trash_fullname, sent_fullname, drafts_fullname,
		spam_fullname, confirmed_spam_fullname, confirmed_ham_fullname, archive_fullname,
		unified_inbox, starttls, oauth, disabled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		contextID, a.ID, userID, a.Name, a.GenerateMailServerURL(), a.Login, password,
		a.PrimaryAddress, nullIfEmpty(a.Personal), nullIfEmpty(a.ReplyTo), boolInt(a.DefaultFlag), a.SpamHandler,
		a.Trash, a.Sent, a.Drafts, a.Spam, a.ConfirmedSpam, a.ConfirmedHam, a.Archive,
		a.TrashFullname, a.SentFullname, a.DraftsFullname, a.SpamFullname,
		a.ConfirmedSpamFullname, a.ConfirmedHamFullname, a.ArchiveFullname,
		boolInt(a.UnifiedInboxEnabled), boolInt(a.MailStartTLS), a.MailOAuth, boolInt(a.MailDisabled),
	)
	if err != nil {
		return 0, sqlError(err, "failed to insert mail account for user %d", userID)
	}

	if err := s.writeProperties(ctx, tx, "user_mail_account_properties", a.ID, userID, contextID, a.Properties); err != nil {
		return 0, err
	}
	// Transport properties only exist next to a transport row.
	if a.HasTransport() {
		if err := s.insertTransport(ctx, tx, a, secret, true); err != nil {
			return 0, err
		}
		if err := s.writeProperties(ctx, tx, "user_transport_account_properties", a.ID, userID, contextID, a.TransportProperties); err != nil {
			return 0, err
		}
	}

	log.WithFields(logrus.Fields{"account": a.ID, "user": userID, "context": contextID}).Debug("inserted mail account")
	return a.ID, nil
}

// insertTransport writes the transport row of a, defaulting its protocol to
// smtp. With encryptPassword unset, a.TransportPassword already holds
// ciphertext.
func (s *DB) insertTransport(ctx context.Context, q querier, a *domain.MailAccount, secret string, encryptPassword bool) error {
	if a.TransportProtocol == "" {
		a.TransportProtocol = "smtp"
	}
	password := a.TransportPassword
	if encryptPassword {
		var err error
		if password, err = s.encrypt(a.TransportPassword, secret); err != nil {
			return err
		}
	}
	_, err := s.exec(ctx, q, `INSERT INTO user_transport_account (cid, id, user_id, name, url, login, password,
		send_addr, personal, reply_to, default_flag, starttls, oauth, disabled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ContextID, a.ID, a.UserID, a.Name, a.GenerateTransportServerURL(), a.TransportLogin, password,
		a.PrimaryAddress, nullIfEmpty(a.TransportPersonal), nullIfEmpty(a.TransportReplyTo),
		boolInt(a.DefaultFlag), boolInt(a.TransportStartTLS), a.TransportOAuth, boolInt(a.TransportDisabled),
	)
	if err != nil {
		return sqlError(err, "failed to insert transport account %d", a.ID)
	}
	return nil
}

// writeProperties stores props; the synthesized addresses property and empty
// values are skipped.
func (s *DB) writeProperties(ctx context.Context, q querier, table string, id, userID, contextID int, props map[string]string) error {
	for name, value := range props {
		if name == domain.PropAddresses || value == "" {
			continue
		}
		_, err := s.exec(ctx, q, `INSERT INTO `+table+` (cid, id, user_id, name, value) VALUES (?, ?, ?, ?, ?)`,
			contextID, id, userID, name, value)
		if err != nil {
			return sqlError(err, "failed to write property %s of account %d", name, id)
		}
	}
	return nil
}

// setProperty replaces or, for an empty value, removes one property.
func (s *DB) setProperty(ctx context.Context, q querier, table string, id, userID, contextID int, name, value string) error {
	_, err := s.exec(ctx, q, `DELETE FROM `+table+` WHERE cid = ? AND id = ? AND user_id = ? AND name = ?`,
		contextID, id, userID, name)
	if err != nil {
		return sqlError(err, "failed to remove property %s of account %d", name, id)
	}
	if value == "" {
		return nil
	}
	_, err = s.exec(ctx, q, `INSERT INTO `+table+` (cid, id, user_id, name, value) VALUES (?, ?, ?, ?, ?)`,
		contextID, id, userID, name, value)
	if err != nil {
		return sqlError(err, "failed to write property %s of account %d", name, id)
	}
	return nil
}
