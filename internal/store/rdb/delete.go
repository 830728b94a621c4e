package rdb

import (
	"context"
	"database/sql"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/lu-zhengda/mailacct/internal/domain"
	"github.com/lu-zhengda/mailacct/internal/store"
)

// DeleteMailAccount removes one account with its transport side and
// properties. The default account is only removed when deletePrimary is set.
func (s *DB) DeleteMailAccount(ctx context.Context, id int, props store.EventProps, userID, contextID int, deletePrimary bool) error {
	if id == domain.DefaultID && !deletePrimary {
		return store.Errorf(store.CodeNoDefaultDelete, "the default account of user %d must not be deleted", userID)
	}
	acc, err := s.loadAccount(ctx, s.db, id, userID, contextID, false)
	if err != nil {
		return err
	}
	if acc.IsDefault() && !deletePrimary {
		return store.Errorf(store.CodeNoDefaultDelete, "the default account of user %d must not be deleted", userID)
	}
	if props == nil {
		props = store.EventProps{}
	}
	fields := logrus.Fields{"account": id, "user": userID, "context": contextID}

	if s.pop3 != nil && strings.EqualFold(acc.MailProtocol, "pop3") {
		if err := s.pop3.RemovePOP3StorageFolder(ctx, acc); err != nil {
			log.WithError(err).WithFields(fields).Warn("failed to remove POP3 storage folder")
		}
	}

	for _, l := range s.listeners {
		if err := l.BeforeDeletion(ctx, acc, props); err != nil {
			return store.Wrap(store.CodeUnexpected, err, "delete of mail account %d rejected", id)
		}
	}

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		return s.deleteRowsTx(ctx, tx, id, userID, contextID)
	})
	if err != nil {
		return err
	}

	for _, l := range s.listeners {
		if err := l.AfterDeletion(ctx, acc, props); err != nil {
			log.WithError(err).WithFields(fields).Warn("post-deletion hook failed")
		}
	}
	log.WithFields(fields).Debug("deleted mail account")
	return nil
}

// deleteRowsTx clears the rows referencing the account first, so the account
// row itself can be removed without a foreign key violation.
func (s *DB) deleteRowsTx(ctx context.Context, tx *sql.Tx, id, userID, contextID int) error {
	tables := append(append([]string{}, referencingTables...),
		"user_mail_account_properties",
		"user_mail_account",
		"user_transport_account_properties",
		"user_transport_account",
	)
	for _, table := range tables {
		_, err := s.exec(ctx, tx, `DELETE FROM `+table+` WHERE cid = ? AND id = ? AND user_id = ?`,
			contextID, id, userID)
		if isForeignKeyViolation(err) {
			return sqlError(err, "mail account %d is still referenced", id)
		}
		if err != nil {
			return sqlError(err, "failed to delete from %s for account %d", table, id)
		}
	}
	return nil
}

// DeleteUserMailAccounts removes every account of a user. No listeners are
// notified.
func (s *DB) DeleteUserMailAccounts(ctx context.Context, userID, contextID int) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return s.DeleteUserMailAccountsTx(ctx, tx, userID, contextID)
	})
}

// DeleteUserMailAccountsTx is DeleteUserMailAccounts on a caller-owned
// transaction.
func (s *DB) DeleteUserMailAccountsTx(ctx context.Context, tx *sql.Tx, userID, contextID int) error {
	for _, table := range contextTables {
		if table == "sequence_mail_service" {
			continue
		}
		_, err := s.exec(ctx, tx, `DELETE FROM `+table+` WHERE cid = ? AND user_id = ?`, contextID, userID)
		if err != nil {
			return sqlError(err, "failed to delete from %s for user %d", table, userID)
		}
	}
	log.WithFields(logrus.Fields{"user": userID, "context": contextID}).Info("deleted mail accounts of user")
	return nil
}

// PurgeContext removes all account data of a context, including its ID
// sequence.
func (s *DB) PurgeContext(ctx context.Context, contextID int) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return s.PurgeContextTx(ctx, tx, contextID)
	})
}

// PurgeContextTx is PurgeContext on a caller-owned transaction.
func (s *DB) PurgeContextTx(ctx context.Context, tx *sql.Tx, contextID int) error {
	for _, table := range contextTables {
		if _, err := s.exec(ctx, tx, `DELETE FROM `+table+` WHERE cid = ?`, contextID); err != nil {
			return sqlError(err, "failed to purge %s for context %d", table, contextID)
		}
	}
	log.WithField("context", contextID).Info("purged mail accounts of context")
	return nil
}

// ContextUserIDs lists the users owning at least one account in a context.
func (s *DB) ContextUserIDs(ctx context.Context, contextID int) ([]int, error) {
	return s.contextUserIDs(ctx, s.db, contextID)
}

// ContextUserIDsTx is ContextUserIDs on a caller-owned transaction.
func (s *DB) ContextUserIDsTx(ctx context.Context, tx *sql.Tx, contextID int) ([]int, error) {
	return s.contextUserIDs(ctx, tx, contextID)
}

func (s *DB) contextUserIDs(ctx context.Context, q querier, contextID int) ([]int, error) {
	rows, err := s.query(ctx, q, `SELECT DISTINCT user_id FROM user_mail_account WHERE cid = ? ORDER BY user_id`, contextID)
	if err != nil {
		return nil, sqlError(err, "failed to list users of context %d", contextID)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, sqlError(err, "failed to scan user ID")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, sqlError(err, "failed to list users of context %d", contextID)
	}
	return ids, nil
}
