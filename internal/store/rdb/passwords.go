package rdb

import (
	"context"
	"database/sql"

	"github.com/sirupsen/logrus"
)

var passwordTables = []string{"user_mail_account", "user_transport_account"}

type passwordRow struct {
	id          int
	password    string
	defaultFlag bool
}

func (s *DB) passwordRows(ctx context.Context, tx *sql.Tx, table string, userID, contextID int) ([]passwordRow, error) {
	rows, err := s.query(ctx, tx, `SELECT id, password, default_flag FROM `+table+`
		WHERE cid = ? AND user_id = ? AND password <> '' ORDER BY id`, contextID, userID)
	if err != nil {
		return nil, sqlError(err, "failed to read passwords of user %d", userID)
	}
	defer rows.Close()

	var l []passwordRow
	for rows.Next() {
		var r passwordRow
		if err := rows.Scan(&r.id, &r.password, &r.defaultFlag); err != nil {
			return nil, sqlError(err, "failed to scan password")
		}
		l = append(l, r)
	}
	if err := rows.Err(); err != nil {
		return nil, sqlError(err, "failed to read passwords of user %d", userID)
	}
	return l, nil
}

// writePasswords stores the password of every row with one prepared
// statement.
func (s *DB) writePasswords(ctx context.Context, tx *sql.Tx, table string, userID, contextID int, l []passwordRow) error {
	if len(l) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, s.dialect.rebind(`UPDATE `+table+` SET password = ?
		WHERE cid = ? AND id = ? AND user_id = ?`))
	if err != nil {
		return sqlError(err, "failed to prepare password update")
	}
	defer stmt.Close()

	for _, r := range l {
		if _, err := stmt.ExecContext(ctx, r.password, contextID, r.id, userID); err != nil {
			return sqlError(err, "failed to update password of account %d", r.id)
		}
	}
	return nil
}

// MigratePasswords re-encrypts the user's passwords from oldSecret to
// newSecret. Passwords already readable with newSecret are left alone; those
// readable with neither are skipped.
func (s *DB) MigratePasswords(ctx context.Context, userID, contextID int, oldSecret, newSecret string) error {
	fields := logrus.Fields{"user": userID, "context": contextID}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		migrated := 0
		for _, table := range passwordTables {
			rows, err := s.passwordRows(ctx, tx, table, userID, contextID)
			if err != nil {
				return err
			}
			var updates []passwordRow
			for _, r := range rows {
				if _, err := s.cryptor.Decrypt(r.password, newSecret); err == nil {
					continue
				}
				plain, err := s.cryptor.Decrypt(r.password, oldSecret)
				if err != nil {
					log.WithError(err).WithFields(fields).WithField("account", r.id).Warn("password not readable with old secret")
					continue
				}
				if r.password, err = s.encrypt(plain, newSecret); err != nil {
					return err
				}
				updates = append(updates, r)
			}
			if err := s.writePasswords(ctx, tx, table, userID, contextID, updates); err != nil {
				return err
			}
			migrated += len(updates)
		}
		log.WithFields(fields).WithField("count", migrated).Info("migrated passwords")
		return nil
	})
}

// CleanUp blanks every password of the user that secret cannot decrypt.
func (s *DB) CleanUp(ctx context.Context, userID, contextID int, secret string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, table := range passwordTables {
			rows, err := s.passwordRows(ctx, tx, table, userID, contextID)
			if err != nil {
				return err
			}
			blank := s.unreadable(rows, secret)
			for i := range blank {
				blank[i].password = ""
			}
			if err := s.writePasswords(ctx, tx, table, userID, contextID, blank); err != nil {
				return err
			}
		}
		return nil
	})
}

// RemoveUnrecoverableItems deletes the accounts whose mail password secret
// cannot decrypt. The default account is kept with a blanked password, as
// are transport passwords of surviving accounts.
func (s *DB) RemoveUnrecoverableItems(ctx context.Context, userID, contextID int, secret string) error {
	fields := logrus.Fields{"user": userID, "context": contextID}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		rows, err := s.passwordRows(ctx, tx, "user_mail_account", userID, contextID)
		if err != nil {
			return err
		}
		deleted := map[int]bool{}
		var blank []passwordRow
		for _, r := range s.unreadable(rows, secret) {
			if r.defaultFlag {
				r.password = ""
				blank = append(blank, r)
				continue
			}
			if err := s.deleteRowsTx(ctx, tx, r.id, userID, contextID); err != nil {
				return err
			}
			deleted[r.id] = true
			log.WithFields(fields).WithField("account", r.id).Info("removed mail account with unrecoverable password")
		}
		if err := s.writePasswords(ctx, tx, "user_mail_account", userID, contextID, blank); err != nil {
			return err
		}

		trows, err := s.passwordRows(ctx, tx, "user_transport_account", userID, contextID)
		if err != nil {
			return err
		}
		blank = blank[:0]
		for _, r := range s.unreadable(trows, secret) {
			if !deleted[r.id] {
				r.password = ""
				blank = append(blank, r)
			}
		}
		return s.writePasswords(ctx, tx, "user_transport_account", userID, contextID, blank)
	})
}

func (s *DB) unreadable(rows []passwordRow, secret string) []passwordRow {
	var l []passwordRow
	for _, r := range rows {
		if _, err := s.cryptor.Decrypt(r.password, secret); err != nil {
			l = append(l, r)
		}
	}
	return l
}
