package rdb

import (
	"context"
	"database/sql"

	"github.com/lu-zhengda/mailacct/internal/store"
)

var _ store.URLRepository = (*DB)(nil)

// ListAccountURLs returns the stored server URLs of a user, or of the whole
// context when userID is negative. Unified-Inbox accounts are included; the
// caller decides what to repair.
func (s *DB) ListAccountURLs(ctx context.Context, contextID, userID int) ([]store.URLEntry, error) {
	var entries []store.URLEntry
	for _, transport := range []bool{false, true} {
		table := "user_mail_account"
		if transport {
			table = "user_transport_account"
		}
		query := `SELECT user_id, id, url FROM ` + table + ` WHERE cid = ?`
		args := []any{contextID}
		if userID >= 0 {
			query += ` AND user_id = ?`
			args = append(args, userID)
		}
		rows, err := s.query(ctx, s.db, query+` ORDER BY user_id, id`, args...)
		if err != nil {
			return nil, sqlError(err, "failed to list server URLs of context %d", contextID)
		}
		for rows.Next() {
			e := store.URLEntry{ContextID: contextID, Transport: transport}
			if err := rows.Scan(&e.UserID, &e.ID, &e.URL); err != nil {
				rows.Close()
				return nil, sqlError(err, "failed to scan server URL")
			}
			entries = append(entries, e)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, sqlError(err, "failed to list server URLs of context %d", contextID)
		}
	}
	return entries, nil
}

// RepairURLs writes the given URLs in one transaction.
func (s *DB) RepairURLs(ctx context.Context, fixes []store.URLEntry) error {
	if len(fixes) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, f := range fixes {
			table := "user_mail_account"
			if f.Transport {
				table = "user_transport_account"
			}
			_, err := s.exec(ctx, tx, `UPDATE `+table+` SET url = ? WHERE cid = ? AND id = ? AND user_id = ?`,
				f.URL, f.ContextID, f.ID, f.UserID)
			if err != nil {
				return sqlError(err, "failed to repair server URL of account %d", f.ID)
			}
		}
		return nil
	})
}
