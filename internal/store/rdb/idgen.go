package rdb

import (
	"context"
	"database/sql"
)

// IDGenerator hands out account IDs, unique per context. NextID runs inside
// the inserting transaction.
type IDGenerator interface {
	NextID(ctx context.Context, tx *sql.Tx, contextID int) (int, error)
}

// sequenceIDGenerator counts up a per-context row in sequence_mail_service.
// The first ID of a context is 1.
type sequenceIDGenerator struct {
	dialect dialect
}

func (g sequenceIDGenerator) NextID(ctx context.Context, tx *sql.Tx, contextID int) (int, error) {
	var id int
	err := tx.QueryRowContext(ctx, g.dialect.rebind(`
		INSERT INTO sequence_mail_service (cid, id) VALUES (?, 1)
		ON CONFLICT (cid) DO UPDATE SET id = sequence_mail_service.id + 1
		RETURNING id`), contextID).Scan(&id)
	if err != nil {
		return 0, sqlError(err, "failed to allocate account ID in context %d", contextID)
	}
	return id, nil
}
