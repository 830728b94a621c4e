package listener

import (
	"context"
	"database/sql"

	"github.com/lu-zhengda/mailacct/internal/store"
)

// UserPurger deletes all accounts of a user within a caller transaction.
type UserPurger interface {
	DeleteUserMailAccountsTx(ctx context.Context, tx *sql.Tx, userID, contextID int) error
}

// ContextPurger deletes all account data of a context within a caller
// transaction.
type ContextPurger interface {
	ContextUserIDsTx(ctx context.Context, tx *sql.Tx, contextID int) ([]int, error)
	PurgeContextTx(ctx context.Context, tx *sql.Tx, contextID int) error
}

// Tx is the caller transaction a purge runs in. Work registered with
// AfterCommit runs only once Commit succeeded; a rollback discards it.
type Tx struct {
	*sql.Tx

	afterCommit []func()
}

func WrapTx(tx *sql.Tx) *Tx {
	return &Tx{Tx: tx}
}

// AfterCommit registers fn to run after a successful Commit.
func (t *Tx) AfterCommit(fn func()) {
	t.afterCommit = append(t.afterCommit, fn)
}

// Commit commits the transaction and then runs the registered hooks in
// registration order.
func (t *Tx) Commit() error {
	if err := t.Tx.Commit(); err != nil {
		return err
	}
	hooks := t.afterCommit
	t.afterCommit = nil
	for _, fn := range hooks {
		fn()
	}
	return nil
}

// UserDeleteListener removes a user's accounts as part of the user's
// deletion.
type UserDeleteListener struct {
	purger  UserPurger
	storage store.MailAccountStorage
}

func NewUserDeleteListener(purger UserPurger, storage store.MailAccountStorage) *UserDeleteListener {
	return &UserDeleteListener{purger: purger, storage: storage}
}

// OnUserDelete deletes the user's rows in tx. The user's cached accounts are
// invalidated once tx commits.
func (l *UserDeleteListener) OnUserDelete(ctx context.Context, tx *Tx, userID, contextID int) error {
	if err := l.purger.DeleteUserMailAccountsTx(ctx, tx.Tx, userID, contextID); err != nil {
		return err
	}
	tx.AfterCommit(func() { invalidate(ctx, l.storage, []int{userID}, contextID) })
	return nil
}

// ContextDeleteListener removes all account data of a context as part of the
// context's deletion.
type ContextDeleteListener struct {
	purger  ContextPurger
	storage store.MailAccountStorage
}

func NewContextDeleteListener(purger ContextPurger, storage store.MailAccountStorage) *ContextDeleteListener {
	return &ContextDeleteListener{purger: purger, storage: storage}
}

func (l *ContextDeleteListener) OnContextDelete(ctx context.Context, tx *Tx, contextID int) error {
	users, err := l.purger.ContextUserIDsTx(ctx, tx.Tx, contextID)
	if err != nil {
		return err
	}
	if err := l.purger.PurgeContextTx(ctx, tx.Tx, contextID); err != nil {
		return err
	}
	tx.AfterCommit(func() { invalidate(ctx, l.storage, users, contextID) })
	return nil
}

func invalidate(ctx context.Context, storage store.MailAccountStorage, users []int, contextID int) {
	for _, u := range users {
		if err := storage.InvalidateMailAccounts(ctx, u, contextID); err != nil {
			log.WithError(err).WithField("user", u).Warn("failed to invalidate mail accounts")
		}
	}
}
