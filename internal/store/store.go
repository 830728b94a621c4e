package store

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/lu-zhengda/mailacct/internal/domain"
)

var log = logrus.WithField("component", "store")

// MailAccountStorage is the persistence interface for mail accounts. The
// relational, caching and sanitizing layers all implement it and are chained
// by delegation.
type MailAccountStorage interface {
	// Reads
	GetMailAccount(ctx context.Context, id, userID, contextID int) (*domain.MailAccount, error)
	GetDefaultMailAccount(ctx context.Context, userID, contextID int) (*domain.MailAccount, error)
	GetUserMailAccounts(ctx context.Context, userID, contextID int) ([]*domain.MailAccount, error)
	GetUserMailAccountIDs(ctx context.Context, userID, contextID int) ([]int, error)
	ExistsMailAccount(ctx context.Context, id, userID, contextID int) (bool, error)
	// GetUnifiedInboxAccountID returns -1 if the user has no Unified-Inbox account.
	GetUnifiedInboxAccountID(ctx context.Context, userID, contextID int) (int, error)

	// Writes. Passwords in acc are plaintext and get encrypted with secret.
	InsertMailAccount(ctx context.Context, acc *domain.MailAccount, userID, contextID int, secret string) (int, error)
	UpdateMailAccount(ctx context.Context, acc *domain.MailAccount, attrs domain.AttributeSet, userID, contextID int, secret string) error
	ReplaceMailAccount(ctx context.Context, acc *domain.MailAccount, userID, contextID int, secret string) error
	DeleteMailAccount(ctx context.Context, id int, props EventProps, userID, contextID int, deletePrimary bool) error
	DeleteUserMailAccounts(ctx context.Context, userID, contextID int) error
	EnableMailAccount(ctx context.Context, id, userID, contextID int) error
	EnableTransportAccount(ctx context.Context, id, userID, contextID int) error

	// Resolution across a context.
	ResolveLogin(ctx context.Context, login string, contextID int) ([]UserAccount, error)
	ResolveLoginAtServer(ctx context.Context, login, serverAddr string, contextID int) ([]UserAccount, error)
	ResolvePrimaryAddr(ctx context.Context, primaryAddr string, contextID int) ([]UserAccount, error)
	GetByHostNames(ctx context.Context, hostNames []string, userID, contextID int) ([]*domain.MailAccount, error)

	// Secret rotation.
	MigratePasswords(ctx context.Context, userID, contextID int, oldSecret, newSecret string) error
	CleanUp(ctx context.Context, userID, contextID int, secret string) error
	RemoveUnrecoverableItems(ctx context.Context, userID, contextID int, secret string) error

	// Cache control; no-ops below the caching layer.
	InvalidateMailAccount(ctx context.Context, id, userID, contextID int) error
	InvalidateMailAccounts(ctx context.Context, userID, contextID int) error
}

// UserAccount identifies an account by owner and account ID.
type UserAccount struct {
	UserID    int `json:"user_id"`
	AccountID int `json:"account_id"`
}

// EventProps is shared between the before and after deletion hooks of one
// delete operation.
type EventProps map[string]any

// Event property keys.
const (
	// PropOAuthOriginated marks a deletion that was triggered by the removal of
	// the backing OAuth account.
	PropOAuthOriginated = "oauth.originated"
)
