package store

import (
	"context"

	"github.com/lu-zhengda/mailacct/internal/domain"
)

// Cryptor encrypts account passwords with a session-provided secret.
type Cryptor interface {
	Encrypt(plaintext, secret string) (string, error)
	Decrypt(ciphertext, secret string) (string, error)
}

// AliasProvider returns the additional addresses of a user. They make up the
// synthesized "addresses" property of the default account.
type AliasProvider interface {
	Aliases(ctx context.Context, userID, contextID int) ([]string, error)
}

// DeleteListener is notified around the deletion of a single account. Both
// hooks receive the same props. An error from BeforeDeletion aborts the
// delete; errors from AfterDeletion are logged.
type DeleteListener interface {
	BeforeDeletion(ctx context.Context, acc *domain.MailAccount, props EventProps) error
	AfterDeletion(ctx context.Context, acc *domain.MailAccount, props EventProps) error
}

// POP3FolderRemover removes the backup folder that a POP3 account mirrors its
// messages into.
type POP3FolderRemover interface {
	RemovePOP3StorageFolder(ctx context.Context, acc *domain.MailAccount) error
}

// ParamUnifiedInboxEnabled is the session parameter caching whether the user
// has the Unified Inbox enabled.
const ParamUnifiedInboxEnabled = "mail.unifiedInboxEnabled"

// Session is an active user session with a parameter bag.
type Session interface {
	ID() string
	SetParameter(name string, value any)
}

// SessionRegistry lists the active sessions of a user.
type SessionRegistry interface {
	UserSessions(userID, contextID int) []Session
}

// FolderCacheInvalidator drops a user's cached folder trees, both the real
// ones and the virtual ones.
type FolderCacheInvalidator interface {
	InvalidateFolderTrees(ctx context.Context, userID, contextID int) error
}

// Executor runs fire-and-forget tasks.
type Executor interface {
	Submit(task func())
}

// Resolver resolves host names. *net.Resolver satisfies it.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}
