package store

import (
	"context"

	"github.com/lu-zhengda/mailacct/internal/domain"
)

// FolderNames holds the standard folder names and full names of an account.
type FolderNames struct {
	Trash, Sent, Drafts, Spam, ConfirmedSpam, ConfirmedHam, Archive string

	TrashFullname, SentFullname, DraftsFullname, SpamFullname    string
	ConfirmedSpamFullname, ConfirmedHamFullname, ArchiveFullname string
}

// FolderNameProvider computes standard folder names for an account that is
// about to be stored without them.
type FolderNameProvider interface {
	FolderNames(ctx context.Context, acc *domain.MailAccount) (FolderNames, error)
}

// DefaultFolderNames is a FolderNameProvider with fixed names. Full names
// are the names below Prefix, joined with Separator.
type DefaultFolderNames struct {
	Names     FolderNames
	Prefix    string
	Separator string
}

// NewDefaultFolderNames returns a provider with the usual English names at
// the root level.
func NewDefaultFolderNames() *DefaultFolderNames {
	return &DefaultFolderNames{
		Names: FolderNames{
			Trash:         "Trash",
			Sent:          "Sent",
			Drafts:        "Drafts",
			Spam:          "Spam",
			ConfirmedSpam: "confirmed-spam",
			ConfirmedHam:  "confirmed-ham",
			Archive:       "Archive",
		},
		Separator: "/",
	}
}

func (p *DefaultFolderNames) FolderNames(ctx context.Context, acc *domain.MailAccount) (FolderNames, error) {
	n := p.Names
	full := func(name string) string {
		if name == "" || p.Prefix == "" {
			return name
		}
		return p.Prefix + p.Separator + name
	}
	n.TrashFullname = full(n.Trash)
	n.SentFullname = full(n.Sent)
	n.DraftsFullname = full(n.Drafts)
	n.SpamFullname = full(n.Spam)
	n.ConfirmedSpamFullname = full(n.ConfirmedSpam)
	n.ConfirmedHamFullname = full(n.ConfirmedHam)
	n.ArchiveFullname = full(n.Archive)
	return n, nil
}

// ApplyFolderNames fills every empty folder name and full name of acc from n.
func ApplyFolderNames(acc *domain.MailAccount, n FolderNames) {
	fill := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	fill(&acc.Trash, n.Trash)
	fill(&acc.Sent, n.Sent)
	fill(&acc.Drafts, n.Drafts)
	fill(&acc.Spam, n.Spam)
	fill(&acc.ConfirmedSpam, n.ConfirmedSpam)
	fill(&acc.ConfirmedHam, n.ConfirmedHam)
	fill(&acc.Archive, n.Archive)
	fill(&acc.TrashFullname, n.TrashFullname)
	fill(&acc.SentFullname, n.SentFullname)
	fill(&acc.DraftsFullname, n.DraftsFullname)
	fill(&acc.SpamFullname, n.SpamFullname)
	fill(&acc.ConfirmedSpamFullname, n.ConfirmedSpamFullname)
	fill(&acc.ConfirmedHamFullname, n.ConfirmedHamFullname)
	fill(&acc.ArchiveFullname, n.ArchiveFullname)
}
