package cli

import (
	"github.com/lu-zhengda/mailacct/internal/domain"
	"github.com/lu-zhengda/mailacct/internal/store"
)

// ---------------------------------------------------------------------------
// Account JSON types (account list, get)
// ---------------------------------------------------------------------------

type jsonAccount struct {
	ID                  int               `json:"id"`
	Name                string            `json:"name"`
	Default             bool              `json:"default"`
	Login               string            `json:"login"`
	PrimaryAddress      string            `json:"primary_address"`
	Personal            string            `json:"personal,omitempty"`
	MailURL             string            `json:"mail_url"`
	MailOAuth           int               `json:"mail_oauth,omitempty"`
	MailDisabled        bool              `json:"mail_disabled,omitempty"`
	TransportURL        string            `json:"transport_url,omitempty"`
	TransportLogin      string            `json:"transport_login,omitempty"`
	TransportOAuth      int               `json:"transport_oauth,omitempty"`
	TransportDisabled   bool              `json:"transport_disabled,omitempty"`
	UnifiedInboxEnabled bool              `json:"unified_inbox_enabled"`
	Folders             map[string]string `json:"folders,omitempty"`
	Properties          map[string]string `json:"properties,omitempty"`
}

// toJSONAccount never carries passwords.
func toJSONAccount(a *domain.MailAccount) jsonAccount {
	j := jsonAccount{
		ID:                  a.ID,
		Name:                a.Name,
		Default:             a.IsDefault(),
		Login:               a.Login,
		PrimaryAddress:      a.PrimaryAddress,
		Personal:            a.Personal,
		MailURL:             a.GenerateMailServerURL(),
		MailDisabled:        a.MailDisabled,
		TransportLogin:      a.TransportLogin,
		TransportDisabled:   a.TransportDisabled,
		UnifiedInboxEnabled: a.UnifiedInboxEnabled,
		Properties:          a.Properties,
	}
	if a.MailOAuth != domain.NoOAuth {
		j.MailOAuth = a.MailOAuth
	}
	if a.TransportOAuth != domain.NoOAuth {
		j.TransportOAuth = a.TransportOAuth
	}
	if a.HasTransport() {
		j.TransportURL = a.GenerateTransportServerURL()
	}
	folders := map[string]string{
		"trash":          a.TrashFullname,
		"sent":           a.SentFullname,
		"drafts":         a.DraftsFullname,
		"spam":           a.SpamFullname,
		"confirmed_spam": a.ConfirmedSpamFullname,
		"confirmed_ham":  a.ConfirmedHamFullname,
		"archive":        a.ArchiveFullname,
	}
	for k, v := range folders {
		if v == "" {
			delete(folders, k)
		}
	}
	if len(folders) > 0 {
		j.Folders = folders
	}
	return j
}

func toJSONAccounts(accounts []*domain.MailAccount) []jsonAccount {
	out := make([]jsonAccount, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toJSONAccount(a))
	}
	return out
}

// ---------------------------------------------------------------------------
// Resolution JSON type (resolve-login, resolve-addr)
// ---------------------------------------------------------------------------

type jsonUserAccount struct {
	UserID    int `json:"user_id"`
	AccountID int `json:"account_id"`
}

func toJSONUserAccounts(l []store.UserAccount) []jsonUserAccount {
	out := make([]jsonUserAccount, 0, len(l))
	for _, u := range l {
		out = append(out, jsonUserAccount{UserID: u.UserID, AccountID: u.AccountID})
	}
	return out
}

// ---------------------------------------------------------------------------
// Action JSON type (add, update, delete, enable, sanitize, purge, ...)
// ---------------------------------------------------------------------------

type jsonAction struct {
	OK         bool     `json:"ok"`
	Action     string   `json:"action"`
	AccountID  *int     `json:"account_id,omitempty"`
	UserID     int      `json:"user_id,omitempty"`
	ContextID  int      `json:"context_id"`
	Attributes []string `json:"attributes,omitempty"`
}
