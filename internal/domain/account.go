package domain

import (
	"maps"
	"strings"
)

const (
	// DefaultID is the account ID reserved for a user's primary mailbox.
	DefaultID = 0
	// NoOAuth marks an account side that is not bound to an OAuth account.
	NoOAuth = -1
	// UnifiedInboxProtocol identifies the Unified-Inbox pseudo account.
	UnifiedInboxProtocol = "unifiedinbox"
)

// Property keys kept in the properties side tables.
const (
	PropAddresses          = "addresses"
	PropPOP3RefreshRate    = "pop3.refreshrate"
	PropPOP3ExpungeOnQuit  = "pop3.expungeonquit"
	PropPOP3DeleteWriteThr = "pop3.deletewritethrough"
	PropPOP3Storage        = "pop3.storage"
	PropPOP3Path           = "pop3.path"
	PropTransportAuth      = "transport.auth"
)

// Transport auth modes stored under PropTransportAuth.
const (
	TransportAuthMail   = "mail"
	TransportAuthCustom = "custom"
	TransportAuthNone   = "none"
)

// MailAccount is one account's connection profile: the mail (IMAP/POP3) side
// and the transport (SMTP) side share the same (ContextID, UserID, ID) key.
//
// Passwords hold ciphertext once an account has been read from storage. When
// passed to an insert or update they hold the plaintext.
type MailAccount struct {
	ID          int    `json:"id"`
	UserID      int    `json:"user_id"`
	ContextID   int    `json:"context_id"`
	Name        string `json:"name"`
	DefaultFlag bool   `json:"default_flag"`

	Login        string `json:"login"`
	Password     string `json:"password,omitempty"`
	MailServer   string `json:"mail_server"`
	MailPort     int    `json:"mail_port"`
	MailProtocol string `json:"mail_protocol"`
	MailSecure   bool   `json:"mail_secure"`
	MailStartTLS bool   `json:"mail_starttls"`
	MailOAuth    int    `json:"mail_oauth"`
	MailDisabled bool   `json:"mail_disabled"`

	PrimaryAddress string `json:"primary_address"`
	Personal       string `json:"personal,omitempty"`
	ReplyTo        string `json:"reply_to,omitempty"`
	SpamHandler    string `json:"spam_handler,omitempty"`

	Trash         string `json:"trash,omitempty"`
	Sent          string `json:"sent,omitempty"`
	Drafts        string `json:"drafts,omitempty"`
	Spam          string `json:"spam,omitempty"`
	ConfirmedSpam string `json:"confirmed_spam,omitempty"`
	ConfirmedHam  string `json:"confirmed_ham,omitempty"`
	Archive       string `json:"archive,omitempty"`

	TrashFullname         string `json:"trash_fullname,omitempty"`
	SentFullname          string `json:"sent_fullname,omitempty"`
	DraftsFullname        string `json:"drafts_fullname,omitempty"`
	SpamFullname          string `json:"spam_fullname,omitempty"`
	ConfirmedSpamFullname string `json:"confirmed_spam_fullname,omitempty"`
	ConfirmedHamFullname  string `json:"confirmed_ham_fullname,omitempty"`
	ArchiveFullname       string `json:"archive_fullname,omitempty"`

	UnifiedInboxEnabled bool              `json:"unified_inbox_enabled"`
	Properties          map[string]string `json:"properties,omitempty"`

	TransportLogin      string            `json:"transport_login,omitempty"`
	TransportPassword   string            `json:"transport_password,omitempty"`
	TransportServer     string            `json:"transport_server,omitempty"`
	TransportPort       int               `json:"transport_port,omitempty"`
	TransportProtocol   string            `json:"transport_protocol,omitempty"`
	TransportSecure     bool              `json:"transport_secure"`
	TransportStartTLS   bool              `json:"transport_starttls"`
	TransportOAuth      int               `json:"transport_oauth"`
	TransportDisabled   bool              `json:"transport_disabled"`
	TransportPersonal   string            `json:"transport_personal,omitempty"`
	TransportReplyTo    string            `json:"transport_reply_to,omitempty"`
	TransportProperties map[string]string `json:"transport_properties,omitempty"`

	mailURL      urlMemo
	transportURL urlMemo
}

// NewMailAccount returns an account with both OAuth bindings unset.
func NewMailAccount() *MailAccount {
	return &MailAccount{
		MailOAuth:      NoOAuth,
		TransportOAuth: NoOAuth,
	}
}

// IsDefault reports whether a is the user's primary account.
func (a *MailAccount) IsDefault() bool {
	return a.DefaultFlag
}

// IsUnifiedInbox reports whether a is the Unified-Inbox pseudo account.
func (a *MailAccount) IsUnifiedInbox() bool {
	return strings.EqualFold(a.MailProtocol, UnifiedInboxProtocol)
}

// HasTransport reports whether a transport server is configured.
func (a *MailAccount) HasTransport() bool {
	return a.TransportServer != ""
}

// TransportAuth returns the configured transport auth mode, defaulting to
// TransportAuthMail.
func (a *MailAccount) TransportAuth() string {
	if v := a.TransportProperties[PropTransportAuth]; v != "" {
		return v
	}
	return TransportAuthMail
}

// TransportCredentials returns the login and password used against the
// transport server. Unset transport credentials fall back to the mail side.
func (a *MailAccount) TransportCredentials() (login, password string) {
	switch a.TransportAuth() {
	case TransportAuthNone:
		return "", ""
	case TransportAuthCustom:
		return a.TransportLogin, a.TransportPassword
	}
	login, password = a.TransportLogin, a.TransportPassword
	if login == "" {
		login = a.Login
	}
	if password == "" {
		password = a.Password
	}
	return login, password
}

// Property returns a mail-side property value.
func (a *MailAccount) Property(name string) string {
	return a.Properties[name]
}

// SetProperty sets a mail-side property; an empty value removes it.
func (a *MailAccount) SetProperty(name, value string) {
	if value == "" {
		delete(a.Properties, name)
		return
	}
	if a.Properties == nil {
		a.Properties = map[string]string{}
	}
	a.Properties[name] = value
}

// SetTransportProperty sets a transport-side property; an empty value
// removes it.
func (a *MailAccount) SetTransportProperty(name, value string) {
	if value == "" {
		delete(a.TransportProperties, name)
		return
	}
	if a.TransportProperties == nil {
		a.TransportProperties = map[string]string{}
	}
	a.TransportProperties[name] = value
}

// Clone returns a deep copy of a.
func (a *MailAccount) Clone() *MailAccount {
	c := *a
	c.Properties = maps.Clone(a.Properties)
	c.TransportProperties = maps.Clone(a.TransportProperties)
	return &c
}

// PrepareFullname normalizes a folder full name as handed in by clients:
// surrounding whitespace and a leading "default<N>/" account prefix are
// removed.
func PrepareFullname(fullname string) string {
	s := strings.TrimSpace(fullname)
	if !strings.HasPrefix(s, "default") {
		return s
	}
	rest := s[len("default"):]
	i := 0
	for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
		i++
	}
	if i == 0 {
		return s
	}
	if i == len(rest) {
		return ""
	}
	if rest[i] != '/' && rest[i] != '.' {
		return s
	}
	return rest[i+1:]
}
