package domain

import (
	"slices"
	"strings"
)

// Attribute names one settable field of a MailAccount.
type Attribute int

const (
	AttrName Attribute = iota
	AttrLogin
	AttrPassword
	AttrMailServer
	AttrMailPort
	AttrMailProtocol
	AttrMailSecure
	AttrMailStartTLS
	AttrMailOAuth
	AttrMailDisabled
	AttrPrimaryAddress
	AttrPersonal
	AttrReplyTo
	AttrSpamHandler
	AttrTrash
	AttrSent
	AttrDrafts
	AttrSpam
	AttrConfirmedSpam
	AttrConfirmedHam
	AttrArchive
	AttrTrashFullname
	AttrSentFullname
	AttrDraftsFullname
	AttrSpamFullname
	AttrConfirmedSpamFullname
	AttrConfirmedHamFullname
	AttrArchiveFullname
	AttrUnifiedInboxEnabled
	AttrTransportLogin
	AttrTransportPassword
	AttrTransportServer
	AttrTransportPort
	AttrTransportProtocol
	AttrTransportSecure
	AttrTransportStartTLS
	AttrTransportOAuth
	AttrTransportDisabled
	AttrTransportPersonal
	AttrTransportReplyTo
	AttrTransportAuth
	AttrPOP3RefreshRate
	AttrPOP3ExpungeOnQuit
	AttrPOP3DeleteWriteThrough
	AttrPOP3Storage
	AttrPOP3Path

	numAttributes
)

var attributeNames = [numAttributes]string{
	"name", "login", "password", "mail_server", "mail_port", "mail_protocol",
	"mail_secure", "mail_starttls", "mail_oauth", "mail_disabled",
	"primary_address", "personal", "reply_to", "spam_handler",
	"trash", "sent", "drafts", "spam", "confirmed_spam", "confirmed_ham", "archive",
	"trash_fullname", "sent_fullname", "drafts_fullname", "spam_fullname",
	"confirmed_spam_fullname", "confirmed_ham_fullname", "archive_fullname",
	"unified_inbox_enabled",
	"transport_login", "transport_password", "transport_server", "transport_port",
	"transport_protocol", "transport_secure", "transport_starttls", "transport_oauth",
	"transport_disabled", "transport_personal", "transport_reply_to", "transport_auth",
	"pop3_refresh_rate", "pop3_expunge_on_quit", "pop3_delete_write_through",
	"pop3_storage", "pop3_path",
}

func (a Attribute) String() string {
	if a < 0 || a >= numAttributes {
		return "unknown"
	}
	return attributeNames[a]
}

// ParseAttribute looks up an attribute by its String form.
func ParseAttribute(s string) (Attribute, bool) {
	i := slices.Index(attributeNames[:], strings.ToLower(strings.TrimSpace(s)))
	if i < 0 {
		return 0, false
	}
	return Attribute(i), true
}

// IsTransport reports whether a lives on the transport side.
func (a Attribute) IsTransport() bool {
	return a >= AttrTransportLogin && a <= AttrTransportAuth
}

// PropertyKey returns the properties-table key for attributes that are
// persisted as properties instead of columns.
func (a Attribute) PropertyKey() (string, bool) {
	switch a {
	case AttrTransportAuth:
		return PropTransportAuth, true
	case AttrPOP3RefreshRate:
		return PropPOP3RefreshRate, true
	case AttrPOP3ExpungeOnQuit:
		return PropPOP3ExpungeOnQuit, true
	case AttrPOP3DeleteWriteThrough:
		return PropPOP3DeleteWriteThr, true
	case AttrPOP3Storage:
		return PropPOP3Storage, true
	case AttrPOP3Path:
		return PropPOP3Path, true
	}
	return "", false
}

// AttributeSet is a set of attributes; the zero value is empty.
type AttributeSet map[Attribute]struct{}

// NewAttributeSet returns a set holding attrs.
func NewAttributeSet(attrs ...Attribute) AttributeSet {
	s := make(AttributeSet, len(attrs))
	for _, a := range attrs {
		s[a] = struct{}{}
	}
	return s
}

// AllAttributes returns a set of every attribute.
func AllAttributes() AttributeSet {
	s := make(AttributeSet, numAttributes)
	for a := Attribute(0); a < numAttributes; a++ {
		s[a] = struct{}{}
	}
	return s
}

// DefaultAccountAttributes are the only attributes that may change on the
// primary account.
func DefaultAccountAttributes() AttributeSet {
	return NewAttributeSet(AttrUnifiedInboxEnabled, AttrPersonal, AttrReplyTo, AttrArchive, AttrArchiveFullname)
}

func (s AttributeSet) Contains(a Attribute) bool {
	_, ok := s[a]
	return ok
}

func (s AttributeSet) ContainsAny(attrs ...Attribute) bool {
	for _, a := range attrs {
		if s.Contains(a) {
			return true
		}
	}
	return false
}

func (s AttributeSet) Add(a Attribute) { s[a] = struct{}{} }

func (s AttributeSet) Remove(a Attribute) { delete(s, a) }

func (s AttributeSet) Clone() AttributeSet {
	c := make(AttributeSet, len(s))
	for a := range s {
		c[a] = struct{}{}
	}
	return c
}

// Sorted returns the attributes in declaration order.
func (s AttributeSet) Sorted() []Attribute {
	l := make([]Attribute, 0, len(s))
	for a := range s {
		l = append(l, a)
	}
	slices.Sort(l)
	return l
}

func (s AttributeSet) String() string {
	names := make([]string, 0, len(s))
	for _, a := range s.Sorted() {
		names = append(names, a.String())
	}
	return "[" + strings.Join(names, " ") + "]"
}

// AttributeValue returns the value of attr on acc, in a form suitable for
// equality comparison.
func AttributeValue(acc *MailAccount, attr Attribute) any {
	if key, ok := attr.PropertyKey(); ok {
		if attr == AttrTransportAuth {
			return acc.TransportProperties[key]
		}
		return acc.Properties[key]
	}
	switch attr {
	case AttrName:
		return acc.Name
	case AttrLogin:
		return acc.Login
	case AttrPassword:
		return acc.Password
	case AttrMailServer:
		return acc.MailServer
	case AttrMailPort:
		return acc.MailPort
	case AttrMailProtocol:
		return acc.MailProtocol
	case AttrMailSecure:
		return acc.MailSecure
	case AttrMailStartTLS:
		return acc.MailStartTLS
	case AttrMailOAuth:
		return acc.MailOAuth
	case AttrMailDisabled:
		return acc.MailDisabled
	case AttrPrimaryAddress:
		return acc.PrimaryAddress
	case AttrPersonal:
		return acc.Personal
	case AttrReplyTo:
		return acc.ReplyTo
	case AttrSpamHandler:
		return acc.SpamHandler
	case AttrTrash:
		return acc.Trash
	case AttrSent:
		return acc.Sent
	case AttrDrafts:
		return acc.Drafts
	case AttrSpam:
		return acc.Spam
	case AttrConfirmedSpam:
		return acc.ConfirmedSpam
	case AttrConfirmedHam:
		return acc.ConfirmedHam
	case AttrArchive:
		return acc.Archive
	case AttrTrashFullname:
		return acc.TrashFullname
	case AttrSentFullname:
		return acc.SentFullname
	case AttrDraftsFullname:
		return acc.DraftsFullname
	case AttrSpamFullname:
		return acc.SpamFullname
	case AttrConfirmedSpamFullname:
		return acc.ConfirmedSpamFullname
	case AttrConfirmedHamFullname:
		return acc.ConfirmedHamFullname
	case AttrArchiveFullname:
		return acc.ArchiveFullname
	case AttrUnifiedInboxEnabled:
		return acc.UnifiedInboxEnabled
	case AttrTransportLogin:
		return acc.TransportLogin
	case AttrTransportPassword:
		return acc.TransportPassword
	case AttrTransportServer:
		return acc.TransportServer
	case AttrTransportPort:
		return acc.TransportPort
	case AttrTransportProtocol:
		return acc.TransportProtocol
	case AttrTransportSecure:
		return acc.TransportSecure
	case AttrTransportStartTLS:
		return acc.TransportStartTLS
	case AttrTransportOAuth:
		return acc.TransportOAuth
	case AttrTransportDisabled:
		return acc.TransportDisabled
	case AttrTransportPersonal:
		return acc.TransportPersonal
	case AttrTransportReplyTo:
		return acc.TransportReplyTo
	}
	return nil
}

// CopyAttribute sets attr on dst to its value on src.
func CopyAttribute(dst, src *MailAccount, attr Attribute) {
	if key, ok := attr.PropertyKey(); ok {
		if attr == AttrTransportAuth {
			dst.SetTransportProperty(key, src.TransportProperties[key])
		} else {
			dst.SetProperty(key, src.Properties[key])
		}
		return
	}
	switch attr {
	case AttrName:
		dst.Name = src.Name
	case AttrLogin:
		dst.Login = src.Login
	case AttrPassword:
		dst.Password = src.Password
	case AttrMailServer:
		dst.MailServer = src.MailServer
	case AttrMailPort:
		dst.MailPort = src.MailPort
	case AttrMailProtocol:
		dst.MailProtocol = src.MailProtocol
	case AttrMailSecure:
		dst.MailSecure = src.MailSecure
	case AttrMailStartTLS:
		dst.MailStartTLS = src.MailStartTLS
	case AttrMailOAuth:
		dst.MailOAuth = src.MailOAuth
	case AttrMailDisabled:
		dst.MailDisabled = src.MailDisabled
	case AttrPrimaryAddress:
		dst.PrimaryAddress = src.PrimaryAddress
	case AttrPersonal:
		dst.Personal = src.Personal
	case AttrReplyTo:
		dst.ReplyTo = src.ReplyTo
	case AttrSpamHandler:
		dst.SpamHandler = src.SpamHandler
	case AttrTrash:
		dst.Trash = src.Trash
	case AttrSent:
		dst.Sent = src.Sent
	case AttrDrafts:
		dst.Drafts = src.Drafts
	case AttrSpam:
		dst.Spam = src.Spam
	case AttrConfirmedSpam:
		dst.ConfirmedSpam = src.ConfirmedSpam
	case AttrConfirmedHam:
		dst.ConfirmedHam = src.ConfirmedHam
	case AttrArchive:
		dst.Archive = src.Archive
	case AttrTrashFullname:
		dst.TrashFullname = src.TrashFullname
	case AttrSentFullname:
		dst.SentFullname = src.SentFullname
	case AttrDraftsFullname:
		dst.DraftsFullname = src.DraftsFullname
	case AttrSpamFullname:
		dst.SpamFullname = src.SpamFullname
	case AttrConfirmedSpamFullname:
		dst.ConfirmedSpamFullname = src.ConfirmedSpamFullname
	case AttrConfirmedHamFullname:
		dst.ConfirmedHamFullname = src.ConfirmedHamFullname
	case AttrArchiveFullname:
		dst.ArchiveFullname = src.ArchiveFullname
	case AttrUnifiedInboxEnabled:
		dst.UnifiedInboxEnabled = src.UnifiedInboxEnabled
	case AttrTransportLogin:
		dst.TransportLogin = src.TransportLogin
	case AttrTransportPassword:
		dst.TransportPassword = src.TransportPassword
	case AttrTransportServer:
		dst.TransportServer = src.TransportServer
	case AttrTransportPort:
		dst.TransportPort = src.TransportPort
	case AttrTransportProtocol:
		dst.TransportProtocol = src.TransportProtocol
	case AttrTransportSecure:
		dst.TransportSecure = src.TransportSecure
	case AttrTransportStartTLS:
		dst.TransportStartTLS = src.TransportStartTLS
	case AttrTransportOAuth:
		dst.TransportOAuth = src.TransportOAuth
	case AttrTransportDisabled:
		dst.TransportDisabled = src.TransportDisabled
	case AttrTransportPersonal:
		dst.TransportPersonal = src.TransportPersonal
	case AttrTransportReplyTo:
		dst.TransportReplyTo = src.TransportReplyTo
	}
}
