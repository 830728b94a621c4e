package cli

import (
	"strings"

	"github.com/spf13/pflag"

	"github.com/lu-zhengda/mailacct/internal/domain"
)

// flagName is the command-line name of an attribute.
func flagName(a domain.Attribute) string {
	return strings.ReplaceAll(a.String(), "_", "-")
}

// bindAccountFlags registers one flag per editable attribute, writing into
// acc.
func bindAccountFlags(fs *pflag.FlagSet, acc *domain.MailAccount) {
	str := func(p *string, a domain.Attribute, usage string) { fs.StringVar(p, flagName(a), *p, usage) }
	num := func(p *int, a domain.Attribute, usage string) { fs.IntVar(p, flagName(a), *p, usage) }
	flag := func(p *bool, a domain.Attribute, usage string) { fs.BoolVar(p, flagName(a), *p, usage) }

	str(&acc.Name, domain.AttrName, "display name of the account")
	str(&acc.Login, domain.AttrLogin, "mail server login")
	str(&acc.Password, domain.AttrPassword, "mail server password")
	str(&acc.MailServer, domain.AttrMailServer, "mail server host")
	num(&acc.MailPort, domain.AttrMailPort, "mail server port")
	str(&acc.MailProtocol, domain.AttrMailProtocol, "mail protocol (imap, pop3)")
	flag(&acc.MailSecure, domain.AttrMailSecure, "connect to the mail server over TLS")
	flag(&acc.MailStartTLS, domain.AttrMailStartTLS, "require STARTTLS on the mail server")
	num(&acc.MailOAuth, domain.AttrMailOAuth, "OAuth account for the mail server (-1 for none)")
	flag(&acc.MailDisabled, domain.AttrMailDisabled, "disable mail access")
	str(&acc.PrimaryAddress, domain.AttrPrimaryAddress, "primary email address")
	str(&acc.Personal, domain.AttrPersonal, "personal name")
	str(&acc.ReplyTo, domain.AttrReplyTo, "reply-to address")
	str(&acc.SpamHandler, domain.AttrSpamHandler, "spam handler")
	str(&acc.Trash, domain.AttrTrash, "trash folder name")
	str(&acc.Sent, domain.AttrSent, "sent folder name")
	str(&acc.Drafts, domain.AttrDrafts, "drafts folder name")
	str(&acc.Spam, domain.AttrSpam, "spam folder name")
	str(&acc.Archive, domain.AttrArchive, "archive folder name")
	str(&acc.ArchiveFullname, domain.AttrArchiveFullname, "archive folder full name")
	flag(&acc.UnifiedInboxEnabled, domain.AttrUnifiedInboxEnabled, "include the account in the Unified Inbox")

	str(&acc.TransportLogin, domain.AttrTransportLogin, "transport login (defaults to the mail login)")
	str(&acc.TransportPassword, domain.AttrTransportPassword, "transport password (defaults to the mail password)")
	str(&acc.TransportServer, domain.AttrTransportServer, "transport server host")
	num(&acc.TransportPort, domain.AttrTransportPort, "transport server port")
	str(&acc.TransportProtocol, domain.AttrTransportProtocol, "transport protocol")
	flag(&acc.TransportSecure, domain.AttrTransportSecure, "connect to the transport server over TLS")
	flag(&acc.TransportStartTLS, domain.AttrTransportStartTLS, "require STARTTLS on the transport server")
	num(&acc.TransportOAuth, domain.AttrTransportOAuth, "OAuth account for the transport server (-1 for none)")
	flag(&acc.TransportDisabled, domain.AttrTransportDisabled, "disable transport access")
	str(&acc.TransportPersonal, domain.AttrTransportPersonal, "personal name used when sending")
	str(&acc.TransportReplyTo, domain.AttrTransportReplyTo, "reply-to address used when sending")

	prop := func(a domain.Attribute, usage string) {
		key, _ := a.PropertyKey()
		fs.Var(&propertyValue{acc: acc, key: key, transport: a.IsTransport()}, flagName(a), usage)
	}
	prop(domain.AttrTransportAuth, "transport authentication (mail, custom, none)")
	prop(domain.AttrPOP3RefreshRate, "POP3 refresh rate in minutes")
	prop(domain.AttrPOP3ExpungeOnQuit, "expunge POP3 messages on quit (true, false)")
	prop(domain.AttrPOP3DeleteWriteThrough, "delete POP3 messages on the server too (true, false)")
	prop(domain.AttrPOP3Storage, "POP3 storage provider")
	prop(domain.AttrPOP3Path, "POP3 storage path")
}

// propertyValue is a pflag.Value writing into a property of the account.
type propertyValue struct {
	acc       *domain.MailAccount
	key       string
	transport bool
}

func (v *propertyValue) String() string {
	if v.acc == nil {
		return ""
	}
	if v.transport {
		return v.acc.TransportProperties[v.key]
	}
	return v.acc.Properties[v.key]
}

func (v *propertyValue) Set(s string) error {
	if v.transport {
		v.acc.SetTransportProperty(v.key, s)
	} else {
		v.acc.SetProperty(v.key, s)
	}
	return nil
}

func (v *propertyValue) Type() string { return "string" }

// changedAttributes returns the attributes whose flags were set on the
// command line.
func changedAttributes(fs *pflag.FlagSet) domain.AttributeSet {
	attrs := domain.NewAttributeSet()
	for a := range domain.AllAttributes() {
		if f := fs.Lookup(flagName(a)); f != nil && f.Changed {
			attrs.Add(a)
		}
	}
	return attrs
}
