package domain

import (
	"errors"
	"testing"
)

func TestGenerateMailServerURL(t *testing.T) {
	acc := NewMailAccount()
	acc.MailServer = "imap.example.com"
	acc.MailPort = 993
	acc.MailSecure = true
	acc.MailProtocol = "imap"

	if got, want := acc.GenerateMailServerURL(), "imaps://imap.example.com:993"; got != want {
		t.Errorf("GenerateMailServerURL() = %q, want %q", got, want)
	}

	// Changing a contributing field drops the memoized value.
	acc.MailSecure = false
	acc.MailPort = 143
	if got, want := acc.GenerateMailServerURL(), "imap://imap.example.com:143"; got != want {
		t.Errorf("after change: GenerateMailServerURL() = %q, want %q", got, want)
	}
}

func TestGenerateServerURLHosts(t *testing.T) {
	tests := []struct {
		name string
		host string
		want string
	}{
		{"idn", "bücher.example", "smtp://xn--bcher-kva.example:25"},
		{"ipv6", "::1", "smtp://[::1]:25"},
		{"ipv4", "10.0.0.1", "smtp://10.0.0.1:25"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := NewMailAccount()
			acc.TransportServer = tt.host
			acc.TransportPort = 25
			acc.TransportProtocol = "smtp"
			if got := acc.GenerateTransportServerURL(); got != tt.want {
				t.Errorf("GenerateTransportServerURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGenerateTransportServerURL_None(t *testing.T) {
	acc := NewMailAccount()
	if got := acc.GenerateTransportServerURL(); got != "" {
		t.Errorf("GenerateTransportServerURL() = %q, want empty", got)
	}
}

func TestParseServerURL(t *testing.T) {
	tests := []struct {
		raw     string
		want    ServerURL
		wantErr bool
	}{
		{raw: "imaps://imap.example.com:993", want: ServerURL{Protocol: "imap", Secure: true, Host: "imap.example.com", Port: 993}},
		{raw: "smtp://mail.example.com:587/", want: ServerURL{Protocol: "smtp", Host: "mail.example.com", Port: 587}},
		{raw: "pop3://[2001:db8::1]:110", want: ServerURL{Protocol: "pop3", Host: "2001:db8::1", Port: 110}},
		{raw: "unifiedinbox://localhost", want: ServerURL{Protocol: "unifiedinbox", Host: "localhost"}},
		{raw: "", wantErr: true},
		{raw: "imap://imap example.com:143", wantErr: true},
		{raw: "imap://imap.example.com:abc", wantErr: true},
		{raw: "imap://imap.example.com:70000", wantErr: true},
		{raw: "imap.example.com:143", wantErr: true},
		{raw: "imap://:143", wantErr: true},
		{raw: "imap://user@imap.example.com:143", wantErr: true},
		{raw: "imap://imap.example.com:143/INBOX", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseServerURL(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedURL) {
					t.Fatalf("ParseServerURL(%q) error = %v, want ErrMalformedURL", tt.raw, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseServerURL(%q) error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("ParseServerURL(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestSetMailServerURL_RoundTrip(t *testing.T) {
	acc := NewMailAccount()
	if err := acc.SetMailServerURL("imaps://imap.example.com:993"); err != nil {
		t.Fatalf("SetMailServerURL() error: %v", err)
	}
	if acc.MailServer != "imap.example.com" || acc.MailPort != 993 || !acc.MailSecure || acc.MailProtocol != "imap" {
		t.Errorf("fields = %q %d %v %q", acc.MailServer, acc.MailPort, acc.MailSecure, acc.MailProtocol)
	}
	if got := acc.GenerateMailServerURL(); got != "imaps://imap.example.com:993" {
		t.Errorf("GenerateMailServerURL() = %q", got)
	}
}

func TestSetServerURL_UnicodeHost(t *testing.T) {
	acc := NewMailAccount()
	if err := acc.SetMailServerURL("imap://xn--bcher-kva.example:143"); err != nil {
		t.Fatalf("SetMailServerURL() error: %v", err)
	}
	if acc.MailServer != "bücher.example" {
		t.Errorf("MailServer = %q, want bücher.example", acc.MailServer)
	}
	if err := acc.SetTransportServerURL("smtp://Mail.Example.com:25"); err != nil {
		t.Fatalf("SetTransportServerURL() error: %v", err)
	}
	if acc.TransportServer != "Mail.Example.com" {
		t.Errorf("TransportServer = %q, want Mail.Example.com", acc.TransportServer)
	}
}

func TestNormalizeAndUnicodeHost(t *testing.T) {
	tests := []struct {
		host, ascii string
	}{
		{"bücher.example", "xn--bcher-kva.example"},
		{"imap.example.com", "imap.example.com"},
		{"IMAP.Example.com", "IMAP.Example.com"},
		{"::1", "::1"},
	}
	for _, tt := range tests {
		if got := NormalizeHost(tt.host); got != tt.ascii {
			t.Errorf("NormalizeHost(%q) = %q, want %q", tt.host, got, tt.ascii)
		}
		if got := UnicodeHost(tt.ascii); got != tt.host {
			t.Errorf("UnicodeHost(%q) = %q, want %q", tt.ascii, got, tt.host)
		}
	}
}

func TestTransportCredentials(t *testing.T) {
	acc := NewMailAccount()
	acc.Login, acc.Password = "mail-user", "mail-secret"

	login, password := acc.TransportCredentials()
	if login != "mail-user" || password != "mail-secret" {
		t.Errorf("fallback = %q/%q, want mail side", login, password)
	}

	acc.TransportLogin = "smtp-user"
	login, password = acc.TransportCredentials()
	if login != "smtp-user" || password != "mail-secret" {
		t.Errorf("partial fallback = %q/%q", login, password)
	}

	acc.SetTransportProperty(PropTransportAuth, TransportAuthNone)
	login, password = acc.TransportCredentials()
	if login != "" || password != "" {
		t.Errorf("auth none = %q/%q, want empty", login, password)
	}
}

func TestPrepareFullname(t *testing.T) {
	tests := map[string]string{
		"default0/INBOX/Trash": "INBOX/Trash",
		"  INBOX/Sent ":        "INBOX/Sent",
		"default12.Archive":    "Archive",
		"defaults/Folder":      "defaults/Folder",
		"default3":             "",
		"Drafts":               "Drafts",
	}
	for in, want := range tests {
		if got := PrepareFullname(in); got != want {
			t.Errorf("PrepareFullname(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestClone_IsDeep(t *testing.T) {
	acc := NewMailAccount()
	acc.SetProperty(PropPOP3Path, "INBOX/pop")
	c := acc.Clone()
	c.SetProperty(PropPOP3Path, "other")
	if acc.Property(PropPOP3Path) != "INBOX/pop" {
		t.Errorf("clone shares properties map")
	}
}

func TestAttributeSet(t *testing.T) {
	s := NewAttributeSet(AttrPersonal, AttrLogin)
	if !s.Contains(AttrPersonal) || s.Contains(AttrPassword) {
		t.Fatalf("Contains() wrong for %s", s)
	}
	if got := s.String(); got != "[login personal]" {
		t.Errorf("String() = %q", got)
	}
	c := s.Clone()
	c.Remove(AttrLogin)
	if !s.Contains(AttrLogin) {
		t.Errorf("Clone() shares storage")
	}
	if len(AllAttributes()) != int(numAttributes) {
		t.Errorf("AllAttributes() has %d entries", len(AllAttributes()))
	}
	a, ok := ParseAttribute("Transport_Server")
	if !ok || a != AttrTransportServer {
		t.Errorf("ParseAttribute() = %v, %v", a, ok)
	}
	if !AttrTransportAuth.IsTransport() || AttrPOP3Path.IsTransport() {
		t.Errorf("IsTransport() wrong")
	}
}

func TestAttributeValue(t *testing.T) {
	acc := NewMailAccount()
	acc.Personal = "Jane"
	acc.SetTransportProperty(PropTransportAuth, TransportAuthCustom)
	if got := AttributeValue(acc, AttrPersonal); got != "Jane" {
		t.Errorf("AttributeValue(personal) = %v", got)
	}
	if got := AttributeValue(acc, AttrTransportAuth); got != TransportAuthCustom {
		t.Errorf("AttributeValue(transport_auth) = %v", got)
	}
	if got := AttributeValue(acc, AttrMailOAuth); got != NoOAuth {
		t.Errorf("AttributeValue(mail_oauth) = %v", got)
	}
}
