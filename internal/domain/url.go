package domain

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/idna"
)

// ErrMalformedURL is wrapped by every server URL parse failure.
var ErrMalformedURL = errors.New("malformed server URL")

var secureSchemes = map[string]string{
	"imaps": "imap",
	"pop3s": "pop3",
	"smtps": "smtp",
}

// ServerURL is the parsed form of a stored server URL.
type ServerURL struct {
	Protocol string
	Secure   bool
	Host     string
	Port     int
}

// String renders u as scheme://host[:port].
func (u ServerURL) String() string {
	return buildURL(u.Protocol, u.Secure, u.Host, u.Port)
}

// ParseServerURL parses raw strictly. Userinfo, paths other than "/",
// queries, fragments, whitespace and ports outside 1-65535 are rejected.
func ParseServerURL(raw string) (ServerURL, error) {
	var su ServerURL
	if raw == "" {
		return su, fmt.Errorf("%w: empty", ErrMalformedURL)
	}
	if strings.ContainsAny(raw, " \t\r\n") {
		return su, fmt.Errorf("%w %q: contains whitespace", ErrMalformedURL, raw)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return su, fmt.Errorf("%w %q: %v", ErrMalformedURL, raw, err)
	}
	if u.Scheme == "" || u.Opaque != "" {
		return su, fmt.Errorf("%w %q: missing scheme", ErrMalformedURL, raw)
	}
	if u.User != nil {
		return su, fmt.Errorf("%w %q: unexpected userinfo", ErrMalformedURL, raw)
	}
	if (u.Path != "" && u.Path != "/") || u.RawQuery != "" || u.Fragment != "" {
		return su, fmt.Errorf("%w %q: unexpected path", ErrMalformedURL, raw)
	}
	host := u.Hostname()
	if host == "" {
		return su, fmt.Errorf("%w %q: missing host", ErrMalformedURL, raw)
	}
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil || port < 1 || port > 65535 {
			return su, fmt.Errorf("%w %q: invalid port", ErrMalformedURL, raw)
		}
		su.Port = port
	}
	scheme := strings.ToLower(u.Scheme)
	if proto, ok := secureSchemes[scheme]; ok {
		su.Protocol, su.Secure = proto, true
	} else {
		su.Protocol = scheme
	}
	su.Host = host
	return su, nil
}

// NormalizeHost converts an internationalized host name to its ASCII form.
// ASCII names, IP literals and names that fail conversion are returned
// unchanged.
func NormalizeHost(host string) string {
	if host == "" || strings.Contains(host, ":") || isASCII(host) {
		return host
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return host
	}
	return ascii
}

// UnicodeHost is the inverse of NormalizeHost: punycode labels are decoded,
// everything else is kept as is.
func UnicodeHost(host string) string {
	if !strings.Contains(strings.ToLower(host), "xn--") {
		return host
	}
	u, err := idna.Punycode.ToUnicode(host)
	if err != nil {
		return host
	}
	return u
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

func buildURL(protocol string, secure bool, host string, port int) string {
	var b strings.Builder
	b.WriteString(protocol)
	if secure {
		b.WriteString("s")
	}
	b.WriteString("://")
	if strings.Contains(host, ":") && !strings.HasPrefix(host, "[") {
		b.WriteString("[" + host + "]")
	} else {
		b.WriteString(NormalizeHost(host))
	}
	if port > 0 {
		b.WriteString(":" + strconv.Itoa(port))
	}
	return b.String()
}

type urlKey struct {
	host     string
	port     int
	protocol string
	secure   bool
}

// urlMemo holds a generated URL for as long as the fields it was built from
// are unchanged.
type urlMemo struct {
	key urlKey
	url string
	ok  bool
}

func (m *urlMemo) get(k urlKey) string {
	if m.ok && m.key == k {
		return m.url
	}
	m.key, m.url, m.ok = k, buildURL(k.protocol, k.secure, k.host, k.port), true
	return m.url
}

// GenerateMailServerURL returns the mail server URL, e.g.
// "imaps://imap.example.com:993". An account without mail server yields "".
func (a *MailAccount) GenerateMailServerURL() string {
	if a.MailServer == "" {
		return ""
	}
	return a.mailURL.get(urlKey{a.MailServer, a.MailPort, a.MailProtocol, a.MailSecure})
}

// GenerateTransportServerURL returns the transport server URL or "" when no
// transport is configured.
func (a *MailAccount) GenerateTransportServerURL() string {
	if a.TransportServer == "" {
		return ""
	}
	return a.transportURL.get(urlKey{a.TransportServer, a.TransportPort, a.TransportProtocol, a.TransportSecure})
}

// SetMailServerURL parses raw and sets the mail server fields from it. The
// host is kept in its Unicode form.
func (a *MailAccount) SetMailServerURL(raw string) error {
	u, err := ParseServerURL(raw)
	if err != nil {
		return err
	}
	a.MailProtocol, a.MailSecure, a.MailServer, a.MailPort = u.Protocol, u.Secure, UnicodeHost(u.Host), u.Port
	return nil
}

// SetTransportServerURL parses raw and sets the transport server fields from
// it. An empty raw clears the transport side.
func (a *MailAccount) SetTransportServerURL(raw string) error {
	if raw == "" {
		a.TransportProtocol, a.TransportSecure, a.TransportServer, a.TransportPort = "", false, "", 0
		return nil
	}
	u, err := ParseServerURL(raw)
	if err != nil {
		return err
	}
	a.TransportProtocol, a.TransportSecure, a.TransportServer, a.TransportPort = u.Protocol, u.Secure, UnicodeHost(u.Host), u.Port
	return nil
}
