package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/lu-zhengda/mailacct/internal/domain"
	"github.com/lu-zhengda/mailacct/internal/store"
)

func testAccount() *domain.MailAccount {
	acc := domain.NewMailAccount()
	acc.ID = 3
	acc.Name = "Work"
	acc.Login = "ann"
	acc.Password = "secret"
	acc.MailServer = "imap.example.com"
	acc.MailPort = 993
	acc.MailProtocol = "imap"
	acc.MailSecure = true
	acc.PrimaryAddress = "ann@example.com"
	acc.TransportServer = "smtp.example.com"
	acc.TransportPort = 465
	acc.TransportProtocol = "smtp"
	acc.TransportSecure = true
	acc.TransportPassword = "smtp-secret"
	acc.TrashFullname = "INBOX/Trash"
	return acc
}

func TestToJSONAccount(t *testing.T) {
	got := toJSONAccount(testAccount())

	if got.ID != 3 || got.Default {
		t.Errorf("id/default = %d/%v, want 3/false", got.ID, got.Default)
	}
	if got.MailURL != "imaps://imap.example.com:993" {
		t.Errorf("mail url = %q", got.MailURL)
	}
	if got.TransportURL != "smtps://smtp.example.com:465" {
		t.Errorf("transport url = %q", got.TransportURL)
	}
	if got.MailOAuth != 0 || got.TransportOAuth != 0 {
		t.Errorf("unbound oauth should be omitted, got %d/%d", got.MailOAuth, got.TransportOAuth)
	}
	if len(got.Folders) != 1 || got.Folders["trash"] != "INBOX/Trash" {
		t.Errorf("folders = %v", got.Folders)
	}

	var buf bytes.Buffer
	if err := fprintJSON(&buf, got); err != nil {
		t.Fatalf("fprintJSON() error = %v", err)
	}
	if strings.Contains(buf.String(), "secret") {
		t.Errorf("JSON leaks a password: %s", buf.String())
	}
}

func TestToJSONAccount_NoTransport(t *testing.T) {
	acc := testAccount()
	acc.TransportServer = ""
	acc.ID = domain.DefaultID
	acc.DefaultFlag = true
	acc.MailOAuth = 7

	got := toJSONAccount(acc)
	if got.TransportURL != "" {
		t.Errorf("transport url = %q, want empty", got.TransportURL)
	}
	if !got.Default {
		t.Error("default account not marked")
	}
	if got.MailOAuth != 7 {
		t.Errorf("mail oauth = %d, want 7", got.MailOAuth)
	}
}

func TestToJSONAccounts_Empty(t *testing.T) {
	got := toJSONAccounts(nil)
	if got == nil {
		t.Fatal("got nil, want empty slice")
	}
	var buf bytes.Buffer
	if err := fprintJSON(&buf, got); err != nil {
		t.Fatalf("fprintJSON() error = %v", err)
	}
	if buf.String() != "[]\n" {
		t.Errorf("got %q, want %q", buf.String(), "[]\n")
	}
}

func TestToJSONUserAccounts(t *testing.T) {
	got := toJSONUserAccounts([]store.UserAccount{{UserID: 2, AccountID: 5}})
	var buf bytes.Buffer
	if err := fprintJSON(&buf, got); err != nil {
		t.Fatalf("fprintJSON() error = %v", err)
	}
	var parsed []map[string]int
	if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("failed to parse JSON: %v", err)
	}
	if len(parsed) != 1 || parsed[0]["user_id"] != 2 || parsed[0]["account_id"] != 5 {
		t.Errorf("parsed = %v", parsed)
	}
}

func TestJSONAction_OmitsEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := fprintJSON(&buf, jsonAction{OK: true, Action: "context-purge", ContextID: 1}); err != nil {
		t.Fatalf("fprintJSON() error = %v", err)
	}
	out := buf.String()
	for _, key := range []string{"account_id", "user_id", "attributes"} {
		if strings.Contains(out, key) {
			t.Errorf("output contains %q: %s", key, out)
		}
	}
}
