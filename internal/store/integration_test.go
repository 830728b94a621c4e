package store_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/lu-zhengda/mailacct/internal/cache"
	"github.com/lu-zhengda/mailacct/internal/domain"
	"github.com/lu-zhengda/mailacct/internal/store"
	"github.com/lu-zhengda/mailacct/internal/store/rdb"
)

type plainCryptor struct{}

func (plainCryptor) Encrypt(plaintext, secret string) (string, error) {
	return secret + ":" + plaintext, nil
}

func (plainCryptor) Decrypt(ciphertext, secret string) (string, error) {
	p, ok := strings.CutPrefix(ciphertext, secret+":")
	if !ok {
		return "", errors.New("bad secret")
	}
	return p, nil
}

func newStack(t *testing.T) (*rdb.DB, store.MailAccountStorage) {
	t.Helper()
	db, err := rdb.New(":memory:", plainCryptor{})
	if err != nil {
		t.Fatalf("rdb.New() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	caching := store.NewCachingStorage(db, cache.NewMemory(0))
	return db, store.NewSanitizingStorage(caching, store.NewSanitizer(db))
}

func TestStack_RepairsBrokenURLOnRead(t *testing.T) {
	db, s := newStack(t)
	ctx := context.Background()

	acc := domain.NewMailAccount()
	acc.Name = "work"
	acc.Login = "ann"
	acc.MailServer = "imap.example.com"
	acc.MailPort = 993
	acc.MailProtocol = "imap"
	acc.MailSecure = true
	acc.PrimaryAddress = "ann@example.com"
	id, err := s.InsertMailAccount(ctx, acc, 1, 1, "k")
	if err != nil {
		t.Fatalf("InsertMailAccount() error: %v", err)
	}

	entries, err := db.ListAccountURLs(ctx, 1, 1)
	if err != nil || len(entries) != 1 {
		t.Fatalf("ListAccountURLs() = %v, %v", entries, err)
	}
	broken := entries[0]
	broken.URL = "imaps://imap.example.com:993/INBOX"
	if err := db.RepairURLs(ctx, []store.URLEntry{broken}); err != nil {
		t.Fatalf("RepairURLs() error: %v", err)
	}
	if _, err := db.GetMailAccount(ctx, id, 1, 1); !store.IsURIParseFailed(err) {
		t.Fatalf("raw read err = %v, want ErrURIParseFailed", err)
	}

	got, err := s.GetMailAccount(ctx, id, 1, 1)
	if err != nil {
		t.Fatalf("GetMailAccount() error: %v", err)
	}
	if got.GenerateMailServerURL() != "imaps://imap.example.com:993" {
		t.Errorf("url = %q", got.GenerateMailServerURL())
	}
	if _, err := db.GetMailAccount(ctx, id, 1, 1); err != nil {
		t.Errorf("stored url still broken: %v", err)
	}
}

func TestStack_UpdateVisibleThroughCache(t *testing.T) {
	_, s := newStack(t)
	ctx := context.Background()

	acc := domain.NewMailAccount()
	acc.Name = "home"
	acc.Login = "ben"
	acc.MailServer = "imap.example.com"
	acc.MailProtocol = "imap"
	acc.PrimaryAddress = "ben@example.com"
	id, err := s.InsertMailAccount(ctx, acc, 1, 1, "k")
	if err != nil {
		t.Fatalf("InsertMailAccount() error: %v", err)
	}
	if _, err := s.GetMailAccount(ctx, id, 1, 1); err != nil {
		t.Fatalf("GetMailAccount() error: %v", err)
	}

	acc.ID = id
	acc.Personal = "Ben"
	if err := s.UpdateMailAccount(ctx, acc, domain.NewAttributeSet(domain.AttrPersonal), 1, 1, "k"); err != nil {
		t.Fatalf("UpdateMailAccount() error: %v", err)
	}
	got, _ := s.GetMailAccount(ctx, id, 1, 1)
	if got.Personal != "Ben" {
		t.Errorf("personal = %q, want %q", got.Personal, "Ben")
	}

	res, err := s.ResolvePrimaryAddr(ctx, "BEN@example.com", 1)
	if err != nil || len(res) != 1 || res[0].AccountID != id {
		t.Errorf("ResolvePrimaryAddr() = %v, %v", res, err)
	}
}
