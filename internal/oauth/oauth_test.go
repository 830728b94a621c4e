package oauth

import (
	"context"
	"errors"
	"testing"

	"github.com/zalando/go-keyring"
	"golang.org/x/oauth2"
)

func newTestService(t *testing.T) *KeyringService {
	t.Helper()
	keyring.MockInit()
	return NewKeyringService(NewKeyringTokenStore())
}

type observer struct {
	deleted      []int
	reauthorized []int
}

func (o *observer) OnOAuthAccountDeleted(ctx context.Context, acc *Account) error {
	o.deleted = append(o.deleted, acc.ID)
	return errors.New("logged only")
}

func (o *observer) OnReauthorized(ctx context.Context, acc *Account) error {
	o.reauthorized = append(o.reauthorized, acc.ID)
	return nil
}

func TestKeyringService_CreateGet(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	id, err := s.CreateAccount(ctx, &Account{
		UserID: 3, ContextID: 1, DisplayName: "Work", Provider: "google",
		Scopes: []string{ScopeMail, ScopeCalendar},
		Token:  &oauth2.Token{AccessToken: "at", RefreshToken: "rt"},
	})
	if err != nil {
		t.Fatalf("CreateAccount() error: %v", err)
	}
	if id != 1 {
		t.Errorf("id = %d, want 1", id)
	}

	got, err := s.GetAccount(ctx, id, 3, 1)
	if err != nil {
		t.Fatalf("GetAccount() error: %v", err)
	}
	if got.DisplayName != "Work" || !got.HasScope(ScopeMail) {
		t.Errorf("got %+v", got)
	}
	if got.Token == nil || got.Token.RefreshToken != "rt" {
		t.Errorf("token = %+v", got.Token)
	}

	if _, err := s.GetAccount(ctx, id, 4, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("other user: err = %v, want ErrNotFound", err)
	}
}

func TestKeyringService_UpdateScopes(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	id, _ := s.CreateAccount(ctx, &Account{UserID: 1, ContextID: 1, Scopes: []string{ScopeMail, ScopeContacts}})

	if err := s.UpdateScopes(ctx, id, 1, 1, []string{ScopeContacts}); err != nil {
		t.Fatalf("UpdateScopes() error: %v", err)
	}
	got, _ := s.GetAccount(ctx, id, 1, 1)
	if got.HasScope(ScopeMail) || !got.HasScope(ScopeContacts) {
		t.Errorf("scopes = %v", got.Scopes)
	}
	if err := s.UpdateScopes(ctx, 99, 1, 1, nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestKeyringService_DeleteNotifies(t *testing.T) {
	s := newTestService(t)
	o := &observer{}
	s.OnDelete(o)
	ctx := context.Background()
	id, _ := s.CreateAccount(ctx, &Account{UserID: 1, ContextID: 1, Token: &oauth2.Token{AccessToken: "x"}})

	if err := s.DeleteAccount(ctx, id, 1, 1); err != nil {
		t.Fatalf("DeleteAccount() error: %v", err)
	}
	if len(o.deleted) != 1 || o.deleted[0] != id {
		t.Errorf("observed deletions = %v", o.deleted)
	}
	if err := s.DeleteAccount(ctx, id, 1, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: err = %v, want ErrNotFound", err)
	}
	accs, _ := s.ListAccounts(ctx, 1, 1)
	if len(accs) != 0 {
		t.Errorf("accounts after delete = %d", len(accs))
	}
}

func TestKeyringService_Reauthorize(t *testing.T) {
	s := newTestService(t)
	o := &observer{}
	s.OnReauthorize(o)
	ctx := context.Background()
	id, _ := s.CreateAccount(ctx, &Account{UserID: 1, ContextID: 1})

	if err := s.Reauthorize(ctx, id, 1, 1, &oauth2.Token{AccessToken: "fresh"}); err != nil {
		t.Fatalf("Reauthorize() error: %v", err)
	}
	if len(o.reauthorized) != 1 {
		t.Errorf("observed reauthorizations = %v", o.reauthorized)
	}
	got, _ := s.GetAccount(ctx, id, 1, 1)
	if got.Token == nil || got.Token.AccessToken != "fresh" {
		t.Errorf("token = %+v", got.Token)
	}
}

func TestKeyringTokenStore(t *testing.T) {
	keyring.MockInit()
	k := NewKeyringTokenStore()

	if err := k.SaveToken("1.2.3", &oauth2.Token{AccessToken: "a", TokenType: "Bearer"}); err != nil {
		t.Fatalf("SaveToken() error: %v", err)
	}
	tok, err := k.LoadToken("1.2.3")
	if err != nil {
		t.Fatalf("LoadToken() error: %v", err)
	}
	if tok.AccessToken != "a" || tok.TokenType != "Bearer" {
		t.Errorf("token = %+v", tok)
	}
	if err := k.DeleteToken("1.2.3"); err != nil {
		t.Fatalf("DeleteToken() error: %v", err)
	}
	if _, err := k.LoadToken("1.2.3"); !errors.Is(err, ErrNoToken) {
		t.Errorf("LoadToken() after delete: err = %v, want ErrNoToken", err)
	}
	if err := k.DeleteToken("1.2.3"); err != nil {
		t.Errorf("second DeleteToken() error: %v", err)
	}
}
