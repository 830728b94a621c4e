package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/lu-zhengda/mailacct/internal/cache"
	"github.com/lu-zhengda/mailacct/internal/domain"
)

func newAccount(login string) *domain.MailAccount {
	acc := domain.NewMailAccount()
	acc.Name = login
	acc.Login = login
	acc.MailServer = "imap.example.com"
	acc.MailPort = 993
	acc.MailProtocol = "imap"
	acc.MailSecure = true
	return acc
}

func TestCachingStorage_ReadThrough(t *testing.T) {
	f := newFakeStorage()
	s := NewCachingStorage(f, cache.NewMemory(0))
	ctx := context.Background()
	id, _ := s.InsertMailAccount(ctx, newAccount("alice"), 1, 1, "")

	hits := testutil.ToFloat64(metricCacheHits)
	for i := 0; i < 3; i++ {
		acc, err := s.GetMailAccount(ctx, id, 1, 1)
		if err != nil {
			t.Fatalf("GetMailAccount() error: %v", err)
		}
		if acc.Login != "alice" {
			t.Errorf("login = %q", acc.Login)
		}
		if acc.GenerateMailServerURL() != "imaps://imap.example.com:993" {
			t.Errorf("url = %q", acc.GenerateMailServerURL())
		}
	}
	if n := f.getCount(); n != 1 {
		t.Errorf("underlying reads = %d, want 1", n)
	}
	if d := testutil.ToFloat64(metricCacheHits) - hits; d != 2 {
		t.Errorf("cache hits = %v, want 2", d)
	}
}

func TestCachingStorage_ReturnsCopies(t *testing.T) {
	f := newFakeStorage()
	s := NewCachingStorage(f, cache.NewMemory(0))
	ctx := context.Background()
	id, _ := s.InsertMailAccount(ctx, newAccount("bob"), 1, 1, "")

	acc, _ := s.GetMailAccount(ctx, id, 1, 1)
	acc.Login = "mallory"
	again, _ := s.GetMailAccount(ctx, id, 1, 1)
	if again.Login != "bob" {
		t.Errorf("cached account modified through returned copy: %q", again.Login)
	}
}

func TestCachingStorage_UpdateInvalidatesAndRepopulates(t *testing.T) {
	f := newFakeStorage()
	s := NewCachingStorage(f, cache.NewMemory(0))
	ctx := context.Background()
	id, _ := s.InsertMailAccount(ctx, newAccount("carol"), 1, 1, "")
	s.GetMailAccount(ctx, id, 1, 1)

	upd := newAccount("carol2")
	upd.ID = id
	if err := s.UpdateMailAccount(ctx, upd, domain.NewAttributeSet(domain.AttrLogin), 1, 1, ""); err != nil {
		t.Fatalf("UpdateMailAccount() error: %v", err)
	}
	before := f.getCount()
	acc, err := s.GetMailAccount(ctx, id, 1, 1)
	if err != nil {
		t.Fatalf("GetMailAccount() error: %v", err)
	}
	if acc.Login != "carol2" {
		t.Errorf("login = %q, want updated value", acc.Login)
	}
	if f.getCount() != before {
		t.Errorf("read after update was not served from the repopulated cache")
	}
}

func TestCachingStorage_IDsAndDelete(t *testing.T) {
	f := newFakeStorage()
	s := NewCachingStorage(f, cache.NewMemory(0))
	ctx := context.Background()
	a, _ := s.InsertMailAccount(ctx, newAccount("a"), 1, 1, "")

	accs, err := s.GetUserMailAccounts(ctx, 1, 1)
	if err != nil || len(accs) != 1 {
		t.Fatalf("GetUserMailAccounts() = %d, %v", len(accs), err)
	}
	s.InsertMailAccount(ctx, newAccount("b"), 1, 1, "")
	if accs, _ := s.GetUserMailAccounts(ctx, 1, 1); len(accs) != 2 {
		t.Errorf("after insert got %d accounts, want 2", len(accs))
	}

	if err := s.DeleteMailAccount(ctx, a, nil, 1, 1, false); err != nil {
		t.Fatalf("DeleteMailAccount() error: %v", err)
	}
	if ok, _ := s.ExistsMailAccount(ctx, a, 1, 1); ok {
		t.Error("deleted account still exists")
	}
	ids, _ := s.GetUserMailAccountIDs(ctx, 1, 1)
	if len(ids) != 1 {
		t.Errorf("ids = %v, want one", ids)
	}
}

func TestCachingStorage_ResolveCachedUntilMutation(t *testing.T) {
	f := newFakeStorage()
	s := NewCachingStorage(f, cache.NewMemory(0))
	ctx := context.Background()
	s.InsertMailAccount(ctx, newAccount("dave"), 1, 1, "")

	for i := 0; i < 2; i++ {
		res, err := s.ResolveLogin(ctx, "dave", 1)
		if err != nil || len(res) != 1 {
			t.Fatalf("ResolveLogin() = %v, %v", res, err)
		}
	}
	if f.resolves != 1 {
		t.Errorf("underlying resolves = %d, want 1", f.resolves)
	}
	s.InsertMailAccount(ctx, newAccount("dave"), 2, 1, "")
	res, _ := s.ResolveLogin(ctx, "dave", 1)
	if len(res) != 2 || f.resolves != 2 {
		t.Errorf("after insert: %v (resolves=%d)", res, f.resolves)
	}
}

func TestCachingStorage_NilCacheDelegates(t *testing.T) {
	f := newFakeStorage()
	s := NewCachingStorage(f, nil)
	ctx := context.Background()
	id, _ := s.InsertMailAccount(ctx, newAccount("erin"), 1, 1, "")

	s.GetMailAccount(ctx, id, 1, 1)
	s.GetMailAccount(ctx, id, 1, 1)
	if n := f.getCount(); n != 2 {
		t.Errorf("underlying reads = %d, want 2", n)
	}
}

func TestCachingStorage_ErrorsNotCached(t *testing.T) {
	f := newFakeStorage()
	s := NewCachingStorage(f, cache.NewMemory(0))
	ctx := context.Background()

	if _, err := s.GetMailAccount(ctx, 5, 1, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, err := s.GetMailAccount(ctx, 5, 1, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if n := f.getCount(); n != 2 {
		t.Errorf("underlying reads = %d, want 2", n)
	}
}

func TestCachingStorage_ConcurrentMissesCollapse(t *testing.T) {
	f := newFakeStorage()
	s := NewCachingStorage(f, cache.NewMemory(0))
	ctx := context.Background()
	id, _ := s.InsertMailAccount(ctx, newAccount("fay"), 1, 1, "")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.GetMailAccount(ctx, id, 1, 1); err != nil {
				t.Errorf("GetMailAccount() error: %v", err)
			}
		}()
	}
	wg.Wait()
	if n := f.getCount(); n < 1 || n > 20 {
		t.Errorf("underlying reads = %d", n)
	}
}

func TestCachingStorage_MutationSideEffects(t *testing.T) {
	f := newFakeStorage()
	sess := &fakeSession{id: "s1", params: map[string]any{ParamUnifiedInboxEnabled: true}}
	exec := &queueExecutor{}
	folders := &folderInvalidations{}
	s := NewCachingStorage(f, cache.NewMemory(0),
		WithSessions(fakeRegistry{sess}), WithExecutor(exec), WithFolderCacheInvalidator(folders))
	ctx := context.Background()

	if _, err := s.InsertMailAccount(ctx, newAccount("gus"), 1, 1, ""); err != nil {
		t.Fatalf("InsertMailAccount() error: %v", err)
	}
	if folders.n != 1 {
		t.Errorf("folder invalidations = %d, want 1", folders.n)
	}
	if len(exec.tasks) != 1 {
		t.Fatalf("submitted tasks = %d, want 1", len(exec.tasks))
	}
	if sess.params[ParamUnifiedInboxEnabled] != true {
		t.Error("session parameter reset before the task ran")
	}
	exec.runAll()
	if v, ok := sess.params[ParamUnifiedInboxEnabled]; !ok || v != nil {
		t.Errorf("session parameter = %v, want nil", v)
	}
}

// stalledStorage holds the first GetMailAccount after reading the account
// until release is closed.
type stalledStorage struct {
	*fakeStorage

	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (s *stalledStorage) GetMailAccount(ctx context.Context, id, userID, contextID int) (*domain.MailAccount, error) {
	acc, err := s.fakeStorage.GetMailAccount(ctx, id, userID, contextID)
	s.once.Do(func() {
		close(s.started)
		<-s.release
	})
	return acc, err
}

func TestCachingStorage_ReadAfterInvalidateSkipsEarlierLoad(t *testing.T) {
	f := newFakeStorage()
	stalled := &stalledStorage{fakeStorage: f, started: make(chan struct{}), release: make(chan struct{})}
	s := NewCachingStorage(stalled, cache.NewMemory(0))
	ctx := context.Background()
	id, _ := f.InsertMailAccount(ctx, newAccount("gil"), 1, 1, "")

	done := make(chan string)
	go func() {
		acc, err := s.GetMailAccount(ctx, id, 1, 1)
		if err != nil {
			t.Errorf("GetMailAccount() error: %v", err)
			done <- ""
			return
		}
		done <- acc.Login
	}()
	<-stalled.started

	f.mu.Lock()
	f.accounts[id].Login = "gil2"
	f.mu.Unlock()
	if err := s.InvalidateMailAccount(ctx, id, 1, 1); err != nil {
		t.Fatalf("InvalidateMailAccount() error: %v", err)
	}

	acc, err := s.GetMailAccount(ctx, id, 1, 1)
	if err != nil {
		t.Fatalf("GetMailAccount() error: %v", err)
	}
	if acc.Login != "gil2" {
		t.Errorf("login after invalidate = %q, want gil2", acc.Login)
	}

	close(stalled.release)
	if login := <-done; login != "gil" {
		t.Errorf("earlier read = %q, want gil", login)
	}
	acc, _ = s.GetMailAccount(ctx, id, 1, 1)
	if acc.Login != "gil2" {
		t.Errorf("cached login = %q, want gil2", acc.Login)
	}
}
