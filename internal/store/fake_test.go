package store

import (
	"context"
	"slices"
	"sync"

	"github.com/lu-zhengda/mailacct/internal/domain"
)

// fakeStorage keeps the accounts of a single user in memory and counts reads.
// Methods not overridden panic through the nil embedded interface.
type fakeStorage struct {
	MailAccountStorage

	mu       sync.Mutex
	accounts map[int]*domain.MailAccount
	nextID   int
	gets     int
	resolves int
	failURI  int // number of reads that still fail with ErrURIParseFailed
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{accounts: map[int]*domain.MailAccount{}, nextID: 1}
}

func (f *fakeStorage) GetMailAccount(ctx context.Context, id, userID, contextID int) (*domain.MailAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.failURI > 0 {
		f.failURI--
		return nil, Errorf(CodeURIParseFailed, "broken url")
	}
	acc, ok := f.accounts[id]
	if !ok {
		return nil, NotFound(id, userID, contextID)
	}
	return acc.Clone(), nil
}

func (f *fakeStorage) GetUserMailAccountIDs(ctx context.Context, userID, contextID int) ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := []int{}
	for id := range f.accounts {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func (f *fakeStorage) InsertMailAccount(ctx context.Context, acc *domain.MailAccount, userID, contextID int, secret string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := acc.Clone()
	a.ID, a.UserID, a.ContextID = f.nextID, userID, contextID
	f.accounts[a.ID] = a
	f.nextID++
	return a.ID, nil
}

func (f *fakeStorage) UpdateMailAccount(ctx context.Context, acc *domain.MailAccount, attrs domain.AttributeSet, userID, contextID int, secret string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.accounts[acc.ID]
	if !ok {
		return NotFound(acc.ID, userID, contextID)
	}
	for a := range attrs {
		domain.CopyAttribute(cur, acc, a)
	}
	return nil
}

func (f *fakeStorage) DeleteMailAccount(ctx context.Context, id int, props EventProps, userID, contextID int, deletePrimary bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.accounts, id)
	return nil
}

func (f *fakeStorage) ResolveLogin(ctx context.Context, login string, contextID int) ([]UserAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolves++
	res := []UserAccount{}
	for _, acc := range f.accounts {
		if acc.Login == login {
			res = append(res, UserAccount{UserID: acc.UserID, AccountID: acc.ID})
		}
	}
	return res, nil
}

func (f *fakeStorage) InvalidateMailAccount(ctx context.Context, id, userID, contextID int) error {
	return nil
}

func (f *fakeStorage) InvalidateMailAccounts(ctx context.Context, userID, contextID int) error {
	return nil
}

func (f *fakeStorage) getCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets
}

type fakeSession struct {
	id     string
	params map[string]any
}

func (s *fakeSession) ID() string { return s.id }

func (s *fakeSession) SetParameter(name string, value any) { s.params[name] = value }

type fakeRegistry []*fakeSession

func (r fakeRegistry) UserSessions(userID, contextID int) []Session {
	l := make([]Session, 0, len(r))
	for _, s := range r {
		l = append(l, s)
	}
	return l
}

type queueExecutor struct{ tasks []func() }

func (e *queueExecutor) Submit(task func()) { e.tasks = append(e.tasks, task) }

func (e *queueExecutor) runAll() {
	for _, t := range e.tasks {
		t()
	}
	e.tasks = nil
}

type folderInvalidations struct{ n int }

func (f *folderInvalidations) InvalidateFolderTrees(ctx context.Context, userID, contextID int) error {
	f.n++
	return nil
}
