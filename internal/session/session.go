// Package session tracks the active sessions of users together with their
// parameter bags.
package session

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lu-zhengda/mailacct/internal/store"
)

// Session is one login of a user.
type Session struct {
	id        string
	userID    int
	contextID int
	created   time.Time

	mu     sync.Mutex
	params map[string]any
}

func New(userID, contextID int) *Session {
	return &Session{
		id:        uuid.NewString(),
		userID:    userID,
		contextID: contextID,
		created:   time.Now(),
		params:    map[string]any{},
	}
}

func (s *Session) ID() string         { return s.id }
func (s *Session) UserID() int        { return s.userID }
func (s *Session) ContextID() int     { return s.contextID }
func (s *Session) Created() time.Time { return s.created }

// Parameter returns a parameter value, or nil when unset.
func (s *Session) Parameter(name string) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params[name]
}

// SetParameter sets a parameter; a nil value removes it.
func (s *Session) SetParameter(name string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if value == nil {
		delete(s.params, name)
		return
	}
	s.params[name] = value
}

// Registry holds the active sessions.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

var _ store.SessionRegistry = (*Registry)(nil)

func NewRegistry() *Registry {
	return &Registry{sessions: map[string]*Session{}}
}

func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.id] = s
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// UserSessions returns the sessions of a user, oldest first.
func (r *Registry) UserSessions(userID, contextID int) []store.Session {
	r.mu.RLock()
	var l []*Session
	for _, s := range r.sessions {
		if s.userID == userID && s.contextID == contextID {
			l = append(l, s)
		}
	}
	r.mu.RUnlock()

	sort.Slice(l, func(i, j int) bool { return l[i].created.Before(l[j].created) })
	res := make([]store.Session, len(l))
	for i, s := range l {
		res[i] = s
	}
	return res
}
