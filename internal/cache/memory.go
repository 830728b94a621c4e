package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value   []byte
	expires time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expires.IsZero() && now.After(e.expires)
}

// Memory is an in-process Cache. A zero TTL keeps entries until removed.
type Memory struct {
	ttl time.Duration
	now func() time.Time

	mu     sync.Mutex
	items  map[string]entry
	groups map[string]map[string]entry
}

var _ Cache = (*Memory)(nil)

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		ttl:    ttl,
		now:    time.Now,
		items:  map[string]entry{},
		groups: map[string]map[string]entry{},
	}
}

func (m *Memory) newEntry(value []byte) entry {
	e := entry{value: append([]byte(nil), value...)}
	if m.ttl > 0 {
		e.expires = m.now().Add(m.ttl)
	}
	return e
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.items[key]
	if !ok {
		return nil, ErrMiss
	}
	if e.expired(m.now()) {
		delete(m.items, key)
		return nil, ErrMiss
	}
	return e.value, nil
}

func (m *Memory) Put(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = m.newEntry(value)
	return nil
}

func (m *Memory) Remove(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

func (m *Memory) GetFromGroup(ctx context.Context, group, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.groups[group]
	e, ok := g[key]
	if !ok {
		return nil, ErrMiss
	}
	if e.expired(m.now()) {
		delete(g, key)
		return nil, ErrMiss
	}
	return e.value, nil
}

func (m *Memory) PutInGroup(ctx context.Context, group, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[group]
	if !ok {
		g = map[string]entry{}
		m.groups[group] = g
	}
	g[key] = m.newEntry(value)
	return nil
}

func (m *Memory) InvalidateGroup(ctx context.Context, group string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.groups, group)
	return nil
}

// Close drops all entries.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = map[string]entry{}
	m.groups = map[string]map[string]entry{}
	return nil
}
