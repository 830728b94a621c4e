// Package cache provides the key/value cache behind the caching account
// storage. Entries can be grouped so that a whole group is dropped at once.
package cache

import (
	"context"
	"errors"
)

// ErrMiss is returned when a key is not cached.
var ErrMiss = errors.New("cache miss")

// Cache stores opaque values by key. Implementations are safe for concurrent
// use.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error

	GetFromGroup(ctx context.Context, group, key string) ([]byte, error)
	PutInGroup(ctx context.Context, group, key string, value []byte) error
	// InvalidateGroup drops every entry of group.
	InvalidateGroup(ctx context.Context, group string) error

	Close() error
}
