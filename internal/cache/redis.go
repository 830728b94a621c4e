package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisOptions configures a Redis cache.
type RedisOptions struct {
	Address  string
	Password string
	DB       int
	// Prefix is prepended to every key, so several deployments can share a
	// database.
	Prefix string
	TTL    time.Duration
}

// Redis is a Cache backed by a Redis server. A group is stored as one hash,
// so invalidating it is a single DEL.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ Cache = (*Redis)(nil)

func NewRedis(opts RedisOptions) *Redis {
	return NewRedisClient(redis.NewClient(&redis.Options{
		Addr:     opts.Address,
		Password: opts.Password,
		DB:       opts.DB,
	}), opts.Prefix, opts.TTL)
}

// NewRedisClient wraps an existing client.
func NewRedisClient(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

// Ping checks that the server is reachable.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to reach redis: %w", err)
	}
	return nil
}

func (r *Redis) key(k string) string {
	return r.prefix + k
}

func miss(err error) error {
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	return err
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		return nil, miss(err)
	}
	return b, nil
}

func (r *Redis) Put(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, r.key(key), value, r.ttl).Err()
}

func (r *Redis) Remove(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

func (r *Redis) GetFromGroup(ctx context.Context, group, key string) ([]byte, error) {
	b, err := r.client.HGet(ctx, r.key(group), key).Bytes()
	if err != nil {
		return nil, miss(err)
	}
	return b, nil
}

// PutInGroup stores key in the group hash. The TTL applies to the whole
// group and is refreshed on every write.
func (r *Redis) PutInGroup(ctx context.Context, group, key string, value []byte) error {
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, r.key(group), key, value)
	if r.ttl > 0 {
		pipe.Expire(ctx, r.key(group), r.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (r *Redis) InvalidateGroup(ctx context.Context, group string) error {
	return r.client.Del(ctx, r.key(group)).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
