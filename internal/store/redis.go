package store

import (
	"context"
	"errors"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// RedisStore implements Store on a Redis server. All keys are namespaced
// under prefix so several caches can share one database.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedis connects to addr. The connection is verified in Migrate.
func NewRedis(addr, password string, db int, prefix string) (*RedisStore, error) {
	if addr == "" {
		return nil, eris.New("redis: address is required")
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	return NewRedisFromClient(client, prefix), nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// Migrate pings the server; Redis needs no schema.
func (r *RedisStore) Migrate(ctx context.Context) error {
	return eris.Wrap(r.client.Ping(ctx).Err(), "redis: ping")
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "redis: get %s", key)
	}
	return v, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	return eris.Wrapf(r.client.Set(ctx, r.prefix+key, value, 0).Err(), "redis: set %s", key)
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	return eris.Wrapf(r.client.Del(ctx, r.prefix+key).Err(), "redis: delete %s", key)
}

func (r *RedisStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, escapeGlob(r.prefix+prefix)+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), r.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, eris.Wrap(err, "redis: scan keys")
	}
	return keys, nil
}

func escapeGlob(s string) string {
	return strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`).Replace(s)
}
