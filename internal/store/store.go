// Package store provides the local key-value store that backs the travel-time
// cache and the TTL application caches. Values are opaque bytes.
package store

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = eris.New("store: key not found")

// Store is a byte-valued key-value store.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Keys lists keys with the given prefix, in no particular order.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Config selects and configures a Store backend.
type Config struct {
	Driver        string // memory, sqlite, redis, postgres
	SQLitePath    string
	PostgresURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	KeyPrefix     string
}

// Open creates the configured backend and runs its migration.
func Open(ctx context.Context, cfg Config) (Store, error) {
	var (
		s   Store
		err error
	)
	switch strings.ToLower(cfg.Driver) {
	case "", "memory":
		s = NewMemory()
	case "sqlite":
		s, err = NewSQLite(cfg.SQLitePath)
	case "redis":
		s, err = NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.KeyPrefix)
	case "postgres":
		s, err = NewPostgres(ctx, cfg.PostgresURL, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}
