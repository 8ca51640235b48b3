package cache

import (
	"context"
	"errors"
	"time"

	"github.com/marcogenualdo/discord-join/internal/config"
)

var ErrNotFound = errors.New("key not found")

// Cache is a key/value store. A ttl of zero or less stores the value without
// expiry.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	// Take deletes key and reports whether a live value was present. Of
	// concurrent callers for the same key at most one sees true.
	Take(ctx context.Context, key string) (bool, error)
	Close() error
}

func New(ctx context.Context, cfg config.CacheConfig) (Cache, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryCache(), nil
	case "sqlite":
		if cfg.SQLite == nil {
			return nil, errors.New("sqlite config is required for sqlite cache type")
		}
		return OpenSQLiteCache(ctx, cfg.SQLite.Path)
	case "redis":
		if cfg.Redis == nil {
			return nil, errors.New("redis config is required for redis cache type")
		}
		return NewRedisCache(*cfg.Redis)
	default:
		return nil, errors.New("unsupported cache type: " + cfg.Type)
	}
}
