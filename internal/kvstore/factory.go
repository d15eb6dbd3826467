package kvstore

import (
	"context"
	"fmt"

	"grantdesk/internal/models"
)

// New creates a Store instance based on the cache configuration.
func New(ctx context.Context, cfg models.CacheConfig) (Store, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(cfg.Memory.CleanupInterval), nil
	case "redis":
		return NewRedisStore(ctx, cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cfg.Type)
	}
}
