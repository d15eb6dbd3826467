package storage

import (
	"context"
	"fmt"

	"grantdesk/internal/models"
)

// New creates a Storage backend based on the storage configuration.
func New(ctx context.Context, cfg models.StorageConfig) (Storage, error) {
	switch cfg.Type {
	case models.StorageTypeMemory:
		return NewMemoryStorage(), nil
	case models.StorageTypeSQLite:
		return NewSQLiteStorage(cfg)
	case models.StorageTypePostgres:
		return NewPostgresStorage(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
