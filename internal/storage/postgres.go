package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"grantdesk/internal/models"
)

// postgresSchema mirrors the SQLite layout with JSONB documents.
const postgresSchema = `
CREATE TABLE IF NOT EXISTS programs (
    id         TEXT PRIMARY KEY,
    data       JSONB NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS applications (
    id           TEXT PRIMARY KEY,
    owner_key_id TEXT NOT NULL,
    data         JSONB NOT NULL,
    created_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_applications_owner ON applications(owner_key_id);
CREATE TABLE IF NOT EXISTS api_keys (
    id         TEXT PRIMARY KEY,
    key_hash   TEXT NOT NULL UNIQUE,
    data       JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL
);
`

// PostgresStorage implements Storage on a PostgreSQL connection pool.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage creates a connection pool, verifies connectivity, and
// bootstraps the schema.
func NewPostgresStorage(ctx context.Context, cfg models.StorageConfig) (Storage, error) {
	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("DSN is required for PostgreSQL storage")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}
	if cfg.Database.MaxOpenConns > 0 {
		poolCfg.MaxConns = int32(cfg.Database.MaxOpenConns)
	}
	if cfg.Database.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &PostgresStorage{pool: pool}, nil
}

func (ps *PostgresStorage) Programs(ctx context.Context) ([]*models.Program, error) {
	rows, err := ps.pool.Query(ctx, `SELECT data FROM programs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query programs: %w", err)
	}
	defer rows.Close()

	var programs []*models.Program
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan program: %w", err)
		}
		var p models.Program
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to decode program: %w", err)
		}
		programs = append(programs, &p)
	}
	return programs, rows.Err()
}

func (ps *PostgresStorage) GetProgram(ctx context.Context, programID string) (*models.Program, error) {
	var data []byte
	err := ps.pool.QueryRow(ctx, `SELECT data FROM programs WHERE id = $1`, programID).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProgramNotFound
		}
		return nil, fmt.Errorf("failed to get program %s: %w", programID, err)
	}

	var p models.Program
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode program %s: %w", programID, err)
	}
	return &p, nil
}

func (ps *PostgresStorage) SaveProgram(ctx context.Context, program *models.Program) error {
	data, err := json.Marshal(program)
	if err != nil {
		return fmt.Errorf("failed to encode program %s: %w", program.ID, err)
	}

	_, err = ps.pool.Exec(ctx, `
		INSERT INTO programs (id, data, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		program.ID, data, program.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save program %s: %w", program.ID, err)
	}
	return nil
}

func (ps *PostgresStorage) DeleteProgram(ctx context.Context, programID string) error {
	tag, err := ps.pool.Exec(ctx, `DELETE FROM programs WHERE id = $1`, programID)
	if err != nil {
		return fmt.Errorf("failed to delete program %s: %w", programID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProgramNotFound
	}
	return nil
}

func (ps *PostgresStorage) Applications(ctx context.Context, ownerKeyID string) ([]*models.Application, error) {
	query := `SELECT data FROM applications ORDER BY created_at`
	args := []any{}
	if ownerKeyID != "" {
		query = `SELECT data FROM applications WHERE owner_key_id = $1 ORDER BY created_at`
		args = append(args, ownerKeyID)
	}

	rows, err := ps.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query applications: %w", err)
	}
	defer rows.Close()

	var apps []*models.Application
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan application: %w", err)
		}
		var a models.Application
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, fmt.Errorf("failed to decode application: %w", err)
		}
		apps = append(apps, &a)
	}
	return apps, rows.Err()
}

func (ps *PostgresStorage) GetApplication(ctx context.Context, appID string) (*models.Application, error) {
	var data []byte
	err := ps.pool.QueryRow(ctx, `SELECT data FROM applications WHERE id = $1`, appID).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrApplicationNotFound
		}
		return nil, fmt.Errorf("failed to get application %s: %w", appID, err)
	}

	var a models.Application
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to decode application %s: %w", appID, err)
	}
	return &a, nil
}

func (ps *PostgresStorage) SaveApplication(ctx context.Context, app *models.Application) error {
	data, err := json.Marshal(app)
	if err != nil {
		return fmt.Errorf("failed to encode application %s: %w", app.ID, err)
	}

	_, err = ps.pool.Exec(ctx, `
		INSERT INTO applications (id, owner_key_id, data, created_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET owner_key_id = EXCLUDED.owner_key_id, data = EXCLUDED.data`,
		app.ID, app.OwnerKeyID, data, app.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save application %s: %w", app.ID, err)
	}
	return nil
}

func (ps *PostgresStorage) DeleteApplication(ctx context.Context, appID string) error {
	tag, err := ps.pool.Exec(ctx, `DELETE FROM applications WHERE id = $1`, appID)
	if err != nil {
		return fmt.Errorf("failed to delete application %s: %w", appID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrApplicationNotFound
	}
	return nil
}

func (ps *PostgresStorage) APIKeys(ctx context.Context) ([]*models.APIKey, error) {
	rows, err := ps.pool.Query(ctx, `SELECT data FROM api_keys ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query api keys: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan api key: %w", err)
		}
		var k models.APIKey
		if err := json.Unmarshal(data, &k); err != nil {
			return nil, fmt.Errorf("failed to decode api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (ps *PostgresStorage) GetAPIKey(ctx context.Context, keyID string) (*models.APIKey, error) {
	return ps.getAPIKey(ctx, `SELECT data FROM api_keys WHERE id = $1`, keyID)
}

func (ps *PostgresStorage) GetAPIKeyByHash(ctx context.Context, keyHash string) (*models.APIKey, error) {
	return ps.getAPIKey(ctx, `SELECT data FROM api_keys WHERE key_hash = $1`, keyHash)
}

func (ps *PostgresStorage) getAPIKey(ctx context.Context, query, arg string) (*models.APIKey, error) {
	var data []byte
	err := ps.pool.QueryRow(ctx, query, arg).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAPIKeyNotFound
		}
		return nil, fmt.Errorf("failed to get api key: %w", err)
	}

	var k models.APIKey
	if err := json.Unmarshal(data, &k); err != nil {
		return nil, fmt.Errorf("failed to decode api key: %w", err)
	}
	return &k, nil
}

func (ps *PostgresStorage) SaveAPIKey(ctx context.Context, key *models.APIKey) error {
	data, err := json.Marshal(key)
	if err != nil {
		return fmt.Errorf("failed to encode api key %s: %w", key.ID, err)
	}

	_, err = ps.pool.Exec(ctx, `
		INSERT INTO api_keys (id, key_hash, data, created_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET key_hash = EXCLUDED.key_hash, data = EXCLUDED.data`,
		key.ID, key.KeyHash, data, key.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save api key %s: %w", key.ID, err)
	}
	return nil
}

func (ps *PostgresStorage) DeleteAPIKey(ctx context.Context, keyID string) error {
	tag, err := ps.pool.Exec(ctx, `DELETE FROM api_keys WHERE id = $1`, keyID)
	if err != nil {
		return fmt.Errorf("failed to delete api key %s: %w", keyID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAPIKeyNotFound
	}
	return nil
}

func (ps *PostgresStorage) Ping(ctx context.Context) error {
	return ps.pool.Ping(ctx)
}

func (ps *PostgresStorage) Close() error {
	ps.pool.Close()
	return nil
}
