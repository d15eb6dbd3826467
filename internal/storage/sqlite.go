package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"grantdesk/internal/models"
)

// sqliteSchema stores each entity as a JSON document keyed by its ID, with
// the columns the queries filter on pulled out alongside. Document storage
// keeps model evolution cheap; the admission layer, not the database, owns
// concurrency control.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS programs (
    id         TEXT PRIMARY KEY,
    data       TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS applications (
    id           TEXT PRIMARY KEY,
    owner_key_id TEXT NOT NULL,
    data         TEXT NOT NULL,
    created_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_applications_owner ON applications(owner_key_id);
CREATE TABLE IF NOT EXISTS api_keys (
    id         TEXT PRIMARY KEY,
    key_hash   TEXT NOT NULL UNIQUE,
    data       TEXT NOT NULL,
    created_at TEXT NOT NULL
);
`

// SQLiteStorage implements Storage on an embedded SQLite database.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens (and if needed bootstraps) a SQLite database at the
// DSN from the configuration.
func NewSQLiteStorage(cfg models.StorageConfig) (Storage, error) {
	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("DSN is required for SQLite storage")
	}

	db, err := sql.Open("sqlite", cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite serializes writers; extra connections only produce SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func (ss *SQLiteStorage) Programs(ctx context.Context) ([]*models.Program, error) {
	rows, err := ss.db.QueryContext(ctx, `SELECT data FROM programs ORDER BY id`)
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

func (ss *SQLiteStorage) GetProgram(ctx context.Context, programID string) (*models.Program, error) {
	var data []byte
	err := ss.db.QueryRowContext(ctx, `SELECT data FROM programs WHERE id = ?`, programID).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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

func (ss *SQLiteStorage) SaveProgram(ctx context.Context, program *models.Program) error {
	data, err := json.Marshal(program)
	if err != nil {
		return fmt.Errorf("failed to encode program %s: %w", program.ID, err)
	}

	_, err = ss.db.ExecContext(ctx, `
		INSERT INTO programs (id, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		program.ID, data, program.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save program %s: %w", program.ID, err)
	}
	return nil
}

func (ss *SQLiteStorage) DeleteProgram(ctx context.Context, programID string) error {
	res, err := ss.db.ExecContext(ctx, `DELETE FROM programs WHERE id = ?`, programID)
	if err != nil {
		return fmt.Errorf("failed to delete program %s: %w", programID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrProgramNotFound
	}
	return nil
}

func (ss *SQLiteStorage) Applications(ctx context.Context, ownerKeyID string) ([]*models.Application, error) {
	query := `SELECT data FROM applications ORDER BY created_at`
	args := []any{}
	if ownerKeyID != "" {
		query = `SELECT data FROM applications WHERE owner_key_id = ? ORDER BY created_at`
		args = append(args, ownerKeyID)
	}

	rows, err := ss.db.QueryContext(ctx, query, args...)
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

func (ss *SQLiteStorage) GetApplication(ctx context.Context, appID string) (*models.Application, error) {
	var data []byte
	err := ss.db.QueryRowContext(ctx, `SELECT data FROM applications WHERE id = ?`, appID).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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

func (ss *SQLiteStorage) SaveApplication(ctx context.Context, app *models.Application) error {
	data, err := json.Marshal(app)
	if err != nil {
		return fmt.Errorf("failed to encode application %s: %w", app.ID, err)
	}

	_, err = ss.db.ExecContext(ctx, `
		INSERT INTO applications (id, owner_key_id, data, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET owner_key_id = excluded.owner_key_id, data = excluded.data`,
		app.ID, app.OwnerKeyID, data, app.CreatedAt.UTC().Format("2006-01-02T15:04:05.999999999Z07:00"))
	if err != nil {
		return fmt.Errorf("failed to save application %s: %w", app.ID, err)
	}
	return nil
}

func (ss *SQLiteStorage) DeleteApplication(ctx context.Context, appID string) error {
	res, err := ss.db.ExecContext(ctx, `DELETE FROM applications WHERE id = ?`, appID)
	if err != nil {
		return fmt.Errorf("failed to delete application %s: %w", appID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrApplicationNotFound
	}
	return nil
}

func (ss *SQLiteStorage) APIKeys(ctx context.Context) ([]*models.APIKey, error) {
	rows, err := ss.db.QueryContext(ctx, `SELECT data FROM api_keys ORDER BY created_at`)
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

func (ss *SQLiteStorage) GetAPIKey(ctx context.Context, keyID string) (*models.APIKey, error) {
	return ss.getAPIKey(ctx, `SELECT data FROM api_keys WHERE id = ?`, keyID)
}

func (ss *SQLiteStorage) GetAPIKeyByHash(ctx context.Context, keyHash string) (*models.APIKey, error) {
	return ss.getAPIKey(ctx, `SELECT data FROM api_keys WHERE key_hash = ?`, keyHash)
}

func (ss *SQLiteStorage) getAPIKey(ctx context.Context, query, arg string) (*models.APIKey, error) {
	var data []byte
	err := ss.db.QueryRowContext(ctx, query, arg).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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

func (ss *SQLiteStorage) SaveAPIKey(ctx context.Context, key *models.APIKey) error {
	data, err := json.Marshal(key)
	if err != nil {
		return fmt.Errorf("failed to encode api key %s: %w", key.ID, err)
	}

	_, err = ss.db.ExecContext(ctx, `
		INSERT INTO api_keys (id, key_hash, data, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET key_hash = excluded.key_hash, data = excluded.data`,
		key.ID, key.KeyHash, data, key.CreatedAt.UTC().Format("2006-01-02T15:04:05.999999999Z07:00"))
	if err != nil {
		return fmt.Errorf("failed to save api key %s: %w", key.ID, err)
	}
	return nil
}

func (ss *SQLiteStorage) DeleteAPIKey(ctx context.Context, keyID string) error {
	res, err := ss.db.ExecContext(ctx, `DELETE FROM api_keys WHERE id = ?`, keyID)
	if err != nil {
		return fmt.Errorf("failed to delete api key %s: %w", keyID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAPIKeyNotFound
	}
	return nil
}

func (ss *SQLiteStorage) Ping(ctx context.Context) error {
	return ss.db.PingContext(ctx)
}

func (ss *SQLiteStorage) Close() error {
	return ss.db.Close()
}
