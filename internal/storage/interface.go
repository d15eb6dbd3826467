package storage

import (
	"context"
	"errors"

	"grantdesk/internal/models"
)

// Sentinel errors shared by all backends.
var (
	ErrProgramNotFound     = errors.New("program not found")
	ErrApplicationNotFound = errors.New("application not found")
	ErrAPIKeyNotFound      = errors.New("api key not found")
)

// Storage defines the persistence interface for programs, application drafts,
// and API keys. It is a clean abstraction implemented by an in-memory map,
// SQLite, or PostgreSQL backend.
type Storage interface {
	// Programs returns all subsidy programs
	Programs(ctx context.Context) ([]*models.Program, error)

	// GetProgram retrieves a program by its ID
	GetProgram(ctx context.Context, programID string) (*models.Program, error)

	// SaveProgram stores or updates a program
	SaveProgram(ctx context.Context, program *models.Program) error

	// DeleteProgram removes a program
	DeleteProgram(ctx context.Context, programID string) error

	// Applications returns all drafts, restricted to one owner when
	// ownerKeyID is non-empty
	Applications(ctx context.Context, ownerKeyID string) ([]*models.Application, error)

	// GetApplication retrieves a draft by its ID
	GetApplication(ctx context.Context, appID string) (*models.Application, error)

	// SaveApplication stores or updates a draft
	SaveApplication(ctx context.Context, app *models.Application) error

	// DeleteApplication removes a draft
	DeleteApplication(ctx context.Context, appID string) error

	// APIKeys returns all stored API keys
	APIKeys(ctx context.Context) ([]*models.APIKey, error)

	// GetAPIKey retrieves a key by its ID
	GetAPIKey(ctx context.Context, keyID string) (*models.APIKey, error)

	// GetAPIKeyByHash retrieves a key by the hash of its raw value; used on
	// every authenticated request
	GetAPIKeyByHash(ctx context.Context, keyHash string) (*models.APIKey, error)

	// SaveAPIKey stores or updates a key
	SaveAPIKey(ctx context.Context, key *models.APIKey) error

	// DeleteAPIKey removes a key
	DeleteAPIKey(ctx context.Context, keyID string) error

	// Ping verifies the backend is reachable
	Ping(ctx context.Context) error

	// Close closes the storage connection and cleans up resources
	Close() error
}
