package storage

import (
	"context"
	"sort"
	"sync"

	"grantdesk/internal/models"
)

// MemoryStorage is an in-memory Storage implementation for development and
// tests. All accessors return deep copies so callers can never mutate the
// stored state through a returned pointer.
type MemoryStorage struct {
	mu           sync.RWMutex
	programs     map[string]*models.Program
	applications map[string]*models.Application
	apiKeys      map[string]*models.APIKey
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		programs:     make(map[string]*models.Program),
		applications: make(map[string]*models.Application),
		apiKeys:      make(map[string]*models.APIKey),
	}
}

func (m *MemoryStorage) Programs(ctx context.Context) ([]*models.Program, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	programs := make([]*models.Program, 0, len(m.programs))
	for _, p := range m.programs {
		programs = append(programs, copyProgram(p))
	}
	sort.Slice(programs, func(i, j int) bool { return programs[i].ID < programs[j].ID })
	return programs, nil
}

func (m *MemoryStorage) GetProgram(ctx context.Context, programID string) (*models.Program, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.programs[programID]
	if !ok {
		return nil, ErrProgramNotFound
	}
	return copyProgram(p), nil
}

func (m *MemoryStorage) SaveProgram(ctx context.Context, program *models.Program) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.programs[program.ID] = copyProgram(program)
	return nil
}

func (m *MemoryStorage) DeleteProgram(ctx context.Context, programID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.programs[programID]; !ok {
		return ErrProgramNotFound
	}
	delete(m.programs, programID)
	return nil
}

func (m *MemoryStorage) Applications(ctx context.Context, ownerKeyID string) ([]*models.Application, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	apps := make([]*models.Application, 0, len(m.applications))
	for _, a := range m.applications {
		if ownerKeyID != "" && a.OwnerKeyID != ownerKeyID {
			continue
		}
		apps = append(apps, copyApplication(a))
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].CreatedAt.Before(apps[j].CreatedAt) })
	return apps, nil
}

func (m *MemoryStorage) GetApplication(ctx context.Context, appID string) (*models.Application, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.applications[appID]
	if !ok {
		return nil, ErrApplicationNotFound
	}
	return copyApplication(a), nil
}

func (m *MemoryStorage) SaveApplication(ctx context.Context, app *models.Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.applications[app.ID] = copyApplication(app)
	return nil
}

func (m *MemoryStorage) DeleteApplication(ctx context.Context, appID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.applications[appID]; !ok {
		return ErrApplicationNotFound
	}
	delete(m.applications, appID)
	return nil
}

func (m *MemoryStorage) APIKeys(ctx context.Context) ([]*models.APIKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]*models.APIKey, 0, len(m.apiKeys))
	for _, k := range m.apiKeys {
		keys = append(keys, copyAPIKey(k))
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].CreatedAt.Before(keys[j].CreatedAt) })
	return keys, nil
}

func (m *MemoryStorage) GetAPIKey(ctx context.Context, keyID string) (*models.APIKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	k, ok := m.apiKeys[keyID]
	if !ok {
		return nil, ErrAPIKeyNotFound
	}
	return copyAPIKey(k), nil
}

func (m *MemoryStorage) GetAPIKeyByHash(ctx context.Context, keyHash string) (*models.APIKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, k := range m.apiKeys {
		if k.KeyHash == keyHash {
			return copyAPIKey(k), nil
		}
	}
	return nil, ErrAPIKeyNotFound
}

func (m *MemoryStorage) SaveAPIKey(ctx context.Context, key *models.APIKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.apiKeys[key.ID] = copyAPIKey(key)
	return nil
}

func (m *MemoryStorage) DeleteAPIKey(ctx context.Context, keyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.apiKeys[keyID]; !ok {
		return ErrAPIKeyNotFound
	}
	delete(m.apiKeys, keyID)
	return nil
}

func (m *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}

func (m *MemoryStorage) Close() error {
	return nil
}

func copyProgram(p *models.Program) *models.Program {
	cp := *p
	cp.Categories = append([]string(nil), p.Categories...)
	cp.FormVersions = append([]models.FormVersion(nil), p.FormVersions...)
	if p.AcceptFrom != nil {
		t := *p.AcceptFrom
		cp.AcceptFrom = &t
	}
	if p.AcceptUntil != nil {
		t := *p.AcceptUntil
		cp.AcceptUntil = &t
	}
	return &cp
}

func copyApplication(a *models.Application) *models.Application {
	cp := *a
	cp.Plan.KPIs = append([]models.KPI(nil), a.Plan.KPIs...)
	cp.Budget = append([]models.BudgetItem(nil), a.Budget...)
	if a.SubmittedAt != nil {
		t := *a.SubmittedAt
		cp.SubmittedAt = &t
	}
	return &cp
}

func copyAPIKey(k *models.APIKey) *models.APIKey {
	cp := *k
	cp.Permissions = append([]string(nil), k.Permissions...)
	return &cp
}
