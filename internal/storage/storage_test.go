package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grantdesk/internal/models"
)

// The same behavioral suite runs against every embeddable backend.
func backends(t *testing.T) map[string]Storage {
	t.Helper()

	sqlite, err := NewSQLiteStorage(models.StorageConfig{
		Type:     models.StorageTypeSQLite,
		Database: models.DatabaseConfig{DSN: filepath.Join(t.TempDir(), "test.db")},
	})
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	memory := NewMemoryStorage()
	t.Cleanup(func() { memory.Close() })

	return map[string]Storage{
		"memory": memory,
		"sqlite": sqlite,
	}
}

func testProgram(id string) *models.Program {
	from := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC)
	return &models.Program{
		ID:          id,
		Name:        "IT導入補助金 2026",
		Agency:      "METI",
		Categories:  []string{models.CategoryITAdoption},
		MaxAwardYen: 4500000,
		SubsidyRate: "1/2",
		AcceptFrom:  &from,
		AcceptUntil: &until,
		FormVersions: []models.FormVersion{
			{Version: "1.0.0", PublishedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
		},
	}
}

func TestProgramCRUD(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.GetProgram(ctx, "missing")
			assert.ErrorIs(t, err, ErrProgramNotFound)

			p := testProgram("it-donyu-2026")
			require.NoError(t, s.SaveProgram(ctx, p))

			got, err := s.GetProgram(ctx, "it-donyu-2026")
			require.NoError(t, err)
			assert.Equal(t, p.Name, got.Name)
			assert.Equal(t, p.Categories, got.Categories)
			require.NotNil(t, got.AcceptFrom)
			assert.True(t, p.AcceptFrom.Equal(*got.AcceptFrom))
			assert.Len(t, got.FormVersions, 1)

			// Upsert updates in place.
			p.Name = "IT導入補助金 2026 二次公募"
			p.FormVersions = append(p.FormVersions, models.FormVersion{
				Version: "1.1.0", PublishedAt: time.Now().UTC(),
			})
			require.NoError(t, s.SaveProgram(ctx, p))

			got, err = s.GetProgram(ctx, "it-donyu-2026")
			require.NoError(t, err)
			assert.Equal(t, p.Name, got.Name)
			assert.Len(t, got.FormVersions, 2)

			require.NoError(t, s.SaveProgram(ctx, testProgram("monozukuri-2026")))
			all, err := s.Programs(ctx)
			require.NoError(t, err)
			require.Len(t, all, 2)
			assert.Equal(t, "it-donyu-2026", all[0].ID, "programs are ordered by ID")

			require.NoError(t, s.DeleteProgram(ctx, "monozukuri-2026"))
			assert.ErrorIs(t, s.DeleteProgram(ctx, "monozukuri-2026"), ErrProgramNotFound)
		})
	}
}

func TestApplicationCRUD(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.GetApplication(ctx, "missing")
			assert.ErrorIs(t, err, ErrApplicationNotFound)

			app := models.NewApplication("it-donyu-2026", "1.0.0", "key-1")
			app.CompanyName = "青山製作所"
			app.CorporateNumber = "1234567890123"
			app.Plan.Summary = "クラウド会計の導入"
			app.Plan.KPIs = []models.KPI{{Name: "月次決算日数", Target: 5, Unit: "days", Due: "FY2027"}}
			app.Budget = []models.BudgetItem{{Label: "ソフトウェア費", AmountYen: 1200000}}
			require.NoError(t, s.SaveApplication(ctx, app))

			got, err := s.GetApplication(ctx, app.ID)
			require.NoError(t, err)
			assert.Equal(t, app.CompanyName, got.CompanyName)
			assert.Equal(t, app.Plan.KPIs, got.Plan.KPIs)
			assert.Equal(t, app.Budget, got.Budget)
			assert.Equal(t, models.ApplicationStatusDraft, got.Status)

			require.NoError(t, got.Submit())
			require.NoError(t, s.SaveApplication(ctx, got))

			got, err = s.GetApplication(ctx, app.ID)
			require.NoError(t, err)
			assert.Equal(t, models.ApplicationStatusSubmitted, got.Status)
			require.NotNil(t, got.SubmittedAt)

			require.NoError(t, s.DeleteApplication(ctx, app.ID))
			assert.ErrorIs(t, s.DeleteApplication(ctx, app.ID), ErrApplicationNotFound)
		})
	}
}

func TestApplicationsFilterByOwner(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			for i, owner := range []string{"key-1", "key-1", "key-2"} {
				app := models.NewApplication("it-donyu-2026", "1.0.0", owner)
				app.CompanyName = "test"
				app.CreatedAt = time.Now().UTC().Add(time.Duration(i) * time.Millisecond)
				require.NoError(t, s.SaveApplication(ctx, app))
			}

			mine, err := s.Applications(ctx, "key-1")
			require.NoError(t, err)
			assert.Len(t, mine, 2)

			all, err := s.Applications(ctx, "")
			require.NoError(t, err)
			assert.Len(t, all, 3)

			none, err := s.Applications(ctx, "key-3")
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	}
}

func TestAPIKeyCRUD(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			raw, err := models.GenerateAPIKey()
			require.NoError(t, err)
			key := models.NewAPIKey(models.NewKeyID(), "ci", raw, []string{"write"})
			require.NoError(t, s.SaveAPIKey(ctx, key))

			got, err := s.GetAPIKey(ctx, key.ID)
			require.NoError(t, err)
			assert.Equal(t, key.Name, got.Name)

			byHash, err := s.GetAPIKeyByHash(ctx, models.HashAPIKey(raw))
			require.NoError(t, err)
			assert.Equal(t, key.ID, byHash.ID)

			_, err = s.GetAPIKeyByHash(ctx, models.HashAPIKey("grd_wrong"))
			assert.ErrorIs(t, err, ErrAPIKeyNotFound)

			key.Enabled = false
			require.NoError(t, s.SaveAPIKey(ctx, key))
			got, err = s.GetAPIKey(ctx, key.ID)
			require.NoError(t, err)
			assert.False(t, got.Enabled)

			keys, err := s.APIKeys(ctx)
			require.NoError(t, err)
			assert.Len(t, keys, 1)

			require.NoError(t, s.DeleteAPIKey(ctx, key.ID))
			assert.ErrorIs(t, s.DeleteAPIKey(ctx, key.ID), ErrAPIKeyNotFound)
		})
	}
}

func TestMemoryStorageReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	defer s.Close()

	p := testProgram("it-donyu-2026")
	require.NoError(t, s.SaveProgram(ctx, p))

	got, err := s.GetProgram(ctx, "it-donyu-2026")
	require.NoError(t, err)
	got.Name = "mutated"
	got.Categories[0] = "mutated"

	fresh, err := s.GetProgram(ctx, "it-donyu-2026")
	require.NoError(t, err)
	assert.Equal(t, "IT導入補助金 2026", fresh.Name)
	assert.Equal(t, models.CategoryITAdoption, fresh.Categories[0])
}

func TestFactory(t *testing.T) {
	ctx := context.Background()

	s, err := New(ctx, models.StorageConfig{Type: models.StorageTypeMemory})
	require.NoError(t, err)
	defer s.Close()
	assert.IsType(t, &MemoryStorage{}, s)

	_, err = New(ctx, models.StorageConfig{Type: "cassandra"})
	assert.ErrorContains(t, err, "unsupported storage type")

	_, err = New(ctx, models.StorageConfig{Type: models.StorageTypeSQLite})
	assert.Error(t, err, "sqlite requires a DSN")
}
