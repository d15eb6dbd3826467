package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grantdesk/internal/models"
	"grantdesk/internal/storage"
	"grantdesk/internal/version"
)

func setupTestProvider(t *testing.T) *Provider {
	t.Helper()
	metrics := models.MetricsConfig{Enabled: true, Path: "/metrics", Port: 9090}
	obs := models.ObservabilityConfig{
		ServiceName: "test",
		Tracing: models.TracingConfig{
			Enabled:    true,
			Exporter:   "stdout",
			SampleRate: 1.0,
		},
	}
	provider, err := Setup(metrics, obs, version.Info{})
	require.NoError(t, err)
	t.Cleanup(func() { provider.Shutdown(context.Background()) })
	return provider
}

func TestNewInstrumentedStorage(t *testing.T) {
	_ = setupTestProvider(t)

	instrumented, err := NewInstrumentedStorage(storage.NewMemoryStorage())
	require.NoError(t, err)
	assert.NotNil(t, instrumented)
}

func TestInstrumentedStorage_Ping(t *testing.T) {
	_ = setupTestProvider(t)

	instrumented, err := NewInstrumentedStorage(storage.NewMemoryStorage())
	require.NoError(t, err)

	err = instrumented.Ping(context.Background())
	assert.NoError(t, err)
}

func TestInstrumentedStorage_ProgramOperations(t *testing.T) {
	_ = setupTestProvider(t)

	instrumented, err := NewInstrumentedStorage(storage.NewMemoryStorage())
	require.NoError(t, err)

	ctx := context.Background()

	program := models.NewProgram("it-donyu-2026", "IT導入補助金 2026", []string{models.CategoryITAdoption})
	err = instrumented.SaveProgram(ctx, program)
	assert.NoError(t, err)

	result, err := instrumented.GetProgram(ctx, "it-donyu-2026")
	assert.NoError(t, err)
	assert.Equal(t, "it-donyu-2026", result.ID)

	programs, err := instrumented.Programs(ctx)
	assert.NoError(t, err)
	assert.Len(t, programs, 1)

	err = instrumented.DeleteProgram(ctx, "it-donyu-2026")
	assert.NoError(t, err)
}

func TestInstrumentedStorage_ApplicationOperations(t *testing.T) {
	_ = setupTestProvider(t)

	instrumented, err := NewInstrumentedStorage(storage.NewMemoryStorage())
	require.NoError(t, err)

	ctx := context.Background()

	app := models.NewApplication("it-donyu-2026", "1.0.0", "")
	app.CompanyName = "青山製作所"
	err = instrumented.SaveApplication(ctx, app)
	assert.NoError(t, err)

	result, err := instrumented.GetApplication(ctx, app.ID)
	assert.NoError(t, err)
	assert.Equal(t, app.ID, result.ID)

	apps, err := instrumented.Applications(ctx, "")
	assert.NoError(t, err)
	assert.Len(t, apps, 1)

	err = instrumented.DeleteApplication(ctx, app.ID)
	assert.NoError(t, err)

	// Verify it's gone
	_, err = instrumented.GetApplication(ctx, app.ID)
	assert.Error(t, err)
}

func TestInstrumentedStorage_ErrorRecording(t *testing.T) {
	_ = setupTestProvider(t)

	instrumented, err := NewInstrumentedStorage(storage.NewMemoryStorage())
	require.NoError(t, err)

	ctx := context.Background()

	// Lookups for absent records record error spans
	_, err = instrumented.GetApplication(ctx, "non-existent")
	assert.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrApplicationNotFound)

	err = instrumented.DeleteProgram(ctx, "non-existent")
	assert.Error(t, err)
}

func TestInstrumentedStorage_APIKeyMethods(t *testing.T) {
	_ = setupTestProvider(t)

	instrumented, err := NewInstrumentedStorage(storage.NewMemoryStorage())
	require.NoError(t, err)

	ctx := context.Background()

	raw, err := models.GenerateAPIKey()
	require.NoError(t, err)
	key := models.NewAPIKey(models.NewKeyID(), "test", raw, []string{"read"})

	assert.NoError(t, instrumented.SaveAPIKey(ctx, key))

	got, err := instrumented.GetAPIKey(ctx, key.ID)
	assert.NoError(t, err)
	assert.Equal(t, key.Name, got.Name)

	_, err = instrumented.GetAPIKeyByHash(ctx, key.KeyHash)
	assert.NoError(t, err)

	keys, err := instrumented.APIKeys(ctx)
	assert.NoError(t, err)
	assert.Len(t, keys, 1)

	assert.NoError(t, instrumented.DeleteAPIKey(ctx, key.ID))
}

func TestInstrumentedStorage_Close(t *testing.T) {
	_ = setupTestProvider(t)

	instrumented, err := NewInstrumentedStorage(storage.NewMemoryStorage())
	require.NoError(t, err)

	err = instrumented.Close()
	assert.NoError(t, err)
}

func TestInstrumentedStorage_ImplementsInterface(t *testing.T) {
	_ = setupTestProvider(t)

	instrumented, err := NewInstrumentedStorage(storage.NewMemoryStorage())
	require.NoError(t, err)

	var _ storage.Storage = instrumented
}
