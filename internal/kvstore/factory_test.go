package kvstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grantdesk/internal/models"
)

func TestNewMemory(t *testing.T) {
	s, err := New(context.Background(), models.CacheConfig{
		Type:   "memory",
		Memory: models.MemoryConfig{CleanupInterval: time.Minute},
	})
	require.NoError(t, err)
	defer s.Close()
	assert.IsType(t, &MemoryStore{}, s)
}

func TestNewUnsupported(t *testing.T) {
	_, err := New(context.Background(), models.CacheConfig{Type: "memcached"})
	assert.ErrorContains(t, err, "unsupported cache type")
}
