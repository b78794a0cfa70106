package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/storemap/internal/adapters/memindex"
	"github.com/samirrijal/storemap/internal/adapters/memory"
	"github.com/samirrijal/storemap/internal/core/domain"
	"github.com/samirrijal/storemap/internal/pkg/config"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Storage:     config.StorageConfig{Repository: config.BackendMemory, Index: config.BackendMemory},
		Limits:      config.LimitsConfig{MaxRadiusKm: 20, MaxNearLimit: 2, MaxWithinLimit: 500, MaxEligibleStores: 10},
		Admission:   config.AdmissionConfig{Backend: config.BackendMemory, DefaultLimit: 10, StrictLimit: 1, Window: time.Minute},
		Idempotency: config.IdempotencyConfig{Backend: config.BackendMemory, TTL: time.Minute, LockTTL: time.Second},
	}
}

func TestOpenStorage_Memory(t *testing.T) {
	cfg := memoryConfig()
	s, err := OpenStorage(context.Background(), cfg)
	require.NoError(t, err)
	defer s.Close()

	assert.IsType(t, &memory.StoreRepo{}, s.Stores)
	assert.IsType(t, &memindex.Index{}, s.Index)
	assert.Nil(t, s.DB)
	assert.False(t, s.NeedsWarmup(cfg))

	cfg.Storage.Repository = config.BackendPostgres
	assert.True(t, s.NeedsWarmup(cfg))
}

func TestNewDirectory_AppliesLimits(t *testing.T) {
	cfg := memoryConfig()
	s, err := OpenStorage(context.Background(), cfg)
	require.NoError(t, err)

	dir := NewDirectory(cfg, s, nil)
	assert.Equal(t, 2, dir.Limits().MaxNearLimit)

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_, err := dir.Create(ctx, "s", domain.GeoPoint{Lat: 41, Lon: 29 + float64(i)*0.001})
		require.NoError(t, err)
	}
	hits, err := dir.Nearest(ctx, domain.NearQuery{Center: domain.GeoPoint{Lat: 41, Lon: 29}, RadiusKm: 5, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestOpenGateway_Memory(t *testing.T) {
	cfg := memoryConfig()
	g, err := OpenGateway(cfg)
	require.NoError(t, err)
	defer g.Close()

	assert.IsType(t, &memory.IdempotencyStore{}, g.Idempotency)
	assert.IsType(t, &memory.RateCounter{}, g.Counter)
	assert.Nil(t, g.Valkey)

	adm := NewAdmission(cfg, g)
	ctx := context.Background()
	require.NoError(t, adm.Admit(ctx, "strict", "ip:1"))
	assert.ErrorIs(t, adm.Admit(ctx, "strict", "ip:1"), domain.ErrRateLimited)
}
