package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/storemap/internal/core/domain"
	"github.com/samirrijal/storemap/internal/core/ports"
)

func TestStoreRepo_PutGet(t *testing.T) {
	ctx := context.Background()
	repo := NewStoreRepo()

	st := &domain.Store{ID: "s1", Name: "Central", Location: domain.GeoPoint{Lat: 43.26, Lon: -2.93}}
	require.NoError(t, repo.Put(ctx, st))

	got, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, st.Name, got.Name)
	assert.Nil(t, got.ServiceArea)

	// Mutating the returned copy must not change the stored record.
	got.Name = "changed"
	again, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Central", again.Name)

	_, err = repo.Get(ctx, "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestStoreRepo_PutReplacesWholeRecord(t *testing.T) {
	ctx := context.Background()
	repo := NewStoreRepo()

	ring := []domain.Position{{0, 0}, {1, 0}, {1, 1}, {0, 0}}
	require.NoError(t, repo.Put(ctx, &domain.Store{ID: "s1", Name: "a", ServiceArea: domain.NewPolygon(ring)}))
	require.NoError(t, repo.Put(ctx, &domain.Store{ID: "s1", Name: "a"}))

	got, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, got.ServiceArea)
	assert.Equal(t, 1, repo.Len())
}

func TestStoreRepo_GetManyAndList(t *testing.T) {
	ctx := context.Background()
	repo := NewStoreRepo()
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Put(ctx, &domain.Store{ID: fmt.Sprintf("s%d", i), Name: "x"}))
	}

	many, err := repo.GetMany(ctx, []string{"s1", "nope", "s3"})
	require.NoError(t, err)
	assert.Len(t, many, 2)

	page, err := repo.List(ctx, "", 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "s0", page[0].ID)
	assert.Equal(t, "s1", page[1].ID)

	page, err = repo.List(ctx, "s1", 10)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, "s2", page[0].ID)
}

func TestStoreRepo_ConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	repo := NewStoreRepo()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = repo.Put(ctx, &domain.Store{ID: fmt.Sprintf("s%02d", i), Name: "x"})
			_, _ = repo.Get(ctx, fmt.Sprintf("s%02d", i))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, repo.Len())
}

func TestStoreRepo_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewStoreRepo().Put(ctx, &domain.Store{ID: "s1"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIdempotencyStore_TTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewIdempotencyStore()
	s.now = func() time.Time { return now }

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got)

	resp := ports.StoredResponse{Status: 201, Body: []byte(`{"id":"a"}`)}
	require.NoError(t, s.Put(ctx, "k", resp, time.Minute))

	got, err = s.Get(ctx, "k")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 201, got.Status)
	assert.JSONEq(t, `{"id":"a"}`, string(got.Body))

	now = now.Add(time.Minute)
	got, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got, "expired entries are gone")
}

func TestIdempotencyStore_Lock(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewIdempotencyStore()
	s.now = func() time.Time { return now }

	ok, err := s.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = s.Acquire(ctx, "k", time.Second)
	assert.False(t, ok, "held lock")

	require.NoError(t, s.Release(ctx, "k"))
	ok, _ = s.Acquire(ctx, "k", time.Second)
	assert.True(t, ok, "released lock")

	now = now.Add(2 * time.Second)
	ok, _ = s.Acquire(ctx, "k", time.Second)
	assert.True(t, ok, "expired lock")
}

func TestRateCounter_Budget(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewRateCounter()
	c.now = func() time.Time { return now }

	for i := 0; i < 20; i++ {
		ok, err := c.Allow(ctx, "strict:k1", 20, time.Minute)
		require.NoError(t, err)
		require.Truef(t, ok, "request %d should pass", i+1)
	}
	ok, _ := c.Allow(ctx, "strict:k1", 20, time.Minute)
	assert.False(t, ok, "21st request is rejected")

	ok, _ = c.Allow(ctx, "strict:k2", 20, time.Minute)
	assert.True(t, ok, "other identities have their own budget")

	now = now.Add(3 * time.Second)
	ok, _ = c.Allow(ctx, "strict:k1", 20, time.Minute)
	assert.False(t, ok, "no refill before the first request leaves the window")

	now = now.Add(57 * time.Second)
	ok, _ = c.Allow(ctx, "strict:k1", 20, time.Minute)
	assert.True(t, ok, "a slot frees once the oldest request is a window old")
}

func TestRateCounter_NoSpanExceedsLimit(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start
	c := NewRateCounter()
	c.now = func() time.Time { return now }

	// One attempt per second for three minutes.
	var admitted []time.Time
	for i := 0; i < 180; i++ {
		now = start.Add(time.Duration(i) * time.Second)
		if ok, _ := c.Allow(ctx, "default:k", 20, time.Minute); ok {
			admitted = append(admitted, now)
		}
	}

	for i := range admitted {
		n := 0
		for _, at := range admitted[i:] {
			if at.Sub(admitted[i]) < time.Minute {
				n++
			}
		}
		require.LessOrEqualf(t, n, 20, "span starting at %s admitted %d", admitted[i].Sub(start), n)
	}
	assert.Len(t, admitted, 60, "20 per minute over three minutes")
}

func TestRateCounter_SweepsIdleBuckets(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewRateCounter()
	c.now = func() time.Time { return now }

	_, _ = c.Allow(ctx, "a", 10, time.Minute)
	_, _ = c.Allow(ctx, "b", 10, time.Minute)
	assert.Equal(t, 2, c.Len())

	now = now.Add(2 * time.Minute)
	_, _ = c.Allow(ctx, "c", 10, time.Minute)
	assert.Equal(t, 1, c.Len())
}
