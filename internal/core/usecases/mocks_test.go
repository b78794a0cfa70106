package usecases_test

import (
	"context"
	"sync"
	"time"

	"github.com/samirrijal/storemap/internal/core/domain"
	"github.com/samirrijal/storemap/internal/core/ports"
)

// --- Mock StoreRepository ---

type mockStoreRepo struct {
	putFn     func(ctx context.Context, store *domain.Store) error
	getFn     func(ctx context.Context, id string) (*domain.Store, error)
	getManyFn func(ctx context.Context, ids []string) ([]domain.Store, error)
	listFn    func(ctx context.Context, afterID string, limit int) ([]domain.Store, error)
}

func (m *mockStoreRepo) Put(ctx context.Context, store *domain.Store) error {
	if m.putFn != nil {
		return m.putFn(ctx, store)
	}
	return nil
}

func (m *mockStoreRepo) Get(ctx context.Context, id string) (*domain.Store, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockStoreRepo) GetMany(ctx context.Context, ids []string) ([]domain.Store, error) {
	if m.getManyFn != nil {
		return m.getManyFn(ctx, ids)
	}
	return nil, nil
}

func (m *mockStoreRepo) List(ctx context.Context, afterID string, limit int) ([]domain.Store, error) {
	if m.listFn != nil {
		return m.listFn(ctx, afterID, limit)
	}
	return nil, nil
}

// --- Mock SpatialIndex ---

type mockIndex struct {
	indexPointFn func(ctx context.Context, id string, loc domain.GeoPoint) error
	indexShapeFn func(ctx context.Context, id string, area *domain.Polygon) error
	nearestFn    func(ctx context.Context, center domain.GeoPoint, radiusKm float64, limit int) ([]domain.Neighbor, error)
	withinFn     func(ctx context.Context, box domain.Bounds, limit int) ([]string, error)
	containingFn func(ctx context.Context, p domain.GeoPoint) ([]string, error)
	heatFn       func(ctx context.Context, precision int) ([]domain.HeatTile, error)
}

func (m *mockIndex) IndexPoint(ctx context.Context, id string, loc domain.GeoPoint) error {
	if m.indexPointFn != nil {
		return m.indexPointFn(ctx, id, loc)
	}
	return nil
}

func (m *mockIndex) IndexShape(ctx context.Context, id string, area *domain.Polygon) error {
	if m.indexShapeFn != nil {
		return m.indexShapeFn(ctx, id, area)
	}
	return nil
}

func (m *mockIndex) Nearest(ctx context.Context, center domain.GeoPoint, radiusKm float64, limit int) ([]domain.Neighbor, error) {
	if m.nearestFn != nil {
		return m.nearestFn(ctx, center, radiusKm, limit)
	}
	return nil, nil
}

func (m *mockIndex) Within(ctx context.Context, box domain.Bounds, limit int) ([]string, error) {
	if m.withinFn != nil {
		return m.withinFn(ctx, box, limit)
	}
	return nil, nil
}

func (m *mockIndex) Containing(ctx context.Context, p domain.GeoPoint) ([]string, error) {
	if m.containingFn != nil {
		return m.containingFn(ctx, p)
	}
	return nil, nil
}

func (m *mockIndex) Heat(ctx context.Context, precision int) ([]domain.HeatTile, error) {
	if m.heatFn != nil {
		return m.heatFn(ctx, precision)
	}
	return nil, nil
}

// --- Recording EventPublisher ---

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.StoreEvent
	err    error
}

func (p *recordingPublisher) PublishStoreEvent(_ context.Context, event *domain.StoreEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, *event)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

// --- Mock RateCounter ---

type mockCounter struct {
	allowFn func(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

func (m *mockCounter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return m.allowFn(ctx, key, limit, window)
}

// --- Mock IdempotencyStore ---

type mockIdemStore struct {
	getFn     func(ctx context.Context, key string) (*ports.StoredResponse, error)
	putFn     func(ctx context.Context, key string, resp ports.StoredResponse, ttl time.Duration) error
	acquireFn func(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

func (m *mockIdemStore) Get(ctx context.Context, key string) (*ports.StoredResponse, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, nil
}

func (m *mockIdemStore) Put(ctx context.Context, key string, resp ports.StoredResponse, ttl time.Duration) error {
	if m.putFn != nil {
		return m.putFn(ctx, key, resp, ttl)
	}
	return nil
}

func (m *mockIdemStore) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if m.acquireFn != nil {
		return m.acquireFn(ctx, key, ttl)
	}
	return true, nil
}

func (m *mockIdemStore) Release(context.Context, string) error { return nil }
