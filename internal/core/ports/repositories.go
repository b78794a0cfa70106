package ports

import (
	"context"

	"github.com/samirrijal/storemap/internal/core/domain"
)

// StoreRepository is the authoritative storage of stores.
type StoreRepository interface {
	// Put upserts the whole record; it is durable once Put returns.
	Put(ctx context.Context, store *domain.Store) error
	// Get returns domain.ErrNotFound for unknown ids.
	Get(ctx context.Context, id string) (*domain.Store, error)
	// GetMany returns the stores that exist among ids, in arbitrary order.
	GetMany(ctx context.Context, ids []string) ([]domain.Store, error)
	// List returns up to limit stores with id > afterID, ordered by id.
	List(ctx context.Context, afterID string, limit int) ([]domain.Store, error)
}

// SpatialIndex is a derived projection of store locations and service areas.
// Any engine that offers radius, bounding-box, containment and tile
// aggregation queries can back it.
type SpatialIndex interface {
	IndexPoint(ctx context.Context, id string, loc domain.GeoPoint) error
	// IndexShape replaces the service area of id; a nil area removes it.
	IndexShape(ctx context.Context, id string, area *domain.Polygon) error

	Nearest(ctx context.Context, center domain.GeoPoint, radiusKm float64, limit int) ([]domain.Neighbor, error)
	Within(ctx context.Context, box domain.Bounds, limit int) ([]string, error)
	Containing(ctx context.Context, p domain.GeoPoint) ([]string, error)
	Heat(ctx context.Context, precision int) ([]domain.HeatTile, error)
}

// Pinger is implemented by backends that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}
