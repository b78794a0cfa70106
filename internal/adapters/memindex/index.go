// Package memindex is an in-process spatial index backed by R-trees.
package memindex

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/dhconnelly/rtreego"

	"github.com/samirrijal/storemap/internal/core/domain"
	"github.com/samirrijal/storemap/internal/pkg/geospatial"
)

// Tree fan-out and the padding applied to degenerate rectangles.
const (
	minChildren = 25
	maxChildren = 50
	tolerance   = 1e-9
)

type pointEntry struct {
	id   string
	loc  domain.GeoPoint
	rect rtreego.Rect
}

func (e *pointEntry) Bounds() rtreego.Rect { return e.rect }

type shapeEntry struct {
	id   string
	ring []domain.Position
	rect rtreego.Rect
}

func (e *shapeEntry) Bounds() rtreego.Rect { return e.rect }

// Index keeps one point and at most one polygon per store id. Coordinates
// are stored as (lon, lat).
type Index struct {
	mu     sync.RWMutex
	points *rtreego.Rtree
	shapes *rtreego.Rtree
	byID   map[string]*pointEntry
	areas  map[string]*shapeEntry
}

// New creates an empty Index.
func New() *Index {
	return &Index{
		points: rtreego.NewTree(2, minChildren, maxChildren),
		shapes: rtreego.NewTree(2, minChildren, maxChildren),
		byID:   make(map[string]*pointEntry),
		areas:  make(map[string]*shapeEntry),
	}
}

// IndexPoint upserts the point entry of id.
func (x *Index) IndexPoint(ctx context.Context, id string, loc domain.GeoPoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e := &pointEntry{id: id, loc: loc, rect: rtreego.Point{loc.Lon, loc.Lat}.ToRect(tolerance)}

	x.mu.Lock()
	defer x.mu.Unlock()
	if old, ok := x.byID[id]; ok {
		x.points.Delete(old)
	}
	x.points.Insert(e)
	x.byID[id] = e
	return nil
}

// IndexShape replaces the polygon entry of id; nil removes it.
func (x *Index) IndexShape(ctx context.Context, id string, area *domain.Polygon) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var e *shapeEntry
	if ring := area.Ring(); len(ring) > 0 {
		rect, err := boundsRect(geospatial.RingBounds(ring))
		if err != nil {
			return err
		}
		e = &shapeEntry{id: id, ring: append([]domain.Position(nil), ring...), rect: rect}
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if old, ok := x.areas[id]; ok {
		x.shapes.Delete(old)
		delete(x.areas, id)
	}
	if e != nil {
		x.shapes.Insert(e)
		x.areas[id] = e
	}
	return nil
}

// Nearest returns points within radiusKm of center by ascending distance,
// ties by id.
func (x *Index) Nearest(ctx context.Context, center domain.GeoPoint, radiusKm float64, limit int) ([]domain.Neighbor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	box := geospatial.SearchBox(center, radiusKm)

	x.mu.RLock()
	candidates, err := x.searchPoints(box)
	x.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	out := make([]domain.Neighbor, 0, len(candidates))
	for _, e := range candidates {
		if d := geospatial.DistanceKm(center, e.loc); d <= radiusKm {
			out = append(out, domain.Neighbor{ID: e.id, DistanceKm: d})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DistanceKm != out[j].DistanceKm {
			return out[i].DistanceKm < out[j].DistanceKm
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Within returns ids of points inside box, ordered by id and truncated to limit.
func (x *Index) Within(ctx context.Context, box domain.Bounds, limit int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	x.mu.RLock()
	candidates, err := x.searchPoints(box)
	x.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(candidates))
	for _, e := range candidates {
		if geospatial.InBounds(box, e.loc) {
			ids = append(ids, e.id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// Containing returns ids whose polygon covers p, ordered by id.
func (x *Index) Containing(ctx context.Context, p domain.GeoPoint) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	query := rtreego.Point{p.Lon, p.Lat}.ToRect(tolerance)

	x.mu.RLock()
	var ids []string
	for _, s := range x.shapes.SearchIntersect(query) {
		e := s.(*shapeEntry)
		if geospatial.RingContains(e.ring, p) {
			ids = append(ids, e.id)
		}
	}
	x.mu.RUnlock()

	sort.Strings(ids)
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// Heat buckets every point into tiles at zoom precision.
func (x *Index) Heat(ctx context.Context, precision int) ([]domain.HeatTile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	agg := geospatial.NewTileAggregator(precision)

	x.mu.RLock()
	for _, e := range x.byID {
		agg.Add(e.loc)
	}
	x.mu.RUnlock()

	return agg.Tiles(), nil
}

// Ping always succeeds.
func (x *Index) Ping(context.Context) error { return nil }

// Len returns the number of indexed points and polygons.
func (x *Index) Len() (points, shapes int) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.byID), len(x.areas)
}

// searchPoints returns point candidates for box. Callers hold x.mu.
func (x *Index) searchPoints(box domain.Bounds) ([]*pointEntry, error) {
	seen := make(map[string]struct{})
	var out []*pointEntry
	for _, part := range geospatial.SplitAntimeridian(box) {
		rect, err := boundsRect(part)
		if err != nil {
			return nil, err
		}
		for _, s := range x.points.SearchIntersect(rect) {
			e := s.(*pointEntry)
			if _, dup := seen[e.id]; dup {
				continue
			}
			seen[e.id] = struct{}{}
			out = append(out, e)
		}
	}
	return out, nil
}

// boundsRect converts a non-wrapping box to an R-tree rectangle padded by
// tolerance on every side.
func boundsRect(b domain.Bounds) (rtreego.Rect, error) {
	origin := rtreego.Point{b.MinLon - tolerance, b.MinLat - tolerance}
	lengths := []float64{
		math.Max(b.MaxLon-b.MinLon, 0) + 2*tolerance,
		math.Max(b.MaxLat-b.MinLat, 0) + 2*tolerance,
	}
	return rtreego.NewRect(origin, lengths)
}
