package postgres

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/samirrijal/storemap/internal/core/domain"
	"github.com/samirrijal/storemap/internal/pkg/geospatial"
)

// candidateSlack widens the ST_DWithin radius so the PostGIS sphere and the
// haversine sphere never disagree on a boundary point; exact filtering is
// done in Go.
const candidateSlack = 1.001

// SpatialIndex implements ports.SpatialIndex on PostGIS.
type SpatialIndex struct {
	db *DB
}

// NewSpatialIndex creates a new SpatialIndex.
func NewSpatialIndex(db *DB) *SpatialIndex {
	return &SpatialIndex{db: db}
}

// IndexPoint upserts the location of id.
func (x *SpatialIndex) IndexPoint(ctx context.Context, id string, loc domain.GeoPoint) error {
	_, err := x.db.Pool.Exec(ctx, `
		INSERT INTO store_geo (store_id, loc, updated_at)
		VALUES ($1, ST_SetSRID(ST_MakePoint($2, $3), 4326)::geography, now())
		ON CONFLICT (store_id) DO UPDATE
		SET loc = EXCLUDED.loc, updated_at = now()
	`, id, loc.Lon, loc.Lat)
	if err != nil {
		return fmt.Errorf("index point %s: %w", id, err)
	}
	return nil
}

// IndexShape replaces the service area of id; nil clears it.
func (x *SpatialIndex) IndexShape(ctx context.Context, id string, area *domain.Polygon) error {
	if area == nil || len(area.Ring()) == 0 {
		_, err := x.db.Pool.Exec(ctx,
			`UPDATE store_geo SET area = NULL, updated_at = now() WHERE store_id = $1`, id)
		if err != nil {
			return fmt.Errorf("clear shape %s: %w", id, err)
		}
		return nil
	}

	wkb, err := polygonEWKB(area.Ring())
	if err != nil {
		return fmt.Errorf("encode shape %s: %w", id, err)
	}
	_, err = x.db.Pool.Exec(ctx, `
		INSERT INTO store_geo (store_id, area, updated_at)
		VALUES ($1, ST_GeomFromEWKB($2), now())
		ON CONFLICT (store_id) DO UPDATE
		SET area = EXCLUDED.area, updated_at = now()
	`, id, wkb)
	if err != nil {
		return fmt.Errorf("index shape %s: %w", id, err)
	}
	return nil
}

// Nearest returns points within radiusKm of center by ascending distance, ties by id.
func (x *SpatialIndex) Nearest(ctx context.Context, center domain.GeoPoint, radiusKm float64, limit int) ([]domain.Neighbor, error) {
	rows, err := x.db.Pool.Query(ctx, `
		SELECT store_id, ST_Y(loc::geometry) AS lat, ST_X(loc::geometry) AS lon
		FROM store_geo
		WHERE loc IS NOT NULL
		  AND ST_DWithin(loc, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3, false)
	`, center.Lon, center.Lat, radiusKm*1000*candidateSlack)
	if err != nil {
		return nil, fmt.Errorf("nearest: %w", err)
	}
	defer rows.Close()

	var out []domain.Neighbor
	for rows.Next() {
		var id string
		var p domain.GeoPoint
		if err := rows.Scan(&id, &p.Lat, &p.Lon); err != nil {
			return nil, fmt.Errorf("scan neighbor: %w", err)
		}
		if d := geospatial.DistanceKm(center, p); d <= radiusKm {
			out = append(out, domain.Neighbor{ID: id, DistanceKm: d})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("nearest: %w", err)
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

// Within returns ids of points inside box ordered by id. Wrapping boxes are
// split at the antimeridian. Envelope intersection includes the edges, so the
// SQL LIMIT is the final page size.
func (x *SpatialIndex) Within(ctx context.Context, box domain.Bounds, limit int) ([]string, error) {
	parts := geospatial.SplitAntimeridian(box)
	conds := make([]string, len(parts))
	args := make([]any, 0, len(parts)*4+1)
	for i, b := range parts {
		n := len(args)
		conds[i] = fmt.Sprintf("ST_Intersects(loc::geometry, ST_MakeEnvelope($%d, $%d, $%d, $%d, 4326))", n+1, n+2, n+3, n+4)
		args = append(args, b.MinLon, b.MinLat, b.MaxLon, b.MaxLat)
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT store_id
		FROM store_geo
		WHERE loc IS NOT NULL AND (%s)
		ORDER BY store_id
		LIMIT $%d`, strings.Join(conds, " OR "), len(args))

	rows, err := x.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("within: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan within: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("within: %w", err)
	}
	return ids, nil
}

// Containing returns ids whose service area covers p, ordered by id.
func (x *SpatialIndex) Containing(ctx context.Context, p domain.GeoPoint) ([]string, error) {
	rows, err := x.db.Pool.Query(ctx, `
		SELECT store_id FROM store_geo
		WHERE area IS NOT NULL
		  AND ST_Covers(area, ST_SetSRID(ST_MakePoint($1, $2), 4326))
		ORDER BY store_id
	`, p.Lon, p.Lat)
	if err != nil {
		return nil, fmt.Errorf("containing: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan containing: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Heat buckets every indexed point into tiles at zoom precision.
func (x *SpatialIndex) Heat(ctx context.Context, precision int) ([]domain.HeatTile, error) {
	rows, err := x.db.Pool.Query(ctx, `
		SELECT ST_Y(loc::geometry) AS lat, ST_X(loc::geometry) AS lon
		FROM store_geo WHERE loc IS NOT NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("heat: %w", err)
	}
	defer rows.Close()

	agg := geospatial.NewTileAggregator(precision)
	for rows.Next() {
		var p domain.GeoPoint
		if err := rows.Scan(&p.Lat, &p.Lon); err != nil {
			return nil, fmt.Errorf("scan heat: %w", err)
		}
		agg.Add(p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("heat: %w", err)
	}
	return agg.Tiles(), nil
}

// Ping checks database reachability.
func (x *SpatialIndex) Ping(ctx context.Context) error {
	return x.db.Ping(ctx)
}

// polygonEWKB encodes a closed [lon, lat] ring as an SRID 4326 EWKB polygon.
func polygonEWKB(ring []domain.Position) ([]byte, error) {
	flat := make([]float64, 0, len(ring)*2)
	for _, p := range ring {
		flat = append(flat, p[0], p[1])
	}
	poly := geom.NewPolygon(geom.XY)
	if err := poly.Push(geom.NewLinearRingFlat(geom.XY, flat)); err != nil {
		return nil, err
	}
	return ewkb.Marshal(poly.SetSRID(4326), ewkb.NDR)
}
