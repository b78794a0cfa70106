package geospatial

import (
	"fmt"
	"math"
	"sort"

	"github.com/samirrijal/storemap/internal/core/domain"
)

// Tile precision bounds.
const (
	MinTilePrecision = 1
	MaxTilePrecision = 29
)

// maxMercatorLat is the latitude limit of the Web Mercator projection.
const maxMercatorLat = 85.05112878

// TileKey returns the "z/x/y" slippy-map key of the tile containing p at zoom z.
func TileKey(p domain.GeoPoint, z int) string {
	x, y := TileXY(p, z)
	return fmt.Sprintf("%d/%d/%d", z, x, y)
}

// TileXY returns the slippy-map tile coordinates of p at zoom z.
func TileXY(p domain.GeoPoint, z int) (x, y int64) {
	n := math.Exp2(float64(z))
	lat := math.Max(-maxMercatorLat, math.Min(maxMercatorLat, p.Lat))
	latRad := toRad(lat)

	fx := math.Floor((p.Lon + 180) / 360 * n)
	fy := math.Floor((1 - math.Log(math.Tan(latRad)+1/math.Cos(latRad))/math.Pi) / 2 * n)

	limit := int64(n) - 1
	return clampTile(int64(fx), limit), clampTile(int64(fy), limit)
}

func clampTile(v, limit int64) int64 {
	if v < 0 {
		return 0
	}
	if v > limit {
		return limit
	}
	return v
}

type tileAcc struct {
	count  int
	sumLat float64
	sumLon float64
}

// TileAggregator buckets points into tiles of one zoom level.
type TileAggregator struct {
	zoom  int
	tiles map[string]*tileAcc
}

// NewTileAggregator creates an aggregator for zoom level z.
func NewTileAggregator(z int) *TileAggregator {
	return &TileAggregator{zoom: z, tiles: make(map[string]*tileAcc)}
}

// Add counts p into its tile.
func (a *TileAggregator) Add(p domain.GeoPoint) {
	key := TileKey(p, a.zoom)
	acc, ok := a.tiles[key]
	if !ok {
		acc = &tileAcc{}
		a.tiles[key] = acc
	}
	acc.count++
	acc.sumLat += p.Lat
	acc.sumLon += p.Lon
}

// Tiles returns the non-empty tiles ordered by count descending, then key.
func (a *TileAggregator) Tiles() []domain.HeatTile {
	out := make([]domain.HeatTile, 0, len(a.tiles))
	for key, acc := range a.tiles {
		n := float64(acc.count)
		out = append(out, domain.HeatTile{
			Key:      key,
			DocCount: acc.count,
			Centroid: domain.GeoPoint{Lat: acc.sumLat / n, Lon: acc.sumLon / n},
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DocCount != out[j].DocCount {
			return out[i].DocCount > out[j].DocCount
		}
		return out[i].Key < out[j].Key
	})
	return out
}
