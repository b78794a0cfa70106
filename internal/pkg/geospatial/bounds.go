package geospatial

import "github.com/samirrijal/storemap/internal/core/domain"

// InBounds reports whether p lies inside b, edges included. A box with
// MinLon > MaxLon wraps across the antimeridian.
func InBounds(b domain.Bounds, p domain.GeoPoint) bool {
	if p.Lat < b.MinLat || p.Lat > b.MaxLat {
		return false
	}
	if b.WrapsAntimeridian() {
		return p.Lon >= b.MinLon || p.Lon <= b.MaxLon
	}
	return p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}

// SplitAntimeridian returns b as one or two non-wrapping boxes.
func SplitAntimeridian(b domain.Bounds) []domain.Bounds {
	if !b.WrapsAntimeridian() {
		return []domain.Bounds{b}
	}
	east := domain.Bounds{MinLat: b.MinLat, MinLon: b.MinLon, MaxLat: b.MaxLat, MaxLon: 180}
	west := domain.Bounds{MinLat: b.MinLat, MinLon: -180, MaxLat: b.MaxLat, MaxLon: b.MaxLon}
	return []domain.Bounds{east, west}
}
