package domain

import "math"

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the point lies within latitude/longitude range.
func (p GeoPoint) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lon, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// Position is a [lon, lat] pair as used by GeoJSON rings.
type Position = [2]float64

// Polygon is a single closed ring without holes.
type Polygon struct {
	Type        string       `json:"type"`
	Coordinates [][]Position `json:"coordinates"`
}

// NewPolygon wraps an already closed ring.
func NewPolygon(ring []Position) *Polygon {
	return &Polygon{Type: "Polygon", Coordinates: [][]Position{ring}}
}

// Ring returns the outer ring, or nil.
func (p *Polygon) Ring() []Position {
	if p == nil || len(p.Coordinates) == 0 {
		return nil
	}
	return p.Coordinates[0]
}

// Bounds represents a geographic bounding box. MinLon > MaxLon denotes a box
// that wraps across the antimeridian.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// WrapsAntimeridian reports whether the box crosses longitude ±180.
func (b Bounds) WrapsAntimeridian() bool {
	return b.MinLon > b.MaxLon
}

// Neighbor is a nearest-neighbour hit produced by a spatial index.
type Neighbor struct {
	ID         string
	DistanceKm float64
}

// HeatTile is one non-empty tile of a density aggregation.
type HeatTile struct {
	Key      string   `json:"key"`
	DocCount int      `json:"doc_count"`
	Centroid GeoPoint `json:"centroid"`
}
