package geospatial

import (
	"math"

	"github.com/samirrijal/storemap/internal/core/domain"
)

const segmentEpsilon = 1e-12

// CloseRing returns ring with the first position appended when the ring is
// open. The input is not modified.
func CloseRing(ring []domain.Position) []domain.Position {
	out := make([]domain.Position, len(ring), len(ring)+1)
	copy(out, ring)
	if len(out) > 0 && out[0] != out[len(out)-1] {
		out = append(out, out[0])
	}
	return out
}

// DistinctVertices counts the distinct positions in ring.
func DistinctVertices(ring []domain.Position) int {
	seen := make(map[domain.Position]struct{}, len(ring))
	for _, p := range ring {
		seen[p] = struct{}{}
	}
	return len(seen)
}

// RingBounds returns the bounding box of ring. Rings are planar in lon/lat and
// never wrap.
func RingBounds(ring []domain.Position) domain.Bounds {
	b := domain.Bounds{MinLat: 90, MinLon: 180, MaxLat: -90, MaxLon: -180}
	for _, p := range ring {
		b.MinLon = math.Min(b.MinLon, p[0])
		b.MaxLon = math.Max(b.MaxLon, p[0])
		b.MinLat = math.Min(b.MinLat, p[1])
		b.MaxLat = math.Max(b.MaxLat, p[1])
	}
	return b
}

// RingContains reports whether p lies inside the closed ring or on its
// boundary.
func RingContains(ring []domain.Position, p domain.GeoPoint) bool {
	n := len(ring)
	if n < 3 {
		return false
	}
	x, y := p.Lon, p.Lat

	for i := 0; i < n; i++ {
		a, b := ring[i], ring[(i+1)%n]
		if onSegment(x, y, a, b) {
			return true
		}
	}

	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[i][0], ring[i][1]
		xj, yj := ring[j][0], ring[j][1]
		if (yi > y) != (yj > y) {
			xCross := (xj-xi)*(y-yi)/(yj-yi) + xi
			if x < xCross {
				inside = !inside
			}
		}
	}
	return inside
}

func onSegment(x, y float64, a, b domain.Position) bool {
	cross := (b[0]-a[0])*(y-a[1]) - (b[1]-a[1])*(x-a[0])
	if math.Abs(cross) > segmentEpsilon {
		return false
	}
	return x >= math.Min(a[0], b[0])-segmentEpsilon && x <= math.Max(a[0], b[0])+segmentEpsilon &&
		y >= math.Min(a[1], b[1])-segmentEpsilon && y <= math.Max(a[1], b[1])+segmentEpsilon
}
