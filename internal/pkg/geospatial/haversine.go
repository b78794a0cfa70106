package geospatial

import (
	"math"

	"github.com/samirrijal/storemap/internal/core/domain"
)

// EarthRadiusKm is the mean Earth radius used for all distances.
const EarthRadiusKm = 6371.0

// Haversine calculates the great-circle distance in kilometres between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// DistanceKm is Haversine for two GeoPoints.
func DistanceKm(a, b domain.GeoPoint) float64 {
	return Haversine(a.Lat, a.Lon, b.Lat, b.Lon)
}

// SearchBox returns a bounding box that contains every point within radiusKm
// of center. Near the antimeridian the box wraps (MinLon > MaxLon); near the
// poles it spans all longitudes.
func SearchBox(center domain.GeoPoint, radiusKm float64) domain.Bounds {
	delta := radiusKm / EarthRadiusKm
	dLat := toDeg(delta)

	b := domain.Bounds{
		MinLat: center.Lat - dLat,
		MaxLat: center.Lat + dLat,
		MinLon: -180,
		MaxLon: 180,
	}
	if b.MinLat <= -90 || b.MaxLat >= 90 {
		b.MinLat = math.Max(b.MinLat, -90)
		b.MaxLat = math.Min(b.MaxLat, 90)
		return b
	}

	ratio := math.Sin(delta) / math.Cos(toRad(center.Lat))
	if ratio >= 1 {
		return b
	}
	dLon := toDeg(math.Asin(ratio))
	b.MinLon = center.Lon - dLon
	b.MaxLon = center.Lon + dLon
	if b.MinLon < -180 {
		b.MinLon += 360
	}
	if b.MaxLon > 180 {
		b.MaxLon -= 360
	}
	return b
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

func toDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}
