package http

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/storemap/internal/core/domain"
)

// createStoreRequest is the body of POST /stores.
type createStoreRequest struct {
	Name *string  `json:"name"`
	Lat  *float64 `json:"lat"`
	Lon  *float64 `json:"lon"`
}

func (r createStoreRequest) validate() error {
	var verr domain.ValidationErrors
	if r.Name == nil {
		verr.Add("name", "", "is required")
	}
	checkRange(&verr, "lat", r.Lat, -90, 90)
	checkRange(&verr, "lon", r.Lon, -180, 180)
	return verr.Err()
}

// setAreaRequest is the body of POST /stores/{id}/area. Coordinates are
// [lon, lat] pairs.
type setAreaRequest struct {
	Coordinates []json.RawMessage `json:"coordinates"`
}

// ring decodes and checks the coordinates: at least four entries, each
// exactly two numbers in range.
func (r setAreaRequest) ring() ([]domain.Position, error) {
	var verr domain.ValidationErrors
	if len(r.Coordinates) < 4 {
		verr.Add("coordinates", strconv.Itoa(len(r.Coordinates)), "must contain at least 4 positions")
		return nil, verr
	}

	ring := make([]domain.Position, 0, len(r.Coordinates))
	for i, raw := range r.Coordinates {
		field := fmt.Sprintf("coordinates[%d]", i)
		var pair []float64
		if err := json.Unmarshal(raw, &pair); err != nil || len(pair) != 2 {
			verr.Add(field, string(raw), "must be a [lon, lat] pair of numbers")
			continue
		}
		if pair[0] < -180 || pair[0] > 180 || pair[1] < -90 || pair[1] > 90 {
			verr.Add(field, string(raw), "longitude must be in [-180, 180] and latitude in [-90, 90]")
			continue
		}
		ring = append(ring, domain.Position{pair[0], pair[1]})
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}
	return ring, nil
}

// parseBody decodes the JSON request body into v.
func parseBody(c *fiber.Ctx, v any) error {
	if err := json.Unmarshal(c.Body(), v); err != nil {
		var verr domain.ValidationErrors
		verr.Add("body", "", "must be a valid JSON object")
		return verr
	}
	return nil
}

// queryParams reads typed query parameters and collects every problem.
type queryParams struct {
	c    *fiber.Ctx
	errs domain.ValidationErrors
}

func newQueryParams(c *fiber.Ctx) *queryParams {
	return &queryParams{c: c}
}

// float reads a number in [lo, hi]. A missing optional parameter yields def.
func (q *queryParams) float(name string, required bool, def, lo, hi float64) float64 {
	raw := q.c.Query(name)
	if raw == "" {
		if required {
			q.errs.Add(name, "", "is required")
		}
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		q.errs.Add(name, raw, "must be a number")
		return def
	}
	if v < lo || v > hi {
		q.errs.Add(name, raw, fmt.Sprintf("must be between %g and %g", lo, hi))
	}
	return v
}

// int reads an integer in [lo, hi]. A missing optional parameter yields def.
func (q *queryParams) int(name string, required bool, def, lo, hi int) int {
	raw := q.c.Query(name)
	if raw == "" {
		if required {
			q.errs.Add(name, "", "is required")
		}
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		q.errs.Add(name, raw, "must be an integer")
		return def
	}
	if v < lo || v > hi {
		q.errs.Add(name, raw, fmt.Sprintf("must be between %d and %d", lo, hi))
	}
	return v
}

func (q *queryParams) err() error {
	return q.errs.Err()
}

func checkRange(verr *domain.ValidationErrors, field string, v *float64, lo, hi float64) {
	switch {
	case v == nil:
		verr.Add(field, "", "is required")
	case *v < lo || *v > hi:
		verr.Add(field, strconv.FormatFloat(*v, 'f', -1, 64), fmt.Sprintf("must be between %g and %g", lo, hi))
	}
}

// nearRequest is the query of GET /stores/near.
type nearRequest struct {
	Center   domain.GeoPoint
	RadiusKm float64
	Limit    int
}

func parseNear(c *fiber.Ctx, d QueryDefaults) (nearRequest, error) {
	q := newQueryParams(c)
	r := nearRequest{
		Center: domain.GeoPoint{
			Lat: q.float("lat", true, 0, -90, 90),
			Lon: q.float("lon", true, 0, -180, 180),
		},
		RadiusKm: q.float("radius_km", false, d.RadiusKm, 0.1, 100),
		Limit:    q.int("limit", false, d.NearLimit, 1, 50),
	}
	return r, q.err()
}

func parsePoint(c *fiber.Ctx) (domain.GeoPoint, error) {
	q := newQueryParams(c)
	p := domain.GeoPoint{
		Lat: q.float("lat", true, 0, -90, 90),
		Lon: q.float("lon", true, 0, -180, 180),
	}
	return p, q.err()
}

// withinRequest is the query of GET /stores/within.
type withinRequest struct {
	Box   domain.Bounds
	Limit int
}

func parseWithin(c *fiber.Ctx, d QueryDefaults) (withinRequest, error) {
	q := newQueryParams(c)
	r := withinRequest{
		Box: domain.Bounds{
			MinLat: q.float("min_lat", true, 0, -90, 90),
			MinLon: q.float("min_lon", true, 0, -180, 180),
			MaxLat: q.float("max_lat", true, 0, -90, 90),
			MaxLon: q.float("max_lon", true, 0, -180, 180),
		},
		Limit: q.int("limit", false, d.WithinLimit, 1, 500),
	}
	return r, q.err()
}

func parseHeat(c *fiber.Ctx) (int, error) {
	q := newQueryParams(c)
	z := q.int("z", true, 0, 1, 29)
	return z, q.err()
}
