package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/storemap/internal/core/domain"
)

// storeView is the public form of a store.
type storeView struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Location    domain.GeoPoint `json:"loc"`
	ServiceArea *domain.Polygon `json:"service_area"`
}

// storeData is the document echoed back on create.
type storeData struct {
	Name     string          `json:"name"`
	Location domain.GeoPoint `json:"loc"`
}

type createStoreResponse struct {
	ID   string    `json:"id"`
	Data storeData `json:"data"`
}

type hitsResponse struct {
	Items []domain.StoreHit `json:"items"`
	Count int               `json:"count"`
}

type heatResponse struct {
	Tiles []domain.HeatTile `json:"tiles"`
}

// CreateStoreHandler registers a new store.
func CreateStoreHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req createStoreRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}
		if err := req.validate(); err != nil {
			return err
		}

		store, err := deps.Directory.Create(c.UserContext(), *req.Name, domain.GeoPoint{Lat: *req.Lat, Lon: *req.Lon})
		if err != nil {
			return err
		}

		LoggerFromCtx(c).Info("store created", "store_id", store.ID)
		c.Location("/stores/" + store.ID)
		return c.Status(fiber.StatusCreated).JSON(createStoreResponse{
			ID:   store.ID,
			Data: storeData{Name: store.Name, Location: store.Location},
		})
	}
}

// GetStoreHandler returns a single store by ID.
func GetStoreHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		store, err := deps.Directory.Get(c.UserContext(), c.Params("id"))
		if err != nil {
			return err
		}
		return c.JSON(storeView{
			ID:          store.ID,
			Name:        store.Name,
			Location:    store.Location,
			ServiceArea: store.ServiceArea,
		})
	}
}

// SetAreaHandler replaces a store's delivery polygon.
func SetAreaHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req setAreaRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}
		ring, err := req.ring()
		if err != nil {
			return err
		}

		if err := deps.Directory.SetServiceArea(c.UserContext(), c.Params("id"), ring); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"ok": true})
	}
}

// NearHandler returns stores around a point ordered by distance.
func NearHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		req, err := parseNear(c, deps.Defaults)
		if err != nil {
			return err
		}

		hits, err := deps.Directory.Nearest(c.UserContext(), domain.NearQuery{
			Center:   req.Center,
			RadiusKm: req.RadiusKm,
			Limit:    req.Limit,
		})
		if err != nil {
			return err
		}
		return c.JSON(hitsResponse{Items: hits, Count: len(hits)})
	}
}

// EligibleHandler reports which stores deliver to a point.
func EligibleHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := parsePoint(c)
		if err != nil {
			return err
		}

		eligibility, err := deps.Directory.Eligible(c.UserContext(), p)
		if err != nil {
			return err
		}
		return c.JSON(eligibility)
	}
}

// WithinHandler returns stores inside a bounding box.
func WithinHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		req, err := parseWithin(c, deps.Defaults)
		if err != nil {
			return err
		}

		hits, err := deps.Directory.Within(c.UserContext(), req.Box, req.Limit)
		if err != nil {
			return err
		}
		return c.JSON(hitsResponse{Items: hits, Count: len(hits)})
	}
}

// HeatHandler aggregates store locations into map tiles.
func HeatHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		z, err := parseHeat(c)
		if err != nil {
			return err
		}

		tiles, err := deps.Directory.Heat(c.UserContext(), z)
		if err != nil {
			return err
		}
		return c.JSON(heatResponse{Tiles: tiles})
	}
}
