//go:build integration
// +build integration

package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	handler "github.com/samirrijal/storemap/internal/adapters/http"
	"github.com/samirrijal/storemap/internal/adapters/memory"
	"github.com/samirrijal/storemap/internal/adapters/postgres"
	"github.com/samirrijal/storemap/internal/core/domain"
	"github.com/samirrijal/storemap/internal/core/usecases"
	"github.com/samirrijal/storemap/internal/pkg/config"
)

// setupTestDB connects to the test database, applies migrations and empties
// the store tables.
func setupTestDB(t *testing.T) *postgres.DB {
	cfg, err := config.Load("storemap-test")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := postgres.New(ctx, cfg.Database.DSN(), 4)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(db.Close)

	if _, err := postgres.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := db.Pool.Exec(ctx, `TRUNCATE store_geo, stores`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return db
}

// setupPostgresApp wires the gateway to the PostgreSQL repository and PostGIS index.
func setupPostgresApp(t *testing.T, db *postgres.DB) *fiber.App {
	deps := &handler.Dependencies{
		Directory:   usecases.NewDirectoryService(postgres.NewStoreRepo(db), postgres.NewSpatialIndex(db), nil),
		Idempotency: usecases.NewIdempotencyService(memory.NewIdempotencyStore(), usecases.IdempotencyConfig{}),
		Readiness:   []handler.ReadinessCheck{{Name: "database", Pinger: db}},
	}
	app := fiber.New(fiber.Config{DisableStartupMessage: true, ErrorHandler: handler.ErrorHandler})
	handler.SetupRoutes(app, deps)
	return app
}

func integrationRequest(t *testing.T, app *fiber.App, method, target, body string) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, 10_000)
	if err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, readBody(t, resp.Body)
}

func TestIntegration_PostGISDirectory(t *testing.T) {
	db := setupTestDB(t)
	app := setupPostgresApp(t, db)

	create := func(name string, lat, lon float64) string {
		status, body := integrationRequest(t, app, "POST", "/stores", fmt.Sprintf(`{"name":%q,"lat":%v,"lon":%v}`, name, lat, lon))
		if status != 201 {
			t.Fatalf("create %s: %d %s", name, status, body)
		}
		var out struct {
			ID string `json:"id"`
		}
		decode(t, body, &out)
		return out.ID
	}

	for k := 1; k <= 5; k++ {
		create(fmt.Sprintf("near-%d", k), 41.0+float64(k)*0.005, 29.0)
	}
	create("far", 41.2, 29.0)
	east := create("east", 0, 179.5)
	west := create("west", 0, -179.5)

	x := create("X", 41.05, 29.05)
	status, body := integrationRequest(t, app, "POST", "/stores/"+x+"/area",
		`{"coordinates":[[29,41],[29.1,41],[29.1,41.1],[29,41.1]]}`)
	if status != 200 {
		t.Fatalf("set area: %d %s", status, body)
	}

	t.Run("near", func(t *testing.T) {
		_, body := integrationRequest(t, app, "GET", "/stores/near?lat=41&lon=29&radius_km=5&limit=3", "")
		var got hitList
		decode(t, body, &got)
		if got.Count != 3 {
			t.Fatalf("expected 3, got %s", body)
		}
		for i, item := range got.Items {
			if item.Name != fmt.Sprintf("near-%d", i+1) {
				t.Errorf("item %d: got %s", i, item.Name)
			}
		}
	})

	t.Run("within antimeridian", func(t *testing.T) {
		_, body := integrationRequest(t, app, "GET", "/stores/within?min_lat=-1&min_lon=179&max_lat=1&max_lon=-179", "")
		var got hitList
		decode(t, body, &got)
		ids := map[string]bool{}
		for _, item := range got.Items {
			ids[item.ID] = true
		}
		if len(ids) != 2 || !ids[east] || !ids[west] {
			t.Errorf("expected east and west, got %s", body)
		}
	})

	t.Run("eligible", func(t *testing.T) {
		for _, q := range []string{"lat=41.05&lon=29.05", "lat=41&lon=29"} {
			_, body := integrationRequest(t, app, "GET", "/delivery/eligible?"+q, "")
			var got domain.Eligibility
			decode(t, body, &got)
			if !got.Eligible || len(got.Stores) != 1 || got.Stores[0].ID != x {
				t.Errorf("%s: expected store X, got %s", q, body)
			}
		}
	})

	t.Run("heat", func(t *testing.T) {
		_, body := integrationRequest(t, app, "GET", "/stores/heat?z=3", "")
		var got struct {
			Tiles []domain.HeatTile `json:"tiles"`
		}
		if err := json.Unmarshal(body, &got); err != nil {
			t.Fatal(err)
		}
		total := 0
		for _, tile := range got.Tiles {
			total += tile.DocCount
		}
		if total != 9 {
			t.Errorf("expected counts to sum to 9, got %d", total)
		}
	})

	t.Run("ready", func(t *testing.T) {
		status, body := integrationRequest(t, app, "GET", "/readyz", "")
		if status != 200 {
			t.Errorf("expected ready, got %d %s", status, body)
		}
	})
}
