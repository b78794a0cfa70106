package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/samirrijal/storemap/internal/core/usecases"
	"github.com/samirrijal/storemap/internal/pkg/metrics"
)

// SetupRoutes registers all REST, GraphQL, and WebSocket routes. The app
// should use ErrorHandler.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	deps.withDefaults()

	app.Use(recover.New())

	// Prometheus metrics
	app.Use(metrics.Middleware())

	// Response compression (gzip)
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed, // Balance speed vs compression ratio
	}))

	// Request ID: echoed from X-Request-Id or generated
	app.Use(requestid.New(requestid.Config{
		Header:    fiber.HeaderXRequestID,
		Generator: uuid.NewString,
	}))

	// Propagate request ID into slog context
	app.Use(RequestIDLogMiddleware())

	// Access logs (structured HTTP request logging)
	app.Use(AccessLogMiddleware())

	app.Use(SecurityHeadersMiddleware())

	app.Use(cors.New(cors.Config{
		AllowOrigins:  deps.AllowOrigins,
		AllowMethods:  "GET,POST,OPTIONS",
		AllowHeaders:  "Content-Type, X-API-Key, X-Request-Id, Idempotency-Key",
		ExposeHeaders: "X-Request-Id, Idempotent-Replayed, Retry-After, Location",
	}))

	// Health, readiness and metrics (no auth, no budget)
	app.Get("/healthz", HealthHandler())
	app.Get("/readyz", ReadyHandler(deps))
	app.Get("/metrics", metrics.Handler())

	// API documentation (Swagger UI)
	SetupDocs(app)

	read := func(h fiber.Handler) []fiber.Handler {
		return deps.chain(usecases.ClassDefault, false, h)
	}
	write := func(h fiber.Handler) []fiber.Handler {
		return deps.chain(usecases.ClassStrict, true, h)
	}

	// Static paths before /stores/:id
	app.Post("/stores", write(CreateStoreHandler(deps))...)
	app.Get("/stores/near", read(NearHandler(deps))...)
	app.Get("/stores/within", read(WithinHandler(deps))...)
	app.Get("/stores/heat", deps.chain(usecases.ClassStrict, false, HeatHandler(deps))...)
	app.Get("/stores/:id", read(GetStoreHandler(deps))...)
	app.Post("/stores/:id/area", write(SetAreaHandler(deps))...)
	app.Get("/delivery/eligible", read(EligibleHandler(deps))...)

	// GraphQL
	app.Post("/graphql", read(GraphQLHandler(deps))...)

	// WebSocket
	if deps.Events != nil {
		upgrade := func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		}
		ws := append(deps.guards(usecases.ClassDefault), upgrade, websocket.New(WebSocketHandler(deps.Events)))
		app.Get("/ws", ws...)
	}
}

// guards are the per-route checks every API route passes: body limit, JSON
// content type, API key and the admission budget.
func (d *Dependencies) guards(class usecases.AdmissionClass) []fiber.Handler {
	return []fiber.Handler{
		MaxBodyMiddleware(d.BodyLimit),
		EnforceJSONMiddleware(),
		APIKeyMiddleware(d.APIKeys),
		AdmissionMiddleware(d.Admission, class),
	}
}

// chain builds the handler list for one API route. The handler runs under
// the request timeout.
func (d *Dependencies) chain(class usecases.AdmissionClass, idempotent bool, h fiber.Handler) []fiber.Handler {
	handlers := d.guards(class)
	if idempotent {
		handlers = append(handlers, IdempotencyMiddleware(d.Idempotency))
	}
	return append(handlers, timeout.NewWithContext(h, d.HandlerTimeout))
}
