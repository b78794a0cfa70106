package http

import (
	"time"

	"github.com/samirrijal/storemap/internal/core/domain"
	"github.com/samirrijal/storemap/internal/core/ports"
	"github.com/samirrijal/storemap/internal/core/usecases"
)

// StoreEventSource delivers store change events to the WebSocket relay.
type StoreEventSource interface {
	SubscribeStoreEvents(handler func(event *domain.StoreEvent, raw []byte)) (func(), error)
}

// ReadinessCheck is one dependency checked by /readyz.
type ReadinessCheck struct {
	Name   string
	Pinger ports.Pinger
}

// QueryDefaults fill in optional query parameters.
type QueryDefaults struct {
	RadiusKm    float64
	NearLimit   int
	WithinLimit int
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Directory   *usecases.DirectoryService
	Idempotency *usecases.IdempotencyService
	Admission   *usecases.AdmissionController
	Events      StoreEventSource // nil disables /ws
	Readiness   []ReadinessCheck
	Defaults    QueryDefaults

	APIKeys        []string
	AllowOrigins   string
	BodyLimit      int
	HandlerTimeout time.Duration
}

func (d *Dependencies) withDefaults() {
	if d.Defaults.RadiusKm <= 0 {
		d.Defaults.RadiusKm = 5
	}
	if d.Defaults.NearLimit <= 0 {
		d.Defaults.NearLimit = 3
	}
	if d.Defaults.WithinLimit <= 0 {
		d.Defaults.WithinLimit = 200
	}
	if d.AllowOrigins == "" {
		d.AllowOrigins = "*"
	}
	if d.BodyLimit <= 0 {
		d.BodyLimit = 1_000_000
	}
	if d.HandlerTimeout <= 0 {
		d.HandlerTimeout = 15 * time.Second
	}
}
