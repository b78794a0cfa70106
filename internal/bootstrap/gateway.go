package bootstrap

import (
	"fmt"

	"github.com/samirrijal/storemap/internal/adapters/memory"
	"github.com/samirrijal/storemap/internal/adapters/valkey"
	"github.com/samirrijal/storemap/internal/core/ports"
	"github.com/samirrijal/storemap/internal/pkg/config"
)

// Gateway holds the idempotency cache and rate counter backends.
type Gateway struct {
	Idempotency ports.IdempotencyStore
	Counter     ports.RateCounter
	Valkey      *valkey.Client // nil unless a backend uses valkey
}

// OpenGateway builds the configured gateway backends.
func OpenGateway(cfg *config.Config) (*Gateway, error) {
	g := &Gateway{}

	if cfg.UsesValkey() {
		client, err := valkey.New(cfg.Valkey.Addr)
		if err != nil {
			return nil, fmt.Errorf("valkey: %w", err)
		}
		g.Valkey = client
	}

	if cfg.Idempotency.Backend == config.BackendValkey {
		g.Idempotency = valkey.NewIdempotencyStore(g.Valkey)
	} else {
		g.Idempotency = memory.NewIdempotencyStore()
	}

	if cfg.Admission.Backend == config.BackendValkey {
		g.Counter = valkey.NewRateCounter(g.Valkey)
	} else {
		g.Counter = memory.NewRateCounter()
	}
	return g, nil
}

// Close releases the valkey client.
func (g *Gateway) Close() {
	if g.Valkey != nil {
		g.Valkey.Close()
	}
}
