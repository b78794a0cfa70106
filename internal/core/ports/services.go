package ports

import (
	"context"
	"time"

	"github.com/samirrijal/storemap/internal/core/domain"
)

// EventPublisher publishes store change events to a message broker.
type EventPublisher interface {
	PublishStoreEvent(ctx context.Context, event *domain.StoreEvent) error
}

// StoredResponse is a write response kept for idempotent replay.
type StoredResponse struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    []byte            `json:"body"`
}

// IdempotencyStore keeps replayable responses keyed by idempotency key.
type IdempotencyStore interface {
	// Get returns nil, nil when nothing is stored for key.
	Get(ctx context.Context, key string) (*StoredResponse, error)
	Put(ctx context.Context, key string, resp StoredResponse, ttl time.Duration) error
	// Acquire takes an exclusive lock on key for at most ttl. It reports
	// false when another holder owns the lock.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// RateCounter admits or rejects one request against a per-key budget of
// limit requests per window.
type RateCounter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
