package bootstrap

import (
	"time"

	"github.com/samirrijal/storemap/internal/core/ports"
	"github.com/samirrijal/storemap/internal/core/usecases"
	"github.com/samirrijal/storemap/internal/pkg/config"
)

// NewDirectory builds the directory service with the configured limits.
// events may be nil.
func NewDirectory(cfg *config.Config, s *Storage, events ports.EventPublisher) *usecases.DirectoryService {
	return usecases.NewDirectoryService(s.Stores, s.Index, events, usecases.WithLimits(usecases.Limits{
		MaxRadiusKm:       cfg.Limits.MaxRadiusKm,
		MaxNearLimit:      cfg.Limits.MaxNearLimit,
		MaxWithinLimit:    cfg.Limits.MaxWithinLimit,
		MaxEligibleStores: cfg.Limits.MaxEligibleStores,
	}))
}

// NewAdmission builds the admission controller with the configured budgets.
func NewAdmission(cfg *config.Config, g *Gateway) *usecases.AdmissionController {
	return usecases.NewAdmissionController(g.Counter, map[usecases.AdmissionClass]usecases.Budget{
		usecases.ClassDefault: {Limit: cfg.Admission.DefaultLimit, Window: cfg.Admission.Window},
		usecases.ClassStrict:  {Limit: cfg.Admission.StrictLimit, Window: cfg.Admission.Window},
	})
}

// NewIdempotency builds the idempotency service.
func NewIdempotency(cfg *config.Config, g *Gateway) *usecases.IdempotencyService {
	return usecases.NewIdempotencyService(g.Idempotency, usecases.IdempotencyConfig{
		TTL:     cfg.Idempotency.TTL,
		LockTTL: cfg.Idempotency.LockTTL,
		Wait:    cfg.Idempotency.Wait,
		Poll:    50 * time.Millisecond,
	})
}
