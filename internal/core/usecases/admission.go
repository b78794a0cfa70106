package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/samirrijal/storemap/internal/core/domain"
	"github.com/samirrijal/storemap/internal/core/ports"
	"github.com/samirrijal/storemap/internal/pkg/logging"
	"github.com/samirrijal/storemap/internal/pkg/metrics"
)

// AdmissionClass names a request budget.
type AdmissionClass string

const (
	ClassDefault AdmissionClass = "default"
	ClassStrict  AdmissionClass = "strict"
)

// Budget allows Limit requests per Window for one identity.
type Budget struct {
	Limit  int
	Window time.Duration
}

// RateLimitedError is returned when an identity exhausted its budget.
type RateLimitedError struct {
	Class      AdmissionClass
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s budget exhausted, retry after %s", e.Class, e.RetryAfter)
}

// Is lets errors.Is(err, domain.ErrRateLimited) match.
func (e *RateLimitedError) Is(target error) bool {
	return target == domain.ErrRateLimited
}

// AdmissionController enforces per-identity request budgets. A failing
// counter admits the request.
type AdmissionController struct {
	counter ports.RateCounter
	budgets map[AdmissionClass]Budget
}

// NewAdmissionController creates an AdmissionController. Classes missing from
// budgets fall back to ClassDefault.
func NewAdmissionController(counter ports.RateCounter, budgets map[AdmissionClass]Budget) *AdmissionController {
	return &AdmissionController{counter: counter, budgets: budgets}
}

// Admit consumes one request from identity's budget in class.
func (a *AdmissionController) Admit(ctx context.Context, class AdmissionClass, identity string) error {
	budget, ok := a.budgets[class]
	if !ok {
		class = ClassDefault
		budget = a.budgets[ClassDefault]
	}
	if budget.Limit <= 0 || budget.Window <= 0 {
		return nil
	}

	allowed, err := a.counter.Allow(ctx, string(class)+":"+identity, budget.Limit, budget.Window)
	if err != nil {
		metrics.AdmissionBackendErrors.Inc()
		logging.FromContext(ctx).Warn("rate counter failed, admitting request", "class", class, "error", err)
		return nil
	}
	if !allowed {
		metrics.AdmissionRejections.WithLabelValues(string(class)).Inc()
		return &RateLimitedError{Class: class, RetryAfter: budget.Window}
	}
	return nil
}
