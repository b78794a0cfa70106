package usecases_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/samirrijal/storemap/internal/adapters/memory"
	"github.com/samirrijal/storemap/internal/core/domain"
	"github.com/samirrijal/storemap/internal/core/usecases"
)

func testBudgets() map[usecases.AdmissionClass]usecases.Budget {
	return map[usecases.AdmissionClass]usecases.Budget{
		usecases.ClassDefault: {Limit: 120, Window: time.Minute},
		usecases.ClassStrict:  {Limit: 20, Window: time.Minute},
	}
}

func TestAdmissionController_StrictBudget(t *testing.T) {
	ctx := context.Background()
	ac := usecases.NewAdmissionController(memory.NewRateCounter(), testBudgets())

	for i := 0; i < 20; i++ {
		if err := ac.Admit(ctx, usecases.ClassStrict, "key-1"); err != nil {
			t.Fatalf("request %d rejected: %v", i+1, err)
		}
	}

	err := ac.Admit(ctx, usecases.ClassStrict, "key-1")
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected rate limited, got %v", err)
	}
	var rl *usecases.RateLimitedError
	if !errors.As(err, &rl) || rl.RetryAfter != time.Minute || rl.Class != usecases.ClassStrict {
		t.Errorf("unexpected rate limit error %+v", rl)
	}

	if err := ac.Admit(ctx, usecases.ClassDefault, "key-1"); err != nil {
		t.Errorf("default class has its own budget: %v", err)
	}
	if err := ac.Admit(ctx, usecases.ClassStrict, "key-2"); err != nil {
		t.Errorf("other identities are unaffected: %v", err)
	}
}

func TestAdmissionController_UnknownClassUsesDefault(t *testing.T) {
	ctx := context.Background()
	var gotKey string
	var gotLimit int
	counter := &mockCounter{allowFn: func(_ context.Context, key string, limit int, _ time.Duration) (bool, error) {
		gotKey, gotLimit = key, limit
		return true, nil
	}}
	ac := usecases.NewAdmissionController(counter, testBudgets())

	if err := ac.Admit(ctx, "bogus", "1.2.3.4"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotKey != "default:1.2.3.4" || gotLimit != 120 {
		t.Errorf("expected default budget, got key %q limit %d", gotKey, gotLimit)
	}
}

func TestAdmissionController_FailsOpen(t *testing.T) {
	counter := &mockCounter{allowFn: func(context.Context, string, int, time.Duration) (bool, error) {
		return false, errBackendDown
	}}
	ac := usecases.NewAdmissionController(counter, testBudgets())

	if err := ac.Admit(context.Background(), usecases.ClassStrict, "k"); err != nil {
		t.Errorf("counter failures must admit the request, got %v", err)
	}
}
