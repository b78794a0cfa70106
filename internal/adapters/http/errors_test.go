package http

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/storemap/internal/core/domain"
	"github.com/samirrijal/storemap/internal/core/usecases"
)

func TestClassify(t *testing.T) {
	var verr domain.ValidationErrors
	verr.Add("lat", "91", "out of range")

	tests := []struct {
		err    error
		status int
		code   string
	}{
		{verr, 422, "validation_error"},
		{fmt.Errorf("store x: %w", domain.ErrNotFound), 404, "not_found"},
		{&usecases.RateLimitedError{Class: usecases.ClassStrict, RetryAfter: time.Minute}, 429, "rate_limited"},
		{domain.Unavailable("put store", errors.New("conn refused")), 503, "unavailable"},
		{fmt.Errorf("key: %w", domain.ErrIdempotencyInProgress), 409, "conflict"},
		{context.DeadlineExceeded, 504, "timeout"},
		{fiber.ErrRequestTimeout, 504, "timeout"},
		{errUnauthorized, 401, "unauthorized"},
		{fiber.ErrRequestEntityTooLarge, 413, "payload_too_large"},
		{fiber.ErrUnsupportedMediaType, 415, "unsupported_media_type"},
		{fiber.ErrMethodNotAllowed, 405, "method_not_allowed"},
		{errors.New("boom"), 500, "internal_error"},
	}
	for _, tt := range tests {
		status, apiErr := classify(tt.err)
		if status != tt.status || apiErr.Error != tt.code {
			t.Errorf("classify(%v) = %d %q, want %d %q", tt.err, status, apiErr.Error, tt.status, tt.code)
		}
	}
}

func TestEventVisible(t *testing.T) {
	box := &domain.Bounds{MinLat: 40, MinLon: 28, MaxLat: 42, MaxLon: 30}
	inside := &domain.StoreEvent{Store: &domain.Store{Location: domain.GeoPoint{Lat: 41, Lon: 29}}}
	outside := &domain.StoreEvent{Store: &domain.Store{Location: domain.GeoPoint{Lat: 50, Lon: 29}}}
	bare := &domain.StoreEvent{StoreID: "s1"}

	if !eventVisible(inside, nil) || !eventVisible(outside, nil) {
		t.Error("without a viewport every event is visible")
	}
	if !eventVisible(inside, box) {
		t.Error("expected event inside viewport to be visible")
	}
	if eventVisible(outside, box) {
		t.Error("expected event outside viewport to be hidden")
	}
	if !eventVisible(bare, box) {
		t.Error("events without a store body are always relayed")
	}
}

func TestValidViewport(t *testing.T) {
	if !validViewport(domain.Bounds{MinLat: -1, MinLon: 179, MaxLat: 1, MaxLon: -179}) {
		t.Error("antimeridian viewport should be valid")
	}
	if validViewport(domain.Bounds{MinLat: 2, MinLon: 0, MaxLat: 1, MaxLon: 1}) {
		t.Error("inverted latitude should be invalid")
	}
	if validViewport(domain.Bounds{MinLat: -91, MinLon: 0, MaxLat: 1, MaxLon: 1}) {
		t.Error("out of range latitude should be invalid")
	}
}

func TestControlLimiter(t *testing.T) {
	l := newControlLimiter()
	now := time.Now()
	for i := 0; i < wsControlBurst; i++ {
		if !l.AllowN(now, 1) {
			t.Fatalf("message %d within burst rejected", i+1)
		}
	}
	if l.AllowN(now, 1) {
		t.Error("expected message past the burst to be rejected")
	}
	if !l.AllowN(now.Add(time.Second), 1) {
		t.Error("expected a token after one second")
	}
}
