package usecases

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/samirrijal/storemap/internal/core/domain"
	"github.com/samirrijal/storemap/internal/core/ports"
	"github.com/samirrijal/storemap/internal/pkg/logging"
)

// IdempotencyKey derives the cache key for a write on path carrying token.
// The request body is not part of the key.
func IdempotencyKey(path, token string) string {
	sum := sha1.Sum([]byte(path + "|" + token))
	return "idem:" + hex.EncodeToString(sum[:])
}

// IdempotencyConfig tunes the cache.
type IdempotencyConfig struct {
	TTL     time.Duration // how long a response is replayable
	LockTTL time.Duration // upper bound on one in-flight execution
	Wait    time.Duration // how long a concurrent duplicate waits for the winner
	Poll    time.Duration
}

// IdempotentResult is the response to send for an idempotent request.
type IdempotentResult struct {
	Response ports.StoredResponse
	Replayed bool
}

// IdempotencyService replays stored responses for repeated write requests.
type IdempotencyService struct {
	store ports.IdempotencyStore
	cfg   IdempotencyConfig
	group singleflight.Group
}

// NewIdempotencyService creates a new IdempotencyService.
func NewIdempotencyService(store ports.IdempotencyStore, cfg IdempotencyConfig) *IdempotencyService {
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	if cfg.Wait <= 0 {
		cfg.Wait = 5 * time.Second
	}
	if cfg.Poll <= 0 {
		cfg.Poll = 50 * time.Millisecond
	}
	return &IdempotencyService{store: store, cfg: cfg}
}

// Do runs fn at most once per key within the TTL. Concurrent calls with the
// same key share one execution; later calls get the stored response. Errors
// from fn and 5xx responses are not stored.
func (s *IdempotencyService) Do(
	ctx context.Context,
	key string,
	fn func(ctx context.Context) (ports.StoredResponse, error),
) (IdempotentResult, error) {
	ran := false
	v, err, _ := s.group.Do(key, func() (any, error) {
		ran = true
		return s.execute(ctx, key, fn)
	})
	if err != nil {
		return IdempotentResult{}, err
	}
	res := v.(IdempotentResult)
	if !ran {
		res.Replayed = true
	}
	return res, nil
}

func (s *IdempotencyService) execute(
	ctx context.Context,
	key string,
	fn func(ctx context.Context) (ports.StoredResponse, error),
) (IdempotentResult, error) {
	if stored, err := s.lookup(ctx, key); err != nil || stored != nil {
		return replay(stored), err
	}

	acquired, err := s.store.Acquire(ctx, key, s.cfg.LockTTL)
	if err != nil {
		return IdempotentResult{}, unavailable("idempotency lock", err)
	}
	if !acquired {
		return s.awaitWinner(ctx, key)
	}
	defer func() {
		if err := s.store.Release(context.WithoutCancel(ctx), key); err != nil {
			logging.FromContext(ctx).Warn("idempotency lock release failed", "error", err)
		}
	}()

	// The previous holder may have stored its response just before releasing.
	if stored, err := s.lookup(ctx, key); err != nil || stored != nil {
		return replay(stored), err
	}

	resp, err := fn(ctx)
	if err != nil {
		return IdempotentResult{}, err
	}
	if resp.Status < 500 {
		if err := s.store.Put(context.WithoutCancel(ctx), key, resp, s.cfg.TTL); err != nil {
			logging.FromContext(ctx).Warn("idempotency store failed", "error", err)
		}
	}
	return IdempotentResult{Response: resp}, nil
}

func (s *IdempotencyService) awaitWinner(ctx context.Context, key string) (IdempotentResult, error) {
	waitCtx, cancel := context.WithTimeout(ctx, s.cfg.Wait)
	defer cancel()

	ticker := time.NewTicker(s.cfg.Poll)
	defer ticker.Stop()

	for {
		select {
		case <-waitCtx.Done():
			if err := ctx.Err(); err != nil {
				return IdempotentResult{}, err
			}
			return IdempotentResult{}, fmt.Errorf("key %s: %w", key, domain.ErrIdempotencyInProgress)
		case <-ticker.C:
			stored, err := s.lookup(waitCtx, key)
			if err != nil && !errors.Is(err, context.DeadlineExceeded) {
				return IdempotentResult{}, err
			}
			if stored != nil {
				return replay(stored), nil
			}
		}
	}
}

func (s *IdempotencyService) lookup(ctx context.Context, key string) (*ports.StoredResponse, error) {
	stored, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, unavailable("idempotency lookup", err)
	}
	return stored, nil
}

func replay(stored *ports.StoredResponse) IdempotentResult {
	if stored == nil {
		return IdempotentResult{}
	}
	return IdempotentResult{Response: *stored, Replayed: true}
}
