//go:build integration
// +build integration

package valkey

import (
	"context"
	"testing"
	"time"

	"github.com/samirrijal/storemap/internal/pkg/config"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	cfg, err := config.Load("storemap-test")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	c, err := New(cfg.Valkey.Addr)
	if err != nil {
		t.Fatalf("connect valkey: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestIdempotencyLock_CarriesTTLAndOwner(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	key := "idem:test:" + t.Name() + time.Now().Format("150405.000000")
	lock := lockKey(key)
	t.Cleanup(func() { _ = c.client.Do(ctx, c.client.B().Del().Key(lock).Build()).Error() })

	a := NewIdempotencyStore(c)
	b := NewIdempotencyStore(c)

	ok, err := a.Acquire(ctx, key, 2*time.Second)
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	pttl, err := c.client.Do(ctx, c.client.B().Pttl().Key(lock).Build()).AsInt64()
	if err != nil {
		t.Fatal(err)
	}
	if pttl <= 0 || pttl > 2000 {
		t.Fatalf("expected the lock to expire within 2s, pttl=%d", pttl)
	}

	ok, err = b.Acquire(ctx, key, 2*time.Second)
	if err != nil || ok {
		t.Fatalf("second acquire must fail while held: ok=%v err=%v", ok, err)
	}

	// The first holder's lock expires and b takes it over.
	time.Sleep(2100 * time.Millisecond)
	ok, err = b.Acquire(ctx, key, 5*time.Second)
	if err != nil || !ok {
		t.Fatalf("acquire after expiry: ok=%v err=%v", ok, err)
	}

	// a's late release must not drop b's lock.
	if err := a.Release(ctx, key); err != nil {
		t.Fatal(err)
	}
	if n, _ := c.client.Do(ctx, c.client.B().Exists().Key(lock).Build()).AsInt64(); n != 1 {
		t.Fatal("late release removed another holder's lock")
	}

	if err := b.Release(ctx, key); err != nil {
		t.Fatal(err)
	}
	if n, _ := c.client.Do(ctx, c.client.B().Exists().Key(lock).Build()).AsInt64(); n != 0 {
		t.Fatal("owner release left the lock behind")
	}
}

func TestRateCounter_SlidingWindow(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	key := "test:" + t.Name() + time.Now().Format("150405.000000")
	t.Cleanup(func() { _ = c.client.Do(ctx, c.client.B().Del().Key(rateKey(key)).Build()).Error() })

	start := time.Now()
	now := start
	r := NewRateCounter(c)
	r.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		ok, err := r.Allow(ctx, key, 3, time.Minute)
		if err != nil || !ok {
			t.Fatalf("request %d: ok=%v err=%v", i+1, ok, err)
		}
		now = now.Add(10 * time.Second)
	}

	// 30s in: the window still holds all three.
	if ok, _ := r.Allow(ctx, key, 3, time.Minute); ok {
		t.Fatal("expected the 4th request inside the window to be rejected")
	}

	// The first request is a full window old at start+60s.
	now = start.Add(time.Minute)
	if ok, _ := r.Allow(ctx, key, 3, time.Minute); !ok {
		t.Fatal("expected a slot once the oldest request left the window")
	}
	if ok, _ := r.Allow(ctx, key, 3, time.Minute); ok {
		t.Fatal("only one slot should have freed")
	}
}
