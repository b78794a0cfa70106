package valkey

import (
	"context"
	"testing"
	"time"
)

func TestWindowArgs(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 30, 0, time.UTC)
	got := windowArgs(now, time.Minute, 20, "m-1")
	want := []string{"1772366430000", "60000", "20", "m-1"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("arg %d = %q, want %q", i, got[i], want[i])
		}
	}
	if k := rateKey("strict:key:abc"); k != "rl:strict:key:abc" {
		t.Errorf("unexpected rate key %q", k)
	}
}

func TestLockKey(t *testing.T) {
	if got := lockKey("idem:abc"); got != "idem:abc:lock" {
		t.Errorf("unexpected lock key %q", got)
	}
}

func TestRelease_NotOwnedIsNoop(t *testing.T) {
	// No client: a release for a lock this process never took must not
	// touch the server at all.
	s := &IdempotencyStore{owners: make(map[string]string)}
	if err := s.Release(context.Background(), "idem:abc"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
