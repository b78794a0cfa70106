package memory

import (
	"context"
	"sync"
	"time"
)

const sweepInterval = time.Minute

// window is a sliding log of the admitted request times for one key, kept
// in a ring of limit slots.
type window struct {
	hits     []time.Time
	next     int
	span     time.Duration
	lastSeen time.Time
}

// RateCounter admits at most limit requests per key in any span of window
// length, not just per aligned window. Keys idle for a full window are
// dropped since their log no longer matters.
type RateCounter struct {
	mu        sync.Mutex
	windows   map[string]*window
	lastSweep time.Time
	now       func() time.Time
}

// NewRateCounter creates an empty RateCounter.
func NewRateCounter() *RateCounter {
	return &RateCounter{windows: make(map[string]*window), now: time.Now}
}

// Allow records one request for key if fewer than limit were admitted in
// the last window.
func (c *RateCounter) Allow(_ context.Context, key string, limit int, span time.Duration) (bool, error) {
	if limit <= 0 {
		return false, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if now.Sub(c.lastSweep) >= sweepInterval {
		c.sweepLocked(now)
	}

	w, ok := c.windows[key]
	if !ok || len(w.hits) != limit || w.span != span {
		w = &window{hits: make([]time.Time, limit), span: span}
		c.windows[key] = w
	}
	w.lastSeen = now

	// The slot about to be overwritten holds the oldest admitted request.
	oldest := w.hits[w.next]
	if !oldest.IsZero() && now.Sub(oldest) < span {
		return false, nil
	}
	w.hits[w.next] = now
	w.next = (w.next + 1) % limit
	return true, nil
}

func (c *RateCounter) sweepLocked(now time.Time) {
	for k, w := range c.windows {
		if now.Sub(w.lastSeen) >= w.span {
			delete(c.windows, k)
		}
	}
	c.lastSweep = now
}

// Len returns the number of live keys.
func (c *RateCounter) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.windows)
}
