package memory

import (
	"context"
	"sync"
	"time"

	"github.com/samirrijal/storemap/internal/core/ports"
)

type storedEntry struct {
	resp    ports.StoredResponse
	expires time.Time
}

// IdempotencyStore is a process-local ports.IdempotencyStore. Expired
// entries and locks are purged on access.
type IdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]storedEntry
	locks   map[string]time.Time
	now     func() time.Time
}

// NewIdempotencyStore creates an empty IdempotencyStore.
func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{
		entries: make(map[string]storedEntry),
		locks:   make(map[string]time.Time),
		now:     time.Now,
	}
}

// Get returns the stored response for key, or nil.
func (s *IdempotencyStore) Get(_ context.Context, key string) (*ports.StoredResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	if !s.now().Before(e.expires) {
		delete(s.entries, key)
		return nil, nil
	}
	resp := e.resp
	resp.Body = append([]byte(nil), e.resp.Body...)
	return &resp, nil
}

// Put stores resp for ttl.
func (s *IdempotencyStore) Put(_ context.Context, key string, resp ports.StoredResponse, ttl time.Duration) error {
	resp.Body = append([]byte(nil), resp.Body...)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = storedEntry{resp: resp, expires: s.now().Add(ttl)}
	s.purgeLocked()
	return nil
}

// Acquire takes the lock on key unless a live lock exists.
func (s *IdempotencyStore) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if exp, ok := s.locks[key]; ok && now.Before(exp) {
		return false, nil
	}
	s.locks[key] = now.Add(ttl)
	return true, nil
}

// Release drops the lock on key.
func (s *IdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.locks, key)
	s.mu.Unlock()
	return nil
}

func (s *IdempotencyStore) purgeLocked() {
	now := s.now()
	for k, e := range s.entries {
		if !now.Before(e.expires) {
			delete(s.entries, k)
		}
	}
	for k, exp := range s.locks {
		if !now.Before(exp) {
			delete(s.locks, k)
		}
	}
}
