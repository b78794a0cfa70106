package valkey

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"

	"github.com/samirrijal/storemap/internal/core/ports"
)

// IdempotencyStore implements ports.IdempotencyStore on Valkey so that
// replicas share stored responses and locks.
type IdempotencyStore struct {
	c *Client

	mu     sync.Mutex
	owners map[string]string // lock key -> value this process wrote
}

// NewIdempotencyStore creates a new IdempotencyStore.
func NewIdempotencyStore(c *Client) *IdempotencyStore {
	return &IdempotencyStore{c: c, owners: make(map[string]string)}
}

// releaseScript deletes the lock only while it still holds our value.
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("DEL", KEYS[1]) else return 0 end`

// Get returns the stored response for key, or nil.
func (s *IdempotencyStore) Get(ctx context.Context, key string) (*ports.StoredResponse, error) {
	client := s.c.client
	b, err := client.Do(ctx, client.B().Get().Key(key).Build()).AsBytes()
	if valkey.IsValkeyNil(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("valkey get: %w", err)
	}
	var resp ports.StoredResponse
	if err := json.Unmarshal(b, &resp); err != nil {
		return nil, fmt.Errorf("decode stored response: %w", err)
	}
	return &resp, nil
}

// Put stores resp for ttl.
func (s *IdempotencyStore) Put(ctx context.Context, key string, resp ports.StoredResponse, ttl time.Duration) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode stored response: %w", err)
	}
	client := s.c.client
	cmd := client.B().Set().Key(key).Value(string(data)).Ex(ttl).Build()
	if err := client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("valkey set: %w", err)
	}
	return nil
}

// Acquire takes the lock on key with a single SET NX EX, so the lock always
// carries its ttl.
func (s *IdempotencyStore) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	client := s.c.client
	lock := lockKey(key)
	owner := uuid.NewString()

	err := client.Do(ctx, acquireCmd(client, lock, owner, ttl)).Error()
	if valkey.IsValkeyNil(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("valkey set nx: %w", err)
	}

	s.mu.Lock()
	s.owners[lock] = owner
	s.mu.Unlock()
	return true, nil
}

// Release drops the lock on key if this process still owns it. A lock that
// expired and was taken by another request is left alone.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	lock := lockKey(key)

	s.mu.Lock()
	owner, ok := s.owners[lock]
	delete(s.owners, lock)
	s.mu.Unlock()
	if !ok {
		return nil
	}

	client := s.c.client
	if err := client.Do(ctx, releaseCmd(client, lock, owner)).Error(); err != nil {
		return fmt.Errorf("valkey release: %w", err)
	}
	return nil
}

func acquireCmd(client valkey.Client, lock, owner string, ttl time.Duration) valkey.Completed {
	return client.B().Set().Key(lock).Value(owner).Nx().Ex(ttl).Build()
}

func releaseCmd(client valkey.Client, lock, owner string) valkey.Completed {
	return client.B().Eval().Script(releaseScript).Numkeys(1).Key(lock).Arg(owner).Build()
}

func lockKey(key string) string {
	return key + ":lock"
}
