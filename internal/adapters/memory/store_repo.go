package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/samirrijal/storemap/internal/core/domain"
)

// StoreRepo keeps stores as JSON documents so callers never share memory with
// the repository.
type StoreRepo struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewStoreRepo creates an empty StoreRepo.
func NewStoreRepo() *StoreRepo {
	return &StoreRepo{docs: make(map[string][]byte)}
}

// Put upserts a store.
func (r *StoreRepo) Put(ctx context.Context, store *domain.Store) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc, err := json.Marshal(store)
	if err != nil {
		return fmt.Errorf("encode store %s: %w", store.ID, err)
	}
	r.mu.Lock()
	r.docs[store.ID] = doc
	r.mu.Unlock()
	return nil
}

// Get returns a store by id.
func (r *StoreRepo) Get(ctx context.Context, id string) (*domain.Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	doc, ok := r.docs[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("store %s: %w", id, domain.ErrNotFound)
	}
	var st domain.Store
	if err := json.Unmarshal(doc, &st); err != nil {
		return nil, fmt.Errorf("decode store %s: %w", id, err)
	}
	return &st, nil
}

// GetMany returns the stores that exist among ids.
func (r *StoreRepo) GetMany(ctx context.Context, ids []string) ([]domain.Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	docs := make([][]byte, 0, len(ids))
	for _, id := range ids {
		if doc, ok := r.docs[id]; ok {
			docs = append(docs, doc)
		}
	}
	r.mu.RUnlock()
	return decodeAll(docs)
}

// List returns up to limit stores with id > afterID, ordered by id.
func (r *StoreRepo) List(ctx context.Context, afterID string, limit int) ([]domain.Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	ids := make([]string, 0, len(r.docs))
	for id := range r.docs {
		if id > afterID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	docs := make([][]byte, len(ids))
	for i, id := range ids {
		docs[i] = r.docs[id]
	}
	r.mu.RUnlock()
	return decodeAll(docs)
}

// Len returns the number of stores.
func (r *StoreRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.docs)
}

func decodeAll(docs [][]byte) ([]domain.Store, error) {
	out := make([]domain.Store, len(docs))
	for i, doc := range docs {
		if err := json.Unmarshal(doc, &out[i]); err != nil {
			return nil, fmt.Errorf("decode store: %w", err)
		}
	}
	return out, nil
}
