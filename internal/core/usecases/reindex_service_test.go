package usecases_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/samirrijal/storemap/internal/adapters/memindex"
	"github.com/samirrijal/storemap/internal/adapters/memory"
	"github.com/samirrijal/storemap/internal/core/domain"
	"github.com/samirrijal/storemap/internal/core/usecases"
)

func TestReindexService_ReindexAll(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewStoreRepo()
	for i := 0; i < 7; i++ {
		st := &domain.Store{ID: fmt.Sprintf("s%d", i), Name: "x", Location: domain.GeoPoint{Lat: float64(i), Lon: float64(i)}}
		if i%2 == 0 {
			st.ServiceArea = domain.NewPolygon([]domain.Position{{0, 0}, {1, 0}, {1, 1}, {0, 0}})
		}
		if err := repo.Put(ctx, st); err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	idx := memindex.New()
	svc := usecases.NewReindexService(repo, idx)

	n, err := svc.ReindexAll(ctx, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 7 {
		t.Errorf("expected 7 stores reindexed, got %d", n)
	}
	points, shapes := idx.Len()
	if points != 7 || shapes != 4 {
		t.Errorf("expected 7 points / 4 shapes, got %d / %d", points, shapes)
	}
}

func TestReindexService_ReindexBatchPaging(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewStoreRepo()
	for i := 0; i < 4; i++ {
		_ = repo.Put(ctx, &domain.Store{ID: fmt.Sprintf("s%d", i), Name: "x"})
	}
	svc := usecases.NewReindexService(repo, memindex.New())

	res, err := svc.ReindexBatch(ctx, "", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Indexed != 2 || res.LastID != "s1" || res.Done {
		t.Errorf("unexpected first batch %+v", res)
	}
	res, _ = svc.ReindexBatch(ctx, res.LastID, 2)
	if res.Indexed != 2 || res.LastID != "s3" || res.Done {
		t.Errorf("unexpected second batch %+v", res)
	}
	res, _ = svc.ReindexBatch(ctx, res.LastID, 2)
	if res.Indexed != 0 || !res.Done {
		t.Errorf("unexpected final batch %+v", res)
	}
}

func TestReindexService_IndexFailure(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewStoreRepo()
	_ = repo.Put(ctx, &domain.Store{ID: "s1", Name: "x"})
	idx := &mockIndex{indexPointFn: func(context.Context, string, domain.GeoPoint) error { return errBackendDown }}

	_, err := usecases.NewReindexService(repo, idx).ReindexAll(ctx, 10)
	if !errors.Is(err, domain.ErrUnavailable) {
		t.Errorf("expected unavailable, got %v", err)
	}
}
