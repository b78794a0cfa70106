package usecases

import (
	"context"
	"fmt"

	"github.com/samirrijal/storemap/internal/core/ports"
	"github.com/samirrijal/storemap/internal/pkg/logging"
	"github.com/samirrijal/storemap/internal/pkg/metrics"
)

// ReindexBatchResult reports one page of a reindex run.
type ReindexBatchResult struct {
	LastID  string `json:"last_id"`
	Indexed int    `json:"indexed"`
	Done    bool   `json:"done"`
}

// ReindexService re-projects repository contents into the spatial index.
type ReindexService struct {
	stores ports.StoreRepository
	index  ports.SpatialIndex
}

// NewReindexService creates a new ReindexService.
func NewReindexService(stores ports.StoreRepository, index ports.SpatialIndex) *ReindexService {
	return &ReindexService{stores: stores, index: index}
}

// ReindexBatch projects up to limit stores with id > afterID.
func (s *ReindexService) ReindexBatch(ctx context.Context, afterID string, limit int) (ReindexBatchResult, error) {
	if limit <= 0 {
		limit = 500
	}
	page, err := s.stores.List(ctx, afterID, limit)
	if err != nil {
		return ReindexBatchResult{}, unavailable("list stores", err)
	}

	res := ReindexBatchResult{LastID: afterID, Done: len(page) < limit}
	for i := range page {
		st := &page[i]
		if err := s.index.IndexPoint(ctx, st.ID, st.Location); err != nil {
			return res, unavailable(fmt.Sprintf("index point %s", st.ID), err)
		}
		if err := s.index.IndexShape(ctx, st.ID, st.ServiceArea); err != nil {
			return res, unavailable(fmt.Sprintf("index shape %s", st.ID), err)
		}
		res.LastID = st.ID
		res.Indexed++
		metrics.StoresReindexed.Inc()
	}
	return res, nil
}

// ReindexAll pages through every store.
func (s *ReindexService) ReindexAll(ctx context.Context, batchSize int) (int, error) {
	total := 0
	after := ""
	for {
		res, err := s.ReindexBatch(ctx, after, batchSize)
		total += res.Indexed
		if err != nil {
			return total, err
		}
		if res.Done {
			logging.FromContext(ctx).Info("reindex complete", "stores", total)
			return total, nil
		}
		after = res.LastID
	}
}
