package workflows

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"

	"github.com/samirrijal/storemap/internal/core/usecases"
)

// ReindexActivities holds the activity implementations for the reindex workflow.
type ReindexActivities struct {
	Reindex *usecases.ReindexService
}

// ReindexBatch re-projects one page of stores into the spatial index.
func (a *ReindexActivities) ReindexBatch(ctx context.Context, afterID string, limit int) (usecases.ReindexBatchResult, error) {
	res, err := a.Reindex.ReindexBatch(ctx, afterID, limit)
	if err != nil {
		return res, fmt.Errorf("reindex after %q: %w", afterID, err)
	}
	activity.GetLogger(ctx).Info("Reindexed batch", "afterID", afterID, "indexed", res.Indexed, "lastID", res.LastID)
	return res, nil
}
