package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/storemap/internal/core/usecases"
)

// DefaultBatchesPerRun bounds the history of one workflow run before it
// continues as new.
const DefaultBatchesPerRun = 200

// ReindexInput is the input for the reindex workflow.
type ReindexInput struct {
	BatchSize     int
	BatchesPerRun int
	// Carried across continue-as-new.
	AfterID string
	Indexed int
}

// ReindexResult summarizes a completed reindex.
type ReindexResult struct {
	Indexed int
	LastID  string
}

// ReindexWorkflow pages through the store repository in id order and
// re-projects every store into the spatial index. Each page is an activity
// so a failed page is retried without redoing earlier ones.
func ReindexWorkflow(ctx workflow.Context, input ReindexInput) (ReindexResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting reindex workflow", "afterID", input.AfterID, "batchSize", input.BatchSize)

	if input.BatchSize <= 0 {
		input.BatchSize = 500
	}
	if input.BatchesPerRun <= 0 {
		input.BatchesPerRun = DefaultBatchesPerRun
	}

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: time.Second,
			MaximumAttempts: 5,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	for batch := 0; batch < input.BatchesPerRun; batch++ {
		var res usecases.ReindexBatchResult
		err := workflow.ExecuteActivity(ctx, "ReindexBatch", input.AfterID, input.BatchSize).Get(ctx, &res)
		if err != nil {
			logger.Error("reindex batch failed", "afterID", input.AfterID, "error", err)
			return ReindexResult{Indexed: input.Indexed, LastID: input.AfterID}, err
		}
		input.Indexed += res.Indexed
		input.AfterID = res.LastID

		if res.Done {
			logger.Info("Reindex complete", "indexed", input.Indexed)
			return ReindexResult{Indexed: input.Indexed, LastID: input.AfterID}, nil
		}
	}

	logger.Info("Continuing reindex as new", "afterID", input.AfterID, "indexed", input.Indexed)
	return ReindexResult{}, workflow.NewContinueAsNewError(ctx, ReindexWorkflow, input)
}
