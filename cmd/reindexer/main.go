package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/samirrijal/storemap/internal/bootstrap"
	"github.com/samirrijal/storemap/internal/core/usecases"
	"github.com/samirrijal/storemap/internal/pkg/config"
	"github.com/samirrijal/storemap/internal/pkg/logging"
	"github.com/samirrijal/storemap/internal/workflows"
)

const workflowID = "storemap-reindex"

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: reindexer <worker|run>")
	}

	cfg, err := config.Load("storemap-reindexer")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	switch os.Args[1] {
	case "worker":
		runWorker(cfg, c)
	case "run":
		startReindex(cfg, c)
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
}

func runWorker(cfg *config.Config, c client.Client) {
	if cfg.Storage.Index == config.BackendMemory {
		slog.Warn("index backend is memory: the worker rebuilds its own process-local index only")
	}

	storage, err := bootstrap.OpenStorage(context.Background(), cfg)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	defer storage.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.ReindexWorkflow)
	w.RegisterActivity(&workflows.ReindexActivities{
		Reindex: usecases.NewReindexService(storage.Stores, storage.Index),
	})

	slog.Info("reindex worker started", "task_queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}

func startReindex(cfg *config.Config, c client.Client) {
	ctx := context.Background()

	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: cfg.Temporal.TaskQueue,
	}, workflows.ReindexWorkflow, workflows.ReindexInput{BatchSize: cfg.Temporal.BatchSize})
	if err != nil {
		log.Fatalf("start workflow: %v", err)
	}
	slog.Info("reindex started", "workflow_id", run.GetID(), "run_id", run.GetRunID())

	var res workflows.ReindexResult
	if err := run.Get(ctx, &res); err != nil {
		log.Fatalf("reindex: %v", err)
	}
	slog.Info("reindex finished", "indexed", res.Indexed, "last_id", res.LastID)
}
