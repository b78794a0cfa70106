package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	natsadapter "github.com/samirrijal/storemap/internal/adapters/nats"
	"github.com/samirrijal/storemap/internal/bootstrap"
	"github.com/samirrijal/storemap/internal/core/domain"
	"github.com/samirrijal/storemap/internal/core/ports"
	"github.com/samirrijal/storemap/internal/core/usecases"
	"github.com/samirrijal/storemap/internal/pkg/config"
	"github.com/samirrijal/storemap/internal/pkg/logging"
)

// SeedFile is the input document: a list of stores with optional delivery areas.
type SeedFile struct {
	Stores []SeedStore `json:"stores"`
}

// SeedStore is one store to create. ServiceArea holds [lon, lat] positions.
type SeedStore struct {
	Name        string            `json:"name"`
	Lat         float64           `json:"lat"`
	Lon         float64           `json:"lon"`
	ServiceArea []domain.Position `json:"service_area,omitempty"`
}

const workers = 8

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: seed <stores.json>")
	}

	cfg, err := config.Load("storemap-seed")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	if cfg.Storage.Repository == config.BackendMemory {
		log.Fatal("seed needs a persistent repository: set storage.repository=postgres")
	}

	seed, err := readSeedFile(os.Args[1])
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()

	storage, err := bootstrap.OpenStorage(ctx, cfg)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	defer storage.Close()

	var events ports.EventPublisher
	if cfg.NATS.Enabled {
		pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable, store events disabled", "error", err)
		} else {
			defer pub.Close()
			events = pub
		}
	}

	dir := bootstrap.NewDirectory(cfg, storage, events)
	created, failed := seedStores(ctx, dir, seed.Stores)

	slog.Info("seeding complete", "created", created, "failed", failed)
	if failed > 0 {
		os.Exit(1)
	}
}

func readSeedFile(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var seed SeedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return &seed, nil
}

// seedStores creates every store through the directory with a bounded
// number of concurrent writes.
func seedStores(ctx context.Context, dir *usecases.DirectoryService, stores []SeedStore) (created, failed int64) {
	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)

	for i, s := range stores {
		wg.Add(1)
		go func(i int, s SeedStore) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := seedOne(ctx, dir, s); err != nil {
				slog.Error("seed store failed", "index", i, "name", s.Name, "error", err)
				atomic.AddInt64(&failed, 1)
				return
			}
			atomic.AddInt64(&created, 1)
		}(i, s)
	}

	wg.Wait()
	return created, failed
}

func seedOne(ctx context.Context, dir *usecases.DirectoryService, s SeedStore) error {
	store, err := dir.Create(ctx, s.Name, domain.GeoPoint{Lat: s.Lat, Lon: s.Lon})
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	if len(s.ServiceArea) == 0 {
		return nil
	}
	if err := dir.SetServiceArea(ctx, store.ID, s.ServiceArea); err != nil {
		return fmt.Errorf("service area for %s: %w", store.ID, err)
	}
	return nil
}
