// Package bootstrap builds the adapters selected by configuration. It is
// shared by the commands under cmd/.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samirrijal/storemap/internal/adapters/memindex"
	"github.com/samirrijal/storemap/internal/adapters/memory"
	"github.com/samirrijal/storemap/internal/adapters/postgres"
	"github.com/samirrijal/storemap/internal/core/ports"
	"github.com/samirrijal/storemap/internal/pkg/config"
)

// Storage is the repository and spatial index pair in use.
type Storage struct {
	Stores ports.StoreRepository
	Index  ports.SpatialIndex
	DB     *postgres.DB // nil when no backend needs PostgreSQL
}

// OpenStorage connects the configured repository and index backends.
func OpenStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	s := &Storage{}

	if cfg.UsesPostgres() {
		db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		s.DB = db
	}

	switch cfg.Storage.Repository {
	case config.BackendPostgres:
		s.Stores = postgres.NewStoreRepo(s.DB)
	default:
		s.Stores = memory.NewStoreRepo()
	}

	switch cfg.Storage.Index {
	case config.BackendPostgres:
		s.Index = postgres.NewSpatialIndex(s.DB)
	default:
		s.Index = memindex.New()
	}

	slog.Info("storage ready", "repository", cfg.Storage.Repository, "index", cfg.Storage.Index)
	return s, nil
}

// NeedsWarmup reports whether the index starts empty while the repository
// already holds stores, so it must be rebuilt on boot.
func (s *Storage) NeedsWarmup(cfg *config.Config) bool {
	return cfg.Storage.Index == config.BackendMemory && cfg.Storage.Repository != config.BackendMemory
}

// Close releases database connections.
func (s *Storage) Close() {
	if s.DB != nil {
		s.DB.Close()
	}
}
