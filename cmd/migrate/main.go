package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/samirrijal/storemap/internal/adapters/postgres"
	"github.com/samirrijal/storemap/internal/pkg/config"
	"github.com/samirrijal/storemap/internal/pkg/logging"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|status>")
	}

	cfg, err := config.Load("storemap-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, "text")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	switch os.Args[1] {
	case "up":
		db, err := postgres.New(ctx, cfg.Database.DSN(), 2)
		if err != nil {
			log.Fatalf("db: %v", err)
		}
		defer db.Close()

		applied, err := postgres.Migrate(ctx, db)
		if err != nil {
			log.Fatalf("migrate: %v", err)
		}
		for _, name := range applied {
			fmt.Printf("OK  %s\n", name)
		}
		log.Printf("%d migrations applied", len(applied))
	case "status":
		names, err := postgres.MigrationNames()
		if err != nil {
			log.Fatalf("list migrations: %v", err)
		}
		for _, name := range names {
			fmt.Println(name)
		}
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
}
