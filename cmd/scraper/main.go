package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"time"

	"gigwatch/internal/app"
	"gigwatch/internal/config"
	"gigwatch/internal/database/migration"
	"gigwatch/internal/infrastructure/cache"
	"gigwatch/internal/observability"
	"gigwatch/internal/pipeline"
	"gigwatch/internal/repository"
	"gigwatch/internal/scraper"
)

func main() {
	source := flag.String("source", "all", "source id to scrape, or 'all'")
	workers := flag.Int("workers", 3, "concurrent source runs when scraping all")
	flag.Parse()

	logger := log.Default()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	c, err := app.NewContainer(cfg, logger)
	if err != nil {
		log.Fatalf("failed to init container: %v", err)
	}
	defer func() {
		_ = c.Close()
	}()

	migCtx, migCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer migCancel()
	r := migration.Runner{Dir: "migrations"}
	if err := r.Run(migCtx, c.DB); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	orch := pipeline.NewOrchestrator(
		scraper.NewRegistryFromConfig(c.Sources),
		c.Sources,
		repository.NewPostgresGigStore(c.DB),
		repository.NewPostgresRunRepository(c.DB),
		repository.NewPostgresErrorLogRepository(c.DB),
		cache.NewRunLock(c.Redis),
		observability.NewLogSink(logger),
		logger,
	)

	ctx := context.Background()

	if *source != "all" {
		if _, err := orch.Run(ctx, *source); err != nil {
			if errors.Is(err, pipeline.ErrRunInProgress) {
				logger.Printf("source=%s skipped=run_in_progress", *source)
				return
			}
			log.Fatalf("run failed: %v", err)
		}
		return
	}

	failed := 0
	for _, res := range orch.RunAll(ctx, *workers) {
		if res.Err != nil && !errors.Is(res.Err, pipeline.ErrRunInProgress) {
			failed++
		}
	}
	if failed > 0 {
		logger.Printf("runs_failed=%d", failed)
		os.Exit(1)
	}
}
