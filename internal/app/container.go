package app

import (
	"context"
	"log"
	"time"

	"gigwatch/internal/config"
	"gigwatch/internal/database"
	dbpostgres "gigwatch/internal/database/postgres"
	"gigwatch/internal/infrastructure/cache"
)

type Container struct {
	Config  config.Config
	Sources config.Sources
	DB      database.DB
	Redis   *cache.Redis
}

func NewContainer(cfg config.Config, logger *log.Logger) (*Container, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := dbpostgres.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	sources, err := config.LoadSources(cfg.Scraper.SourcesFile)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Container{
		Config:  cfg,
		Sources: sources,
		DB:      db,
		Redis:   cache.NewRedis(cfg.Redis, logger),
	}, nil
}

func (c *Container) Close() error {
	if c == nil {
		return nil
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
