// Package bootstrap opens the configured backends and assembles the HTTP app.
package bootstrap

import (
	"context"
	"fmt"

	"xstock-options/internal/config"
	"xstock-options/internal/infrastructure/cache"
	"xstock-options/internal/infrastructure/database"
	"xstock-options/internal/interfaces/router"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// App is a ready-to-serve Fiber app plus the connections it owns.
type App struct {
	Fiber *fiber.App
	DB    *gorm.DB
	Redis *cache.Client
}

// New opens the database (and Redis when REDIS_URL is set), migrates the
// schema and builds the router.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := database.OpenDriver(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.DatabaseDriver, err)
	}
	if err := database.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Info().Str("driver", cfg.DatabaseDriver).Msg("database connected")

	var rc *cache.Client
	if cfg.RedisURL != "" {
		rc, err = cache.NewFromURL(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		log.Info().Msg("redis connected")
	} else {
		log.Warn().Msg("REDIS_URL not set; snapshot and price caches disabled")
	}

	app := router.CreateApp(cfg, router.Deps{DB: db, Redis: rc})
	return &App{Fiber: app, DB: db, Redis: rc}, nil
}

// Close shuts the HTTP app down and releases the connections.
func (a *App) Close() error {
	var first error
	if err := a.Fiber.Shutdown(); err != nil {
		first = err
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil && first == nil {
			first = err
		}
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
