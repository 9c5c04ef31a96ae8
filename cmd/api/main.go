package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"xstock-options/bootstrap"
	"xstock-options/internal/config"
	"xstock-options/internal/logging"

	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load")
	}

	logCfg := logging.DefaultLogConfig()
	logCfg.Level = cfg.LogLevel
	logCfg.FilePath = cfg.LogFile
	logging.Setup(logCfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("app create")
	}

	go func() {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		done := make(chan struct{})
		go func() {
			if err := app.Close(); err != nil {
				log.Error().Err(err).Msg("shutdown")
			}
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			log.Warn().Msg("shutdown timed out")
		}
	}()

	log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("server running")
	log.Info().Msgf("Health check: http://localhost:%s/health/json", cfg.Port)
	if err := app.Fiber.Listen(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("listen")
	}
}
