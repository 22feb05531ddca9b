package main

import (
	"context"
	"os"
	"time"

	"audio-library/backend/audio/service"
	"audio-library/backend/pkg/config"
	"audio-library/backend/pkg/di"
	"audio-library/backend/pkg/logger"
)

// Seeds one sample record per language, skipping languages that already
// have an asset. Uses the same STORE_DRIVER settings as the server.
func main() {
	cfg := config.New()

	logConfig := logger.DefaultConfig()
	logConfig.Level = cfg.Logging.Level
	logConfig.JSON = cfg.Logging.Format != "text"
	log := logger.New(logConfig)
	logger.SetGlobal(log)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	container, err := di.New(ctx, cfg, log)
	if err != nil {
		log.LogError(err, "Failed to initialize dependency container")
		os.Exit(1)
	}
	defer container.Close()

	created, err := container.AudioService.Seed(ctx, service.DefaultSamples)
	if err != nil {
		log.LogError(err, "Seeding failed", "created", created)
		container.Close()
		os.Exit(1)
	}

	log.Info("Seeding completed", "created", created, "store", cfg.Store.Driver)
}
