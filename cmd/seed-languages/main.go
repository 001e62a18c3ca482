package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fluentz/placement-backend/internal/config"
	"github.com/fluentz/placement-backend/internal/database"
	"github.com/fluentz/placement-backend/internal/logger"
	"github.com/fluentz/placement-backend/internal/model"
	"github.com/fluentz/placement-backend/internal/repository"
	"github.com/fluentz/placement-backend/internal/service"
)

var defaultLanguages = []model.Language{
	{Code: "en", Name: "English"},
	{Code: "ar", Name: "Arabic"},
	{Code: "fr", Name: "French"},
	{Code: "es", Name: "Spanish"},
	{Code: "de", Name: "German"},
	{Code: "tr", Name: "Turkish"},
}

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	languageRepo := repository.NewLanguageRepository(pool)
	languageService := service.NewLanguageService(languageRepo, rdb, log)

	fmt.Printf("=== Seeding %d Languages ===\n", len(defaultLanguages))

	inserted, err := languageRepo.InsertMissing(ctx, defaultLanguages)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to seed languages")
	}

	// The public catalogue is cached; drop it so new rows show up at once.
	if err := languageService.Invalidate(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to invalidate language cache")
	}

	fmt.Printf("Inserted %d new languages (%d already present)\n", inserted, len(defaultLanguages)-inserted)
}
