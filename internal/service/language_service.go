package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fluentz/placement-backend/internal/config"
	"github.com/fluentz/placement-backend/internal/model"
	"github.com/fluentz/placement-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const languageCacheTTL = 10 * time.Minute

// LanguageService serves the public language catalogue.
type LanguageService struct {
	repo *repository.LanguageRepository
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewLanguageService creates a new LanguageService.
func NewLanguageService(repo *repository.LanguageRepository, rdb *redis.Client, log zerolog.Logger) *LanguageService {
	return &LanguageService{
		repo: repo,
		rdb:  rdb,
		log:  log.With().Str("component", "language_service").Logger(),
	}
}

// List returns all assessable languages, served from Redis when warm.
func (s *LanguageService) List(ctx context.Context) ([]model.Language, error) {
	key := config.CacheKey.LanguageListKey()

	cached, err := s.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var langs []model.Language
		if json.Unmarshal(cached, &langs) == nil {
			return langs, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Msg("Language cache read failed")
	}

	langs, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list languages: %w", err)
	}
	if langs == nil {
		langs = []model.Language{}
	}

	if raw, err := json.Marshal(langs); err == nil {
		if err := s.rdb.Set(ctx, key, raw, languageCacheTTL).Err(); err != nil {
			s.log.Warn().Err(err).Msg("Language cache write failed")
		}
	}
	return langs, nil
}

// Invalidate drops the cached catalogue after seeding.
func (s *LanguageService) Invalidate(ctx context.Context) error {
	return s.rdb.Del(ctx, config.CacheKey.LanguageListKey()).Err()
}
