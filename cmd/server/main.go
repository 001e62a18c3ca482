package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fluentz/placement-backend/internal/config"
	"github.com/fluentz/placement-backend/internal/database"
	"github.com/fluentz/placement-backend/internal/handler"
	"github.com/fluentz/placement-backend/internal/llm"
	"github.com/fluentz/placement-backend/internal/logger"
	"github.com/fluentz/placement-backend/internal/metrics"
	"github.com/fluentz/placement-backend/internal/middleware"
	"github.com/fluentz/placement-backend/internal/oracle"
	"github.com/fluentz/placement-backend/internal/repository"
	"github.com/fluentz/placement-backend/internal/router"
	"github.com/fluentz/placement-backend/internal/service"
	"github.com/fluentz/placement-backend/internal/token"
	"github.com/fluentz/placement-backend/internal/validator"
	"github.com/fluentz/placement-backend/internal/worker"
	"github.com/rs/zerolog"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Str("llm_model", cfg.LLMModel).
		Int("max_core_questions", cfg.MaxCoreQuestions).
		Msg("Starting placement backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	// ─── Assessment Token Signer ───────────────────────────────────────
	signer, err := token.NewSigner([]byte(cfg.AssessmentSecret))
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid ASSESSMENT_SECRET")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Item Oracle ───────────────────────────────────────────────────
	provider, err := llm.NewOpenAIProvider(llm.OpenAIConfig{
		APIKey:  cfg.LLMAPIKey,
		BaseURL: cfg.LLMBaseURL,
		Model:   cfg.LLMModel,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure LLM provider")
	}
	retry := llm.DefaultRetryConfig()
	retry.MaxAttempts = cfg.OracleMaxAttempts
	oracleCfg := oracle.DefaultConfig()
	oracleCfg.Timeout = cfg.OracleTimeout
	itemOracle := oracle.NewClient(llm.WithRetry(provider, retry), oracleCfg)

	m := metrics.New()

	// ─── Initialize Repositories ───────────────────────────────────────
	learnerRepo := repository.NewLearnerRepository(pool)
	languageRepo := repository.NewLanguageRepository(pool)
	assessmentRepo := repository.NewAssessmentRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg)
	languageService := service.NewLanguageService(languageRepo, rdb, log)
	resultService := service.NewResultService(assessmentRepo)
	assessmentService := service.NewAssessmentService(
		signer,
		itemOracle,
		learnerRepo,
		languageRepo,
		service.NewRedisVerdictQueue(rdb),
		service.NewRedisCompletionGuard(rdb),
		m,
		service.AssessmentConfig{
			MaxCoreQuestions: cfg.MaxCoreQuestions,
			TokenTTL:         cfg.AssessmentTokenTTL,
		},
		log,
	)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Assessment: handler.NewAssessmentHandler(assessmentService, resultService, log),
		Language:   handler.NewLanguageHandler(languageService, log),
		WS:         handler.NewWSHandler(assessmentService, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	verdictWorker := worker.NewVerdictWorker(assessmentRepo, rdb, m, log)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		verdictWorker.Start(workerCtx)
	}()

	// ─── Warm Language Cache ──────────────────────────────────────────
	if _, err := languageService.List(ctx); err != nil {
		log.Warn().Err(err).Msg("Language cache warm-up failed")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	limiter := middleware.NewRateLimiter(ctx, cfg.RateLimitPerMinute, time.Minute)
	r := router.SetupRouter(authService, handlers, limiter, m, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests. Oracle-bound requests may take a while.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.OracleTimeout+5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop the verdict worker; it flushes its pending batch on exit.
	workerCancel()
	select {
	case <-workerDone:
	case <-time.After(5 * time.Second):
		log.Warn().Msg("Verdict worker did not stop in time")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
