package router

import (
	"net/http"
	"time"

	"github.com/fluentz/placement-backend/internal/config"
	"github.com/fluentz/placement-backend/internal/handler"
	"github.com/fluentz/placement-backend/internal/metrics"
	"github.com/fluentz/placement-backend/internal/middleware"
	"github.com/fluentz/placement-backend/internal/response"
	"github.com/fluentz/placement-backend/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// languageCacheSeconds is the client cache lifetime of the language catalogue.
const languageCacheSeconds = 300

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Assessment *handler.AssessmentHandler
	Language   *handler.LanguageHandler
	WS         *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// A nil limiter disables rate limiting; a nil m hides /metrics.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	limiter *middleware.RateLimiter,
	m *metrics.Metrics,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Retry-After"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	if m != nil {
		router.GET("/metrics", gin.WrapH(m.Handler()))
	}

	// ─── 0. Public Group (No Auth) ─────────────────────────────────────
	publicAPI := router.Group("/api/v1/public")
	publicAPI.Use(middleware.CacheControl(languageCacheSeconds))
	{
		publicAPI.GET("/languages", handlers.Language.ListLanguages)
	}

	// ─── 1. Assessment Group (Learner JWT + Rate Limit) ────────────────
	// Tokens in these responses are bearer credentials for one step; never cache them.
	assessmentAPI := router.Group("/api/v1/assessments")
	assessmentAPI.Use(middleware.RequireLearnerJWT(authService))
	if limiter != nil {
		assessmentAPI.Use(limiter.Middleware())
	}
	assessmentAPI.Use(middleware.NoStore())
	{
		assessmentAPI.POST("/start", handlers.Assessment.Start)
		assessmentAPI.POST("/answer", handlers.Assessment.Answer)
		assessmentAPI.POST("/writing", handlers.Assessment.SubmitWriting)
		assessmentAPI.GET("/results", handlers.Assessment.ListResults)
	}

	// ─── 2. WebSocket Group (Learner JWT, ?token= allowed) ─────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireLearnerJWT(authService))
	{
		ws.GET("/assessments/stream", handlers.WS.AssessmentStream)
	}

	return router
}
