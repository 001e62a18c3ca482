package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluentz/placement-backend/internal/config"
	"github.com/fluentz/placement-backend/internal/handler"
	"github.com/fluentz/placement-backend/internal/metrics"
	"github.com/fluentz/placement-backend/internal/model"
	"github.com/fluentz/placement-backend/internal/service"
)

type staticLanguages []model.Language

func (s staticLanguages) List(context.Context) ([]model.Language, error) { return s, nil }

func newTestRouter(t *testing.T) (*service.AuthService, http.Handler) {
	t.Helper()
	cfg := &config.Config{GinMode: "test", JWTSecret: "router-test-secret", JWTExpiry: time.Hour}
	auth := service.NewAuthService(cfg)
	log := zerolog.Nop()
	handlers := &Handlers{
		Assessment: handler.NewAssessmentHandler(nil, nil, log),
		Language:   handler.NewLanguageHandler(staticLanguages{{ID: 1, Code: "en", Name: "English"}}, log),
		WS:         handler.NewWSHandler(nil, log, nil),
	}
	return auth, SetupRouter(auth, handlers, nil, metrics.New(), cfg)
}

func get(r http.Handler, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouter_Health(t *testing.T) {
	_, r := newTestRouter(t)
	w := get(r, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRouter_PublicLanguagesAreCacheable(t *testing.T) {
	_, r := newTestRouter(t)
	w := get(r, "/api/v1/public/languages", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "public, max-age=300", w.Header().Get("Cache-Control"))
}

func TestRouter_AssessmentsRequireLearner(t *testing.T) {
	auth, r := newTestRouter(t)

	w := get(r, "/api/v1/assessments/results", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	tok, err := auth.GenerateToken(3, "admin")
	require.NoError(t, err)
	w = get(r, "/api/v1/assessments/results", tok)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRouter_Metrics(t *testing.T) {
	_, r := newTestRouter(t)
	w := get(r, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
