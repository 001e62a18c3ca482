package handler

import (
	"context"
	"net/http"

	"github.com/fluentz/placement-backend/internal/model"
	"github.com/fluentz/placement-backend/internal/response"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// LanguageLister lists assessable languages.
type LanguageLister interface {
	List(ctx context.Context) ([]model.Language, error)
}

// LanguageHandler serves the public language catalogue.
type LanguageHandler struct {
	languages LanguageLister
	log       zerolog.Logger
}

// NewLanguageHandler creates a new LanguageHandler.
func NewLanguageHandler(languages LanguageLister, log zerolog.Logger) *LanguageHandler {
	return &LanguageHandler{languages: languages, log: log.With().Str("component", "language_handler").Logger()}
}

// ListLanguages godoc
// GET /api/v1/public/languages
func (h *LanguageHandler) ListLanguages(c *gin.Context) {
	langs, err := h.languages.List(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("List languages failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"languages": langs})
}
