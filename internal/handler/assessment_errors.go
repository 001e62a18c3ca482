package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/fluentz/placement-backend/internal/oracle"
	"github.com/fluentz/placement-backend/internal/response"
	"github.com/fluentz/placement-backend/internal/service"
	"github.com/fluentz/placement-backend/internal/token"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// oracleRetryAfter is the retry hint for oracle outages.
const oracleRetryAfter = 5 * time.Second

// assessmentFailure is how an assessment error is presented to a client.
type assessmentFailure struct {
	status int
	code   response.ErrCode
	fields map[string]string
	retry  bool
}

// classifyAssessmentError maps service errors onto API codes. Details name the
// offending token or phase, never token contents.
func classifyAssessmentError(err error) assessmentFailure {
	var te *service.TokenError
	var pe *service.PhaseError

	switch {
	case errors.As(err, &te):
		code := response.ErrAssessmentTokenInvalid
		if errors.Is(err, token.ErrTokenExpired) {
			code = response.ErrAssessmentTokenExpired
		}
		return assessmentFailure{
			status: http.StatusBadRequest,
			code:   code,
			fields: map[string]string{"token": te.Field},
		}
	case errors.Is(err, service.ErrTokenBindingMismatch):
		return assessmentFailure{
			status: http.StatusBadRequest,
			code:   response.ErrTokenBindingMismatch,
			fields: map[string]string{"token": service.FieldAnswerKey},
		}
	case errors.As(err, &pe):
		return assessmentFailure{
			status: http.StatusConflict,
			code:   response.ErrWrongPhase,
			fields: map[string]string{"expected_phase": string(pe.Expected), "actual_phase": string(pe.Actual)},
		}
	case errors.Is(err, service.ErrWrongPhase):
		return assessmentFailure{status: http.StatusConflict, code: response.ErrWrongPhase}
	case errors.Is(err, service.ErrPrerequisiteNotMet):
		return assessmentFailure{status: http.StatusForbidden, code: response.ErrPrerequisiteNotMet}
	case errors.Is(err, service.ErrUnknownTopic):
		return assessmentFailure{status: http.StatusNotFound, code: response.ErrUnknownTopic}
	case errors.Is(err, service.ErrSubjectMismatch):
		return assessmentFailure{status: http.StatusForbidden, code: response.ErrForbidden}
	case errors.Is(err, oracle.ErrOracleUnavailable):
		return assessmentFailure{status: http.StatusServiceUnavailable, code: response.ErrOracleUnavailable, retry: true}
	default:
		return assessmentFailure{status: http.StatusInternalServerError, code: response.ErrInternal}
	}
}

// failAssessment writes the HTTP error response for err.
func failAssessment(c *gin.Context, log zerolog.Logger, err error) {
	f := classifyAssessmentError(err)
	if f.status >= http.StatusInternalServerError && !f.retry {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Assessment request failed")
	}
	switch {
	case f.retry:
		response.FailRetryable(c, f.status, f.code, oracleRetryAfter)
	case f.fields != nil:
		response.FailWithFields(c, f.status, f.code, f.fields)
	default:
		response.Fail(c, f.status, f.code)
	}
}
