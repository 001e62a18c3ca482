package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/fluentz/placement-backend/internal/middleware"
	"github.com/fluentz/placement-backend/internal/model"
	"github.com/fluentz/placement-backend/internal/response"
	"github.com/fluentz/placement-backend/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// AssessmentFlow is the placement-test state machine.
type AssessmentFlow interface {
	Start(ctx context.Context, subjectID, topicID int64) (*model.StartResponse, error)
	Answer(ctx context.Context, subjectID int64, stateToken, answerKey, choice string) (*model.AnswerResponse, error)
	SubmitWriting(ctx context.Context, subjectID int64, stateToken, text string) (*model.Verdict, error)
}

// ResultLister lists stored verdicts.
type ResultLister interface {
	ListForLearner(ctx context.Context, learnerID int64, page, perPage int) ([]model.AssessmentResult, int, error)
}

// AssessmentHandler handles learner-facing placement-test endpoints.
type AssessmentHandler struct {
	flow    AssessmentFlow
	results ResultLister
	log     zerolog.Logger
}

// NewAssessmentHandler creates a new AssessmentHandler.
func NewAssessmentHandler(flow AssessmentFlow, results ResultLister, log zerolog.Logger) *AssessmentHandler {
	return &AssessmentHandler{
		flow:    flow,
		results: results,
		log:     log.With().Str("component", "assessment_handler").Logger(),
	}
}

// Start godoc
// POST /api/v1/assessments/start
// Begins a placement test for a language and returns the first question.
func (h *AssessmentHandler) Start(c *gin.Context) {
	learnerID, ok := middleware.GetLearnerID(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.StartAssessmentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	resp, err := h.flow.Start(c.Request.Context(), learnerID, req.TopicID)
	if err != nil {
		failAssessment(c, h.log, err)
		return
	}

	response.Success(c, http.StatusCreated, resp)
}

// Answer godoc
// POST /api/v1/assessments/answer
// Grades the current question and returns the next one or the writing task.
func (h *AssessmentHandler) Answer(c *gin.Context) {
	learnerID, ok := middleware.GetLearnerID(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.AnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	resp, err := h.flow.Answer(c.Request.Context(), learnerID, req.StateToken, req.AnswerKey, req.Choice)
	if err != nil {
		failAssessment(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, resp)
}

// SubmitWriting godoc
// POST /api/v1/assessments/writing
// Grades the writing task and returns the final verdict.
func (h *AssessmentHandler) SubmitWriting(c *gin.Context) {
	learnerID, ok := middleware.GetLearnerID(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.SubmitWritingRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	verdict, err := h.flow.SubmitWriting(c.Request.Context(), learnerID, req.StateToken, req.Text)
	if err != nil {
		failAssessment(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, verdict)
}

// ListResults godoc
// GET /api/v1/assessments/results?page=1&per_page=20
// Lists the learner's stored placement verdicts, newest first.
func (h *AssessmentHandler) ListResults(c *gin.Context) {
	learnerID, ok := middleware.GetLearnerID(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	results, total, err := h.results.ListForLearner(c.Request.Context(), learnerID, page, perPage)
	if err != nil {
		h.log.Error().Err(err).Int64("learner_id", learnerID).Msg("List results failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"results": results},
		response.NewPagination(page, perPage, total))
}
