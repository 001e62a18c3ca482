package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluentz/placement-backend/internal/cefr"
	"github.com/fluentz/placement-backend/internal/middleware"
	"github.com/fluentz/placement-backend/internal/model"
	"github.com/fluentz/placement-backend/internal/oracle"
	"github.com/fluentz/placement-backend/internal/response"
	"github.com/fluentz/placement-backend/internal/service"
	"github.com/fluentz/placement-backend/internal/token"
	"github.com/fluentz/placement-backend/internal/validator"
)

func init() {
	gin.SetMode(gin.TestMode)
	validator.Setup()
}

const testLearnerID int64 = 7

type fakeFlow struct {
	err       error
	gotChoice string
	gotText   string
}

// writingStateToken makes fakeFlow.Answer finish the core round.
const writingStateToken = "st2.tag"

func (f *fakeFlow) Start(_ context.Context, subjectID, topicID int64) (*model.StartResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &model.StartResponse{
		Step:        1,
		Phase:       model.PhaseMCQ,
		TargetLevel: cefr.B1,
		Topic:       fmt.Sprintf("topic-%d", topicID),
		Question:    &model.Question{Prompt: "¿Cuántos?", Options: []model.Option{{Label: "A", Text: "uno"}}},
		StateToken:  "st.tag",
		AnswerKey:   "ak.tag",
	}, nil
}

func (f *fakeFlow) Answer(_ context.Context, _ int64, stateToken, _, choice string) (*model.AnswerResponse, error) {
	f.gotChoice = choice
	if f.err != nil {
		return nil, f.err
	}
	if stateToken == writingStateToken {
		return &model.AnswerResponse{DoneCore: true, Step: 9, Phase: model.PhaseWriting, TargetLevel: cefr.C2,
			Writing: &model.WritingPrompt{Prompt: "Escribe", MinWords: 60, MaxWords: 120}, StateToken: "w.tag"}, nil
	}
	return &model.AnswerResponse{Step: 2, Phase: model.PhaseMCQ, TargetLevel: cefr.B2, StateToken: "st2.tag", AnswerKey: "ak2.tag"}, nil
}

func (f *fakeFlow) SubmitWriting(_ context.Context, _ int64, _, text string) (*model.Verdict, error) {
	f.gotText = text
	if f.err != nil {
		return nil, f.err
	}
	return &model.Verdict{CoreLevel: cefr.C1, WritingScore: 6, WritingLevel: cefr.B1, FinalLevel: cefr.B1, Bucket: cefr.BucketIntermediate}, nil
}

type fakeResults struct {
	page, perPage int
}

func (f *fakeResults) ListForLearner(_ context.Context, _ int64, page, perPage int) ([]model.AssessmentResult, int, error) {
	f.page, f.perPage = page, perPage
	return []model.AssessmentResult{{ID: 1, LanguageCode: "es", Level: cefr.BucketIntermediate}}, 41, nil
}

func asLearner(c *gin.Context) {
	c.Set(middleware.ContextKeyLearnerID, testLearnerID)
	c.Next()
}

func newAssessmentEngine(flow AssessmentFlow, results ResultLister) *gin.Engine {
	h := NewAssessmentHandler(flow, results, zerolog.Nop())
	r := gin.New()
	g := r.Group("/api/v1/assessments", asLearner)
	g.POST("/start", h.Start)
	g.POST("/answer", h.Answer)
	g.POST("/writing", h.SubmitWriting)
	g.GET("/results", h.ListResults)
	return r
}

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var body response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestStartHandler(t *testing.T) {
	w := doJSON(newAssessmentEngine(&fakeFlow{}, nil), http.MethodPost, "/api/v1/assessments/start", `{"topic_id":4}`)

	require.Equal(t, http.StatusCreated, w.Code)
	data := decode(t, w).Data.(map[string]any)
	assert.Equal(t, "B1", data["target_level"])
	assert.Equal(t, "mcq", data["phase"])
	assert.Equal(t, "ak.tag", data["answer_key"])
}

func TestStartHandler_Validation(t *testing.T) {
	w := doJSON(newAssessmentEngine(&fakeFlow{}, nil), http.MethodPost, "/api/v1/assessments/start", `{}`)

	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, response.ErrValidation, body.Error.Code)
	assert.Contains(t, body.Error.Fields, "topic_id")
}

func TestAnswerHandler_PassesChoiceThrough(t *testing.T) {
	flow := &fakeFlow{}
	w := doJSON(newAssessmentEngine(flow, nil), http.MethodPost, "/api/v1/assessments/answer",
		`{"state_token":"a.b","answer_key":"c.d","choice":"Z"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Z", flow.gotChoice)
	data := decode(t, w).Data.(map[string]any)
	assert.Equal(t, false, data["done_core"])
	assert.Contains(t, data, "prev_feedback")
}

func TestWritingHandler(t *testing.T) {
	flow := &fakeFlow{}
	w := doJSON(newAssessmentEngine(flow, nil), http.MethodPost, "/api/v1/assessments/writing",
		`{"state_token":"w.tag","text":"Hola mundo"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Hola mundo", flow.gotText)
	data := decode(t, w).Data.(map[string]any)
	assert.Equal(t, "B1", data["final_level"])
	assert.Equal(t, "intermediate", data["bucket"])
}

func TestAssessmentErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   response.ErrCode
		fields map[string]string
	}{
		{
			"invalid state token",
			&service.TokenError{Field: service.FieldStateToken, Err: token.ErrInvalidToken},
			http.StatusBadRequest, response.ErrAssessmentTokenInvalid,
			map[string]string{"token": "state_token"},
		},
		{
			"expired key",
			&service.TokenError{Field: service.FieldAnswerKey, Err: token.ErrTokenExpired},
			http.StatusBadRequest, response.ErrAssessmentTokenExpired,
			map[string]string{"token": "answer_key"},
		},
		{
			"binding mismatch", service.ErrTokenBindingMismatch,
			http.StatusBadRequest, response.ErrTokenBindingMismatch,
			map[string]string{"token": "answer_key"},
		},
		{
			"wrong phase", &service.PhaseError{Expected: model.PhaseWriting, Actual: model.PhaseMCQ},
			http.StatusConflict, response.ErrWrongPhase,
			map[string]string{"expected_phase": "writing", "actual_phase": "mcq"},
		},
		{"prerequisite", service.ErrPrerequisiteNotMet, http.StatusForbidden, response.ErrPrerequisiteNotMet, nil},
		{"unknown topic", service.ErrUnknownTopic, http.StatusNotFound, response.ErrUnknownTopic, nil},
		{"subject mismatch", service.ErrSubjectMismatch, http.StatusForbidden, response.ErrForbidden, nil},
		{"oracle", fmt.Errorf("%w: timeout", oracle.ErrOracleUnavailable), http.StatusServiceUnavailable, response.ErrOracleUnavailable, nil},
		{"other", errors.New("boom"), http.StatusInternalServerError, response.ErrInternal, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(newAssessmentEngine(&fakeFlow{err: tt.err}, nil), http.MethodPost, "/api/v1/assessments/writing",
				`{"state_token":"w.tag","text":"Hola"}`)

			require.Equal(t, tt.status, w.Code)
			body := decode(t, w)
			assert.Equal(t, tt.code, body.Error.Code)
			assert.Equal(t, tt.fields, body.Error.Fields)
			assert.NotContains(t, w.Body.String(), "w.tag")
		})
	}
}

func TestAssessmentErrors_OracleSetsRetryAfter(t *testing.T) {
	w := doJSON(newAssessmentEngine(&fakeFlow{err: oracle.ErrOracleUnavailable}, nil), http.MethodPost,
		"/api/v1/assessments/start", `{"topic_id":4}`)
	assert.Equal(t, "5", w.Header().Get("Retry-After"))
	assert.Equal(t, 5, decode(t, w).Error.RetryAfter)
}

func TestListResults_Pagination(t *testing.T) {
	results := &fakeResults{}
	w := doJSON(newAssessmentEngine(&fakeFlow{}, results), http.MethodGet, "/api/v1/assessments/results?page=2&per_page=500", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, results.page)
	assert.Equal(t, 20, results.perPage)

	body := decode(t, w)
	require.NotNil(t, body.Pagination)
	assert.Equal(t, 41, body.Pagination.TotalItems)
	assert.Equal(t, 3, body.Pagination.TotalPages)
	assert.True(t, strings.Contains(w.Body.String(), `"language_code":"es"`))
}
