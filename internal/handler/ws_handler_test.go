package handler

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluentz/placement-backend/internal/model"
	"github.com/fluentz/placement-backend/internal/oracle"
	"github.com/fluentz/placement-backend/internal/service"
	ws "github.com/fluentz/placement-backend/internal/websocket"
)

func dialStream(t *testing.T, flow AssessmentFlow) *websocket.Conn {
	t.Helper()
	h := NewWSHandler(flow, zerolog.Nop(), nil)
	r := gin.New()
	r.GET("/ws/v1/assessments/stream", asLearner, h.AssessmentStream)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/v1/assessments/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, msg ws.RequestPayload) map[string]any {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
	var out map[string]any
	require.NoError(t, conn.ReadJSON(&out))
	return out
}

func TestWS_Ping(t *testing.T) {
	conn := dialStream(t, &fakeFlow{})
	out := roundTrip(t, conn, ws.RequestPayload{Action: ws.ActionPing})
	assert.Equal(t, "pong", out["event"])
}

func TestWS_StartAnswerSubmit(t *testing.T) {
	conn := dialStream(t, &fakeFlow{})

	out := roundTrip(t, conn, ws.RequestPayload{Action: ws.ActionStart, TopicID: 4})
	assert.Equal(t, "question", out["event"])
	assert.Equal(t, "st.tag", out["data"].(map[string]any)["state_token"])

	out = roundTrip(t, conn, ws.RequestPayload{Action: ws.ActionAnswer, StateToken: "st.tag", AnswerKey: "ak.tag", Choice: "B"})
	assert.Equal(t, "question", out["event"])

	out = roundTrip(t, conn, ws.RequestPayload{Action: ws.ActionAnswer, StateToken: writingStateToken, AnswerKey: "ak2.tag", Choice: "B"})
	assert.Equal(t, "writing", out["event"])

	out = roundTrip(t, conn, ws.RequestPayload{Action: ws.ActionSubmitWriting, StateToken: "w.tag", Text: "Hola"})
	assert.Equal(t, "verdict", out["event"])
	assert.Equal(t, "B1", out["data"].(map[string]any)["final_level"])
}

func TestWS_Errors(t *testing.T) {
	flow := &fakeFlow{err: &service.PhaseError{Expected: model.PhaseWriting, Actual: model.PhaseMCQ}}
	conn := dialStream(t, flow)

	out := roundTrip(t, conn, ws.RequestPayload{Action: ws.ActionSubmitWriting, StateToken: "st.tag", Text: "Hola"})
	assert.Equal(t, "error", out["event"])
	assert.Equal(t, "WRONG_PHASE", out["code"])

	out = roundTrip(t, conn, ws.RequestPayload{Action: ws.ActionAnswer, StateToken: "st.tag"})
	assert.Equal(t, "VALIDATION_ERROR", out["code"])
	assert.Contains(t, out["fields"], "answer_key")

	out = roundTrip(t, conn, ws.RequestPayload{Action: "dance"})
	assert.Equal(t, "INVALID_PAYLOAD", out["code"])
}

func TestWS_OracleErrorCarriesRetryHint(t *testing.T) {
	conn := dialStream(t, &fakeFlow{err: oracle.ErrOracleUnavailable})

	out := roundTrip(t, conn, ws.RequestPayload{Action: ws.ActionStart, TopicID: 4})
	assert.Equal(t, "error", out["event"])
	assert.Equal(t, "ORACLE_UNAVAILABLE", out["code"])
	assert.Equal(t, true, out["retry"])
	assert.Equal(t, float64(5), out["retry_after"])
}
