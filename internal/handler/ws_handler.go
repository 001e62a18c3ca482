package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/fluentz/placement-backend/internal/middleware"
	"github.com/fluentz/placement-backend/internal/model"
	"github.com/fluentz/placement-backend/internal/response"
	"github.com/fluentz/placement-backend/internal/validator"
	ws "github.com/fluentz/placement-backend/internal/websocket"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// wsActionTimeout bounds one action, oracle calls included.
const wsActionTimeout = 90 * time.Second

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams a placement test over a WebSocket.
type WSHandler struct {
	flow     AssessmentFlow
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(flow AssessmentFlow, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		flow:     flow,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// AssessmentStream godoc
// WS /ws/v1/assessments/stream?token=...
// Runs start, answer and submit_writing over one connection. Tokens still
// travel in every frame; the connection itself holds no session state.
func (h *WSHandler) AssessmentStream(c *gin.Context) {
	learnerID, ok := middleware.GetLearnerID(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(ws.MaxMessageSize)

	wsLog := h.log.With().Int64("learner_id", learnerID).Logger()
	wsLog.Info().Msg("Learner connected")

	for {
		var msg ws.RequestPayload
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), wsActionTimeout)
		err := h.dispatch(ctx, conn, learnerID, &msg)
		cancel()
		if err != nil {
			wsLog.Debug().Err(err).Msg("Write failed, closing")
			break
		}
	}
}

// dispatch runs one client action. The returned error is a write failure;
// action failures are reported to the client as error events.
func (h *WSHandler) dispatch(ctx context.Context, conn *websocket.Conn, learnerID int64, msg *ws.RequestPayload) error {
	switch msg.Action {
	case ws.ActionPing:
		return ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})

	case ws.ActionStart:
		req := model.StartAssessmentRequest{TopicID: msg.TopicID}
		if fields := validator.Validate(&req); fields != nil {
			return writeValidationError(conn, fields)
		}
		resp, err := h.flow.Start(ctx, learnerID, req.TopicID)
		if err != nil {
			return h.writeAssessmentError(conn, err)
		}
		return ws.WriteEvent(conn, ws.EventQuestion, resp)

	case ws.ActionAnswer:
		req := model.AnswerRequest{StateToken: msg.StateToken, AnswerKey: msg.AnswerKey, Choice: msg.Choice}
		if fields := validator.Validate(&req); fields != nil {
			return writeValidationError(conn, fields)
		}
		resp, err := h.flow.Answer(ctx, learnerID, req.StateToken, req.AnswerKey, req.Choice)
		if err != nil {
			return h.writeAssessmentError(conn, err)
		}
		if resp.DoneCore {
			return ws.WriteEvent(conn, ws.EventWriting, resp)
		}
		return ws.WriteEvent(conn, ws.EventQuestion, resp)

	case ws.ActionSubmitWriting:
		req := model.SubmitWritingRequest{StateToken: msg.StateToken, Text: msg.Text}
		if fields := validator.Validate(&req); fields != nil {
			return writeValidationError(conn, fields)
		}
		verdict, err := h.flow.SubmitWriting(ctx, learnerID, req.StateToken, req.Text)
		if err != nil {
			return h.writeAssessmentError(conn, err)
		}
		return ws.WriteEvent(conn, ws.EventVerdict, verdict)

	default:
		h.log.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
		return ws.WriteError(conn, ws.ErrorResponse{
			Code:   string(response.ErrInvalidPayload),
			Error:  "unknown action: " + string(msg.Action),
			Fields: map[string]string{"action": string(msg.Action)},
		})
	}
}

func (h *WSHandler) writeAssessmentError(conn *websocket.Conn, err error) error {
	f := classifyAssessmentError(err)
	if f.status >= http.StatusInternalServerError && !f.retry {
		h.log.Error().Err(err).Msg("Assessment action failed")
	}
	resp := ws.ErrorResponse{
		Code:   string(f.code),
		Error:  response.GetMessage(f.code),
		Fields: f.fields,
		Retry:  f.retry,
	}
	if f.retry {
		resp.RetryAfter = response.RetryAfterSeconds(oracleRetryAfter)
	}
	return ws.WriteError(conn, resp)
}

func writeValidationError(conn *websocket.Conn, fields map[string]string) error {
	return ws.WriteError(conn, ws.ErrorResponse{
		Code:   string(response.ErrValidation),
		Error:  response.GetMessage(response.ErrValidation),
		Fields: fields,
	})
}
