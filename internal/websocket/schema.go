package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionStart         Action = "start"
	ActionAnswer        Action = "answer"
	ActionSubmitWriting Action = "submit_writing"
	ActionPing          Action = "ping"
)

// RequestPayload is a client frame. Which fields matter depends on Action:
// start uses TopicID; answer uses StateToken, AnswerKey and Choice;
// submit_writing uses StateToken and Text.
type RequestPayload struct {
	Action     Action `json:"action"`
	TopicID    int64  `json:"topic_id,omitempty"`
	StateToken string `json:"state_token,omitempty"`
	AnswerKey  string `json:"answer_key,omitempty"`
	Choice     string `json:"choice,omitempty"`
	Text       string `json:"text,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventQuestion Event = "question"
	EventWriting  Event = "writing"
	EventVerdict  Event = "verdict"
	EventError    Event = "error"
	EventPong     Event = "pong"
)

// DataResponse wraps the same payload the HTTP API returns.
type DataResponse struct {
	Event Event       `json:"event"`
	Data  interface{} `json:"data"`
}

type ErrorResponse struct {
	Event  Event             `json:"event"`
	Code   string            `json:"code"`
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
	Retry  bool              `json:"retry,omitempty"`
	// RetryAfter is the suggested wait in seconds when Retry is set.
	RetryAfter int `json:"retry_after,omitempty"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
