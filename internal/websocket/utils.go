package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	// ReadWait bounds how long a learner may think between frames. Writing
	// tasks take a while, so this is generous.
	ReadWait = 30 * time.Minute
	// MaxMessageSize fits the longest essay plus tokens.
	MaxMessageSize = 64 << 10
)

// WriteTyped sends a strongly-typed response payload over the WebSocket.
func WriteTyped(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// WriteEvent sends data wrapped in an event envelope.
func WriteEvent(conn *websocket.Conn, event Event, data interface{}) error {
	return WriteTyped(conn, DataResponse{Event: event, Data: data})
}

// WriteError sends a typed ErrorResponse over the WebSocket.
func WriteError(conn *websocket.Conn, resp ErrorResponse) error {
	resp.Event = EventError
	return WriteTyped(conn, resp)
}

// ReadJSON reads and decodes a message into the provided structure.
// It sets a read deadline.
func ReadJSON(conn *websocket.Conn, v interface{}) error {
	conn.SetReadDeadline(time.Now().Add(ReadWait))
	return conn.ReadJSON(v)
}
