package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	readWait  = 5 * time.Minute
)

// ErrMalformed marks a frame that arrived intact but is not a valid request.
// The connection is still usable.
var ErrMalformed = errors.New("malformed message")

// WriteTyped sends a strongly-typed response payload over the WebSocket.
func WriteTyped(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// WriteError sends a typed ErrorEvent over the WebSocket.
func WriteError(conn *websocket.Conn, code, message string) error {
	return WriteTyped(conn, ErrorEvent{
		Event:   EventError,
		Code:    code,
		Message: message,
	})
}

// ReadMessage reads one text frame and returns its action with the raw
// payload for a second, action-specific decode. It sets a read deadline.
func ReadMessage(conn *websocket.Conn) (Action, []byte, error) {
	conn.SetReadDeadline(time.Now().Add(readWait))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return "", nil, err
	}

	var env RequestEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", data, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return env.Action, data, nil
}
