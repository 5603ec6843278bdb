package websocket

import "encoding/json"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer Action = "answer"
	ActionSubmit Action = "submit"
	ActionPing   Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// AnswerRequest records one answer; Value has the shape of the question type.
type AnswerRequest struct {
	Action     Action          `json:"action"`
	QuestionID string          `json:"question_id"`
	Value      json.RawMessage `json:"value"`
}

// SubmitRequest ends the session. Confirm must be true.
type SubmitRequest struct {
	Action  Action `json:"action"`
	Confirm bool   `json:"confirm"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventTick      Event = "tick"
	EventSaved     Event = "saved"
	EventSubmitted Event = "submitted"
	EventError     Event = "error"
	EventPong      Event = "pong"
)

// TickEvent reports the countdown once per second.
type TickEvent struct {
	Event    Event `json:"event"`
	TimeLeft int   `json:"time_left"`
}

type SavedEvent struct {
	Event      Event  `json:"event"`
	QuestionID string `json:"question_id"`
}

// SubmittedEvent carries the final outcome. It is the last event on a stream.
type SubmittedEvent struct {
	Event   Event       `json:"event"`
	Outcome interface{} `json:"outcome"`
}

type ErrorEvent struct {
	Event   Event  `json:"event"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type PongEvent struct {
	Event Event `json:"event"`
}
