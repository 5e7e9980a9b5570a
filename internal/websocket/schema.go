package websocket

import (
	"github.com/prepdesk/examtake/internal/attempt"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing Action = "ping"
)

// RequestPayload is the single client→server message shape; the stream
// is otherwise server-push.
type RequestPayload struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventTimer     Event = "timer"
	EventSubmitted Event = "submitted"
	EventError     Event = "error"
	EventPong      Event = "pong"
)

// TimerEvent is pushed every tick for timed attempts.
type TimerEvent struct {
	Event Event              `json:"event"`
	Timer *attempt.TimerView `json:"timer"`
}

// SubmittedEvent is pushed once when the session reaches its terminal
// state, whether by user action or timer expiry.
type SubmittedEvent struct {
	Event         Event `json:"event"`
	AutoSubmitted bool  `json:"auto_submitted"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
