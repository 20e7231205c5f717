package transport

import (
	"encoding/json"

	"stridelink/pkg/types"
)

// Wire event names shared with the messaging backend.
const (
	EventJoinSession   = "joinSession"
	EventLeaveSession  = "leaveSession"
	EventTypingMessage = "typingMessage"
	EventNewMessage    = "newMessage"
	EventDeleteMessage = "deleteMessage"
)

// Frame is the envelope for every message on the channel, in both
// directions: an event name plus an event-specific JSON payload.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// JoinPayload is the body of joinSession and leaveSession.
type JoinPayload struct {
	SessionID string `json:"session_id"`
}

// TypingPayload is the body of an outbound typingMessage ping.
type TypingPayload struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	User      string `json:"user"`
}

// DeletePayload is the body of an inbound deleteMessage event. The
// server does not scope it by session; the client is the enforcement
// point.
type DeletePayload struct {
	MessageID string `json:"message_id"`
}

// Handler consumes the raw payload of one inbound event. Handlers run
// synchronously on the read loop and must not block.
type Handler func(data json.RawMessage)

// StateHandler observes connection state transitions.
type StateHandler func(state types.ConnectionState)
