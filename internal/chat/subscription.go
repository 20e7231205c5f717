package chat

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"stridelink/internal/transport"
	"stridelink/pkg/types"
)

// Registration is an event-handler handle released by Close.
type Registration interface {
	Close()
}

// Channel is the live transport as the chat engine sees it. Implemented
// by the transport manager (through a thin adapter for the handle
// types); faked in tests.
type Channel interface {
	EnsureConnected(ctx context.Context) error
	Emit(event string, payload interface{}) error
	Subscribe(event string, fn transport.Handler) Registration
	OnStateChange(fn transport.StateHandler) Registration
	State() types.ConnectionState
}

// SessionEvents are the inbound callbacks a subscription routes to.
// They run synchronously on the channel read loop and must not block.
type SessionEvents struct {
	OnMessage  func(msg types.Message)
	OnArchived func(messageID string)
	OnTyping   func(userID, userName string)
}

// SessionSubscription scopes the shared channel to one chat session for
// as long as a screen is mounted. The transport delivers events
// globally, not filtered by session: where the payload carries a
// session id the handler checks it, and the rest is scoped by there
// being at most one live subscription per screen.
type SessionSubscription struct {
	channel   Channel
	sessionID string
	events    SessionEvents

	mu           sync.Mutex
	joined       bool
	regs         []Registration
	reconnecting bool
}

// NewSessionSubscription creates an unjoined subscription.
func NewSessionSubscription(channel Channel, sessionID string, events SessionEvents) *SessionSubscription {
	return &SessionSubscription{
		channel:   channel,
		sessionID: sessionID,
		events:    events,
	}
}

// Join emits the join notification and registers the three event
// handlers. Called exactly once per screen mount, after the connection
// has been ensured.
func (s *SessionSubscription) Join(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.joined {
		return ErrAlreadyJoined
	}
	s.joined = true

	if err := s.channel.Emit(transport.EventJoinSession, transport.JoinPayload{SessionID: s.sessionID}); err != nil {
		// Not delivered; the reconnect hook below re-emits once the
		// channel comes back.
		log.Printf("session %s: join not delivered: %v", s.sessionID, err)
	}

	s.regs = append(s.regs,
		s.channel.Subscribe(transport.EventNewMessage, s.handleNewMessage),
		s.channel.Subscribe(transport.EventDeleteMessage, s.handleDeleteMessage),
		s.channel.Subscribe(transport.EventTypingMessage, s.handleTyping),
		s.channel.OnStateChange(s.handleState),
	)

	return nil
}

// Leave emits the leave notification and releases every handler. It
// must run on every exit path; it is idempotent so a deferred call and
// an explicit call cannot double-release.
func (s *SessionSubscription) Leave() {
	s.mu.Lock()
	if !s.joined {
		s.mu.Unlock()
		return
	}
	s.joined = false
	regs := s.regs
	s.regs = nil
	s.mu.Unlock()

	if err := s.channel.Emit(transport.EventLeaveSession, transport.JoinPayload{SessionID: s.sessionID}); err != nil {
		// Offline leave is fine; the server expires the membership.
		log.Printf("session %s: leave not delivered: %v", s.sessionID, err)
	}

	for _, reg := range regs {
		reg.Close()
	}
}

func (s *SessionSubscription) handleNewMessage(data json.RawMessage) {
	var msg types.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("session %s: malformed newMessage: %v", s.sessionID, err)
		return
	}
	// The server does not guarantee only-this-session delivery.
	if msg.SessionID != s.sessionID {
		return
	}
	if s.events.OnMessage != nil {
		s.events.OnMessage(msg)
	}
}

func (s *SessionSubscription) handleDeleteMessage(data json.RawMessage) {
	var payload transport.DeletePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Printf("session %s: malformed deleteMessage: %v", s.sessionID, err)
		return
	}
	if payload.MessageID == "" {
		return
	}
	if s.events.OnArchived != nil {
		s.events.OnArchived(payload.MessageID)
	}
}

func (s *SessionSubscription) handleTyping(data json.RawMessage) {
	var payload transport.TypingPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Printf("session %s: malformed typingMessage: %v", s.sessionID, err)
		return
	}
	if s.events.OnTyping != nil {
		s.events.OnTyping(payload.UserID, payload.User)
	}
}

// handleState re-emits the join after the channel survives a
// reconnecting phase, since the server-side membership was lost with
// the old connection.
func (s *SessionSubscription) handleState(state types.ConnectionState) {
	s.mu.Lock()
	if !s.joined {
		s.mu.Unlock()
		return
	}

	switch state {
	case types.StateReconnecting:
		s.reconnecting = true
		s.mu.Unlock()
	case types.StateConnected:
		rejoin := s.reconnecting
		s.reconnecting = false
		s.mu.Unlock()
		if rejoin {
			if err := s.channel.Emit(transport.EventJoinSession, transport.JoinPayload{SessionID: s.sessionID}); err != nil {
				log.Printf("session %s: rejoin not delivered: %v", s.sessionID, err)
			}
		}
	default:
		s.mu.Unlock()
	}
}
