package types

import (
	"time"
)

// Message variant discriminators. The server tags every chat message with
// exactly one of these so clients can render the right card.
const (
	MessageKindText           = "text"
	MessageKindRecommendation = "recommendation"
	MessageKindProfile        = "profile"
	MessageKindRunRecord      = "run_record"
)

// Chat session status values.
const (
	SessionStatusActive   = "active"
	SessionStatusArchived = "archived"
)

// Participant roles within a chat session.
const (
	RoleRunner = "runner"
	RoleExpert = "expert"
)

// ConnectionState describes the lifecycle of the one live channel
// connection. Owned by the transport manager; everyone else only reads it.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateReconnecting ConnectionState = "reconnecting"
)

// ChatSession is a persistent conversation thread between two users.
// Created server-side on first contact; the client only reads it, apart
// from the optimistic archived flag.
type ChatSession struct {
	ID            string    `json:"id"`
	RunnerID      string    `json:"runner_id"`
	RunnerName    string    `json:"runner_name"`
	ExpertID      string    `json:"expert_id"`
	ExpertName    string    `json:"expert_name"`
	Status        string    `json:"status"`
	InitiatedByMe bool      `json:"initiated_by_me"`
	ArchivedByMe  bool      `json:"archived_by_me"`
	CreatedAt     time.Time `json:"created_at"`
}

// Peer returns the id and display name of the other participant.
func (s *ChatSession) Peer(myUserID string) (string, string) {
	if s.RunnerID == myUserID {
		return s.ExpertID, s.ExpertName
	}
	return s.RunnerID, s.RunnerName
}

// ProfileSnapshot is the payload of a profile-card message.
type ProfileSnapshot struct {
	Height       float64 `json:"height"`
	Weight       float64 `json:"weight"`
	RunningLevel string  `json:"running_level"`
	Goal         string  `json:"goal"`
}

// RunRecordSnapshot is the payload of an exercise-record message.
type RunRecordSnapshot struct {
	Distance  float64   `json:"distance"`
	Calories  float64   `json:"calories"`
	Steps     int       `json:"steps"`
	MinHeart  int       `json:"min_heart_rate"`
	MaxHeart  int       `json:"max_heart_rate"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

// Message is one entry in a session's chat log. Messages are immutable
// except for the one-way archived transition, which clears content but
// keeps id, author and timestamp so ordering and avatars still render.
type Message struct {
	ID        string             `json:"id"`
	SessionID string             `json:"session_id"`
	AuthorID  string             `json:"author_id"`
	Kind      string             `json:"kind"`
	Text      string             `json:"text,omitempty"`
	Profile   *ProfileSnapshot   `json:"profile,omitempty"`
	RunRecord *RunRecordSnapshot `json:"run_record,omitempty"`
	ImageURL  string             `json:"image_url,omitempty"`
	Archived  bool               `json:"archived,omitempty"`
	SentAt    time.Time          `json:"sent_at"`
}

// Archive clears the renderable content in place. Identity fields are
// kept so the entry still sorts and attributes correctly.
func (m *Message) Archive() {
	m.Text = ""
	m.Profile = nil
	m.RunRecord = nil
	m.ImageURL = ""
	m.Archived = true
}

// TypingSignal is the ephemeral "peer is typing" ping. Never persisted;
// a signal older than the expiry window is treated as false.
type TypingSignal struct {
	SessionID  string    `json:"session_id"`
	UserID     string    `json:"user_id"`
	UserName   string    `json:"user"`
	ReceivedAt time.Time `json:"-"`
}

// Credentials is the locally persisted auth session.
type Credentials struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	Token       string    `json:"token"`
	SavedAt     time.Time `json:"saved_at"`
}
