package types

import (
	"regexp"
)

var userIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// IsValidUserID checks if a user ID meets format requirements.
func IsValidUserID(userID string) bool {
	if len(userID) < 1 || len(userID) > 50 {
		return false
	}
	return userIDRegex.MatchString(userID)
}

// IsValidMessageKind checks if the kind is one of the known variants.
func IsValidMessageKind(kind string) bool {
	switch kind {
	case MessageKindText,
		MessageKindRecommendation,
		MessageKindProfile,
		MessageKindRunRecord:
		return true
	default:
		return false
	}
}

// Validate ensures a message carries the fields its variant requires.
// An archived message passes with empty content since archival clears it.
func (m *Message) Validate() error {
	if m.ID == "" {
		return ErrMissingMessageID
	}
	if m.SessionID == "" {
		return ErrMissingSessionID
	}
	if !IsValidUserID(m.AuthorID) {
		return ErrInvalidAuthorID
	}
	if !IsValidMessageKind(m.Kind) {
		return ErrInvalidMessageKind
	}
	if m.Archived {
		return nil
	}
	switch m.Kind {
	case MessageKindText, MessageKindRecommendation:
		if m.Text == "" && m.ImageURL == "" {
			return ErrEmptyMessageBody
		}
	case MessageKindProfile:
		if m.Profile == nil {
			return ErrEmptyMessageBody
		}
	case MessageKindRunRecord:
		if m.RunRecord == nil {
			return ErrEmptyMessageBody
		}
	}
	return nil
}

// Validate ensures the session has both participants and a known status.
func (s *ChatSession) Validate() error {
	if s.ID == "" {
		return ErrMissingSessionID
	}
	if !IsValidUserID(s.RunnerID) || !IsValidUserID(s.ExpertID) {
		return ErrInvalidParticipant
	}
	if s.Status != SessionStatusActive && s.Status != SessionStatusArchived {
		return ErrInvalidSessionStatus
	}
	return nil
}
