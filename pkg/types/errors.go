package types

import "errors"

var (
	ErrMissingMessageID     = errors.New("message ID cannot be empty")
	ErrMissingSessionID     = errors.New("session ID cannot be empty")
	ErrInvalidAuthorID      = errors.New("author ID must be 1-50 characters, alphanumeric + underscore/hyphen only")
	ErrInvalidMessageKind   = errors.New("unknown message kind")
	ErrEmptyMessageBody     = errors.New("message body is empty for its kind")
	ErrInvalidParticipant   = errors.New("participant IDs must be valid user IDs")
	ErrInvalidSessionStatus = errors.New("session status must be active or archived")
)
