package chat

import "errors"

var (
	ErrAlreadyJoined   = errors.New("session already joined")
	ErrNotJoined       = errors.New("session not joined")
	ErrNotMounted      = errors.New("chat screen is not mounted")
	ErrAlreadyMounted  = errors.New("chat screen is already mounted")
	ErrUnknownMessage  = errors.New("message not present in log")
	ErrArchiveRejected = errors.New("server rejected the archive request")
)
