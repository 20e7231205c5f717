package transport

import "errors"

var (
	ErrMissingBaseURL  = errors.New("channel base URL is not configured")
	ErrNotConnected    = errors.New("channel is not connected")
	ErrWriteBufferFull = errors.New("channel write buffer full")
	ErrConnectFailed   = errors.New("channel connection failed")
)
