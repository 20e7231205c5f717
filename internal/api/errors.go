package api

import "errors"

var (
	ErrMissingBaseURL = errors.New("api base URL is required")
	ErrUnauthorized   = errors.New("authentication required or token expired")
	ErrNotFound       = errors.New("resource not found")
	ErrRequestFailed  = errors.New("request failed")
)
