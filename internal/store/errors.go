package store

import "errors"

var (
	ErrMissingPath   = errors.New("store path is required")
	ErrStoreClosed   = errors.New("store is closed")
	ErrNoCredentials = errors.New("no saved credentials")
	ErrNoCachedEntry = errors.New("no cached entry")
)
