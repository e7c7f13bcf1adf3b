package repository

import "errors"

// Sentinel kinds for cache store errors.
var (
	ErrNotFound      = errors.New("competition not cached")
	ErrInvalidRecord = errors.New("invalid standings record")
)
