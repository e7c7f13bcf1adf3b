package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotStarted         = errors.New("service not started")
	ErrInvalidCompetition = errors.New("invalid competition identifier")
)
