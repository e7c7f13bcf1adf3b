package fetch

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
)

var (
	// ErrFetch is the kind shared by every fetch failure.
	ErrFetch = errors.New("fetch failed")
	// ErrBodyTooLarge marks a source response over the read cap.
	ErrBodyTooLarge = errors.New("source body too large")
)

// FetchError describes a failed attempt to obtain leaderboard text.
type FetchError struct {
	Competition string
	Stderr      string // trimmed tail of the command's stderr, if any
	Err         error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetch leaderboard %q: %v", e.Competition, e.Err)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// Unwrap exposes both ErrFetch and the underlying cause.
func (e *FetchError) Unwrap() []error {
	return []error{ErrFetch, e.Err}
}

// Timeout reports whether the fetch ran out of time.
func (e *FetchError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

func reason(err error) string {
	var exitErr *exec.ExitError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.As(err, &exitErr):
		return "exit"
	default:
		return "unavailable"
	}
}
