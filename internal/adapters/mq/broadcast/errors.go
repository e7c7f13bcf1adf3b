package broadcast

import "errors"

// Sentinel kinds for broadcast errors.
var (
	ErrHubClosed = errors.New("broadcast hub closed")
)
