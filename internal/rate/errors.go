package rate

import "errors"

var (
	// ErrRateLimited is returned when a client exceeded its budget for the current window.
	ErrRateLimited = errors.New("rate limited")
	// ErrStoreUnavailable wraps counter store failures when the limiter fails closed.
	ErrStoreUnavailable = errors.New("rate limit store unavailable")
)
