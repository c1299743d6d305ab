package mc

import "errors"

var (
	// ErrInvalidArgument reports an out-of-range input. It is never retried.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrDomain reports a statistic or payoff outside its defined domain.
	ErrDomain = errors.New("domain error")
	// ErrBackend reports a failed or unavailable compute backend.
	ErrBackend = errors.New("backend error")
)
