package broker

import "errors"

var (
	// ErrTimeout rejects a handle whose per-task deadline elapsed before the
	// slot responded.
	ErrTimeout = errors.New("broker: task deadline exceeded")

	// ErrCancelled rejects a handle cancelled by its caller.
	ErrCancelled = errors.New("broker: task cancelled")
)
