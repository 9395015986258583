package coordinator

import "errors"

var (
	// ErrPoolShuttingDown rejects submissions made after shutdown began.
	ErrPoolShuttingDown = errors.New("coordinator: pool shutting down")

	// ErrPoolClosed rejects queued, not-yet-started work during graceful
	// shutdown.
	ErrPoolClosed = errors.New("coordinator: pool closed")

	// ErrAborted rejects every outstanding handle during forced shutdown.
	ErrAborted = errors.New("coordinator: pool aborted")
)
