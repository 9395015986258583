package dispatch

import "errors"

// ErrQueueFull is returned synchronously when the backlog has reached the
// configured cap.  It is the pool's explicit backpressure signal.
var ErrQueueFull = errors.New("dispatch: queue full")
