package broker

import (
	"context"
	"sync"
)

// Handle is the caller-side view of a pending request.  It is returned
// synchronously by submit and fulfilled asynchronously by the broker; the
// only suspension point is the caller's own Wait.
type Handle struct {
	taskID string

	once   sync.Once
	done   chan struct{}
	output interface{}
	err    error

	cancelFn func(taskID string)
}

// TaskID returns the id of the task this handle tracks.
func (h *Handle) TaskID() string {
	return h.taskID
}

// Done is closed once the handle is resolved or rejected.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the handle completes or ctx is done.  A ctx expiry does
// not resolve the handle; the request stays pending.
func (h *Handle) Wait(ctx context.Context) (interface{}, error) {
	select {
	case <-h.done:
		return h.output, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel requests cancellation: a still-queued task never executes, an
// in-flight one is signalled best-effort.  The handle rejects with
// ErrCancelled either way.
func (h *Handle) Cancel() {
	if h.cancelFn != nil {
		h.cancelFn(h.taskID)
	}
}

// Err returns the rejection error once the handle completed, nil before.
func (h *Handle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

// NewHandle returns a standalone handle together with its completion
// function.  It bypasses the pending registry and serves lifecycle
// operations such as pool shutdown.
func NewHandle(taskID string) (*Handle, func(output interface{}, err error)) {
	h := &Handle{taskID: taskID, done: make(chan struct{})}
	return h, func(output interface{}, err error) {
		h.complete(output, err)
	}
}

func (h *Handle) complete(output interface{}, err error) bool {
	completed := false
	h.once.Do(func() {
		h.output = output
		h.err = err
		close(h.done)
		completed = true
	})
	return completed
}
