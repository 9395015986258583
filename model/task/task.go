// Package task defines the descriptor exchanged between the pool coordinator
// and worker slots.  A descriptor is immutable once submitted: the dispatch
// queue owns it until a slot claims it, then the slot owns it for the task's
// duration.
package task

import (
	"time"

	"github.com/viant/taskpool/internal/clock"
	"github.com/viant/taskpool/internal/idgen"
	"github.com/viant/taskpool/model/buffer"
)

// Task describes one unit of CPU-bound work.
type Task struct {
	// ID uniquely identifies the task; generated at submission time.
	ID string

	// Kind optionally routes the task to a registered handler.
	Kind string

	// Payload is the opaque input handed to the worker entry point.
	Payload interface{}

	// Priority orders dequeuing; higher runs first, ties keep submission
	// order.
	Priority int

	// Seq is the submission sequence number used as the priority tie-break.
	Seq uint64

	// Buffers holds regions transferred to (or shared with) the slot.
	Buffers []*buffer.Handle

	// Deadline, when set, bounds how long the caller waits for a result.
	Deadline *time.Time

	SubmittedAt time.Time
}

// New creates a descriptor with a generated id and submission timestamp.
func New(payload interface{}, options ...Option) *Task {
	t := &Task{
		ID:          idgen.New(),
		Payload:     payload,
		SubmittedAt: clock.Now(),
	}
	for _, opt := range options {
		opt(t)
	}
	return t
}

// Option customises a descriptor at submission time.
type Option func(*Task)

// WithKind routes the task to the handler registered under the given kind.
func WithKind(kind string) Option {
	return func(t *Task) { t.Kind = kind }
}

// WithPriority sets the queue ordering key; higher values dequeue first.
func WithPriority(priority int) Option {
	return func(t *Task) { t.Priority = priority }
}

// WithDeadline bounds the caller's wait; an elapsed deadline rejects the
// handle with the broker's timeout error.
func WithDeadline(deadline time.Time) Option {
	return func(t *Task) { t.Deadline = &deadline }
}

// WithTimeout is a convenience form of WithDeadline relative to now.
func WithTimeout(timeout time.Duration) Option {
	return func(t *Task) {
		deadline := clock.Now().Add(timeout)
		t.Deadline = &deadline
	}
}

// WithTransfer moves ownership of the supplied buffers into the task.  The
// caller's handles are detached immediately; reading them afterwards fails
// with buffer.ErrDetached.
func WithTransfer(handles ...*buffer.Handle) Option {
	return func(t *Task) {
		for _, h := range handles {
			moved, err := h.Transfer()
			if err != nil {
				// Already detached handles carry no data; attach the
				// detached handle so the slot sees the same failure.
				t.Buffers = append(t.Buffers, h)
				continue
			}
			t.Buffers = append(t.Buffers, moved)
		}
	}
}

// WithShared attaches buffers with shared semantics: both the caller and the
// slot retain access, and concurrent-write safety is the caller's contract.
func WithShared(handles ...*buffer.Handle) Option {
	return func(t *Task) {
		for _, h := range handles {
			shared, err := h.Share()
			if err != nil {
				t.Buffers = append(t.Buffers, h)
				continue
			}
			t.Buffers = append(t.Buffers, shared)
		}
	}
}
