// Package dispatch holds the ordered backlog of task descriptors waiting for
// a free worker slot.  The queue is bounded: once the backlog reaches the
// configured cap, Enqueue fails fast with ErrQueueFull so that callers handle
// backpressure instead of the pool growing unbounded.
package dispatch
