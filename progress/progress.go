// Package progress provides a lightweight tracker that keeps aggregated pool
// counters (tasks submitted, completed, failed, …) for a single pool.  The
// tracker instance lives in the submission context – every component that
// receives the context can atomically update the counters via the Delta
// helper without requiring a global registry.

package progress

import (
	"context"
	"sync"
	"time"
)

// Delta represents an incremental counter change emitted by the coordinator
// or its slots.  The fields are signed and therefore can be either positive
// (increment) or negative (decrement).
type Delta struct {
	Submitted int
	Queued    int
	Running   int
	Completed int
	Failed    int
	Rejected  int
	Capacity  int
}

// Stats is a read-only copy of the tracker counters.
type Stats struct {
	// Informative only, filled when the pool starts.
	PoolName  string
	StartedAt time.Time

	Submitted int
	Queued    int
	Running   int
	Completed int
	Failed    int
	Rejected  int
	Capacity  int
}

// Tracker keeps aggregated task counters for one pool.  It is safe for
// concurrent use.
type Tracker struct {
	mu       sync.Mutex
	stats    Stats
	onChange func(Stats)
}

// NewTracker creates a tracker for the named pool.
func NewTracker(poolName string, onChange func(Stats)) *Tracker {
	return &Tracker{
		stats:    Stats{PoolName: poolName, StartedAt: time.Now()},
		onChange: onChange,
	}
}

// Update applies the supplied delta to the tracker.  It is safe to call from
// multiple goroutines.  A registered onChange callback is invoked with a copy
// of the updated counters outside the critical section so that the callback
// can perform slow operations (e.g. JSON encoding, I/O) without blocking the
// coordinator.
func (t *Tracker) Update(d Delta) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.stats.Submitted += d.Submitted
	t.stats.Queued += d.Queued
	t.stats.Running += d.Running
	t.stats.Completed += d.Completed
	t.stats.Failed += d.Failed
	t.stats.Rejected += d.Rejected
	t.stats.Capacity += d.Capacity
	snapshot := t.stats
	cb := t.onChange
	t.mu.Unlock()

	if cb != nil {
		cb(snapshot)
	}
}

// Snapshot returns a copy of the counters suitable for read-only inspection.
func (t *Tracker) Snapshot() Stats {
	if t == nil {
		return Stats{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

// OnChange registers a callback invoked after every Update.  Passing nil
// disables the callback.  Only one callback can be active; subsequent calls
// overwrite the previous value.
func (t *Tracker) OnChange(cb func(Stats)) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.onChange = cb
	t.mu.Unlock()
}

type trackerKeyT struct{}

var trackerKey trackerKeyT

// WithTracker embeds the tracker in a derived context.
func WithTracker(ctx context.Context, t *Tracker) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, trackerKey, t)
}

// FromContext extracts the tracker from ctx.  The second return value is
// false when the context carries no tracker.
func FromContext(ctx context.Context) (*Tracker, bool) {
	if ctx == nil {
		return nil, false
	}
	tr, ok := ctx.Value(trackerKey).(*Tracker)
	return tr, ok
}

// GetSnapshot combines FromContext and Snapshot.  The boolean return value is
// false when the context does not carry a tracker.
func GetSnapshot(ctx context.Context) (Stats, bool) {
	if tr, ok := FromContext(ctx); ok {
		return tr.Snapshot(), true
	}
	return Stats{}, false
}

// UpdateCtx looks up the tracker in ctx (if any) and applies the delta.
func UpdateCtx(ctx context.Context, d Delta) {
	if tr, ok := FromContext(ctx); ok {
		tr.Update(d)
	}
}
