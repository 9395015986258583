package progress

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTracker_Update(t *testing.T) {
	tracker := NewTracker("test-pool", nil)
	tracker.Update(Delta{Submitted: 1, Queued: 1})
	tracker.Update(Delta{Queued: -1, Running: 1})
	tracker.Update(Delta{Running: -1, Completed: 1})

	stats := tracker.Snapshot()
	assert.Equal(t, "test-pool", stats.PoolName)
	assert.Equal(t, 1, stats.Submitted)
	assert.Equal(t, 0, stats.Queued)
	assert.Equal(t, 0, stats.Running)
	assert.Equal(t, 1, stats.Completed)
}

func TestTracker_OnChange(t *testing.T) {
	var mu sync.Mutex
	var observed []int
	tracker := NewTracker("p", func(s Stats) {
		mu.Lock()
		observed = append(observed, s.Submitted)
		mu.Unlock()
	})

	tracker.Update(Delta{Submitted: 1})
	tracker.Update(Delta{Submitted: 1})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2}, observed)
}

func TestTracker_Context(t *testing.T) {
	tracker := NewTracker("p", nil)
	ctx := WithTracker(context.Background(), tracker)

	UpdateCtx(ctx, Delta{Failed: 1})
	stats, ok := GetSnapshot(ctx)
	assert.True(t, ok)
	assert.Equal(t, 1, stats.Failed)

	// A context without a tracker is a no-op.
	UpdateCtx(context.Background(), Delta{Failed: 1})
	_, ok = GetSnapshot(context.Background())
	assert.False(t, ok)
}

func TestTracker_NilSafe(t *testing.T) {
	var tracker *Tracker
	tracker.Update(Delta{Submitted: 1})
	tracker.OnChange(nil)
	assert.Equal(t, Stats{}, tracker.Snapshot())
}
