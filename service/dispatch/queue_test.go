package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/viant/taskpool/model/task"
)

func TestQueue_FIFOOrder(t *testing.T) {
	q := NewQueue(10)
	first := task.New("a")
	second := task.New("b")
	third := task.New("c")

	assert.NoError(t, q.Enqueue(first))
	assert.NoError(t, q.Enqueue(second))
	assert.NoError(t, q.Enqueue(third))

	assert.Equal(t, "a", q.Dequeue().Payload)
	assert.Equal(t, "b", q.Dequeue().Payload)
	assert.Equal(t, "c", q.Dequeue().Payload)
	assert.Nil(t, q.Dequeue())
}

func TestQueue_PriorityOrder(t *testing.T) {
	q := NewQueue(10)
	low := task.New("low", task.WithPriority(1))
	high := task.New("high", task.WithPriority(5))
	tieA := task.New("tieA", task.WithPriority(3))
	tieB := task.New("tieB", task.WithPriority(3))

	for _, item := range []*task.Task{low, tieA, high, tieB} {
		assert.NoError(t, q.Enqueue(item))
	}

	assert.Equal(t, "high", q.Dequeue().Payload)
	// Equal priority keeps submission order.
	assert.Equal(t, "tieA", q.Dequeue().Payload)
	assert.Equal(t, "tieB", q.Dequeue().Payload)
	assert.Equal(t, "low", q.Dequeue().Payload)
}

func TestQueue_RequeueKeepsPlace(t *testing.T) {
	q := NewQueue(10)
	first := task.New("first", task.WithPriority(3))
	second := task.New("second", task.WithPriority(3))

	assert.NoError(t, q.Enqueue(first))
	assert.NoError(t, q.Enqueue(second))

	// A descriptor put back after a failed handoff stays ahead of the
	// same-priority peer that was submitted after it.
	taken := q.Dequeue()
	assert.Equal(t, "first", taken.Payload)
	assert.NoError(t, q.Enqueue(taken))

	assert.Equal(t, "first", q.Dequeue().Payload)
	assert.Equal(t, "second", q.Dequeue().Payload)
}

func TestQueue_Bounded(t *testing.T) {
	q := NewQueue(2)
	assert.NoError(t, q.Enqueue(task.New(1)))
	assert.NoError(t, q.Enqueue(task.New(2)))
	assert.ErrorIs(t, q.Enqueue(task.New(3)), ErrQueueFull)

	// Draining one entry frees capacity again.
	assert.NotNil(t, q.Dequeue())
	assert.NoError(t, q.Enqueue(task.New(4)))
}

func TestQueue_Remove(t *testing.T) {
	q := NewQueue(10)
	keep := task.New("keep")
	cancel := task.New("cancel")
	assert.NoError(t, q.Enqueue(keep))
	assert.NoError(t, q.Enqueue(cancel))

	assert.True(t, q.Remove(cancel.ID))
	assert.False(t, q.Remove(cancel.ID))
	assert.Equal(t, 1, q.Len())

	assert.Equal(t, "keep", q.Dequeue().Payload)
	assert.Nil(t, q.Dequeue())
}

func TestQueue_Drain(t *testing.T) {
	q := NewQueue(10)
	assert.NoError(t, q.Enqueue(task.New(1)))
	assert.NoError(t, q.Enqueue(task.New(2)))
	removed := task.New(3)
	assert.NoError(t, q.Enqueue(removed))
	q.Remove(removed.ID)

	drained := q.Drain()
	assert.Len(t, drained, 2)
	assert.Equal(t, 0, q.Len())
}
