package dispatch

import (
	"container/heap"
	"sync"

	"github.com/viant/taskpool/model/task"
)

// DefaultMaxLength caps the backlog when the caller does not configure one.
const DefaultMaxLength = 1024

// Queue is a bounded, priority-ordered backlog of task descriptors.  Higher
// priority dequeues first; ties keep submission order (stable FIFO).  All
// methods are safe for concurrent use, although dequeue is only ever invoked
// by the pool coordinator.
type Queue struct {
	mu        sync.Mutex
	items     pending
	byID      map[string]*item
	maxLength int
	seq       uint64
}

// NewQueue creates a queue bounded at maxLength entries; non-positive values
// fall back to DefaultMaxLength.
func NewQueue(maxLength int) *Queue {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	return &Queue{
		byID:      make(map[string]*item),
		maxLength: maxLength,
	}
}

// Enqueue appends the descriptor to the backlog, assigning its submission
// sequence on first entry.  A descriptor re-enqueued after a failed handoff
// keeps its original sequence so it does not fall behind same-priority peers.
// Returns ErrQueueFull once the backlog is at capacity.
func (q *Queue) Enqueue(t *task.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.byID) >= q.maxLength {
		return ErrQueueFull
	}
	if t.Seq == 0 {
		q.seq++
		t.Seq = q.seq
	}
	entry := &item{task: t}
	heap.Push(&q.items, entry)
	q.byID[t.ID] = entry
	return nil
}

// Dequeue removes and returns the highest-priority descriptor, or nil when
// the backlog is empty.
func (q *Queue) Dequeue() *task.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.items.Len() > 0 {
		entry := heap.Pop(&q.items).(*item)
		if entry.removed {
			continue
		}
		delete(q.byID, entry.task.ID)
		return entry.task
	}
	return nil
}

// Remove discards a queued descriptor before dispatch, guaranteeing it never
// executes.  Returns false when the id is unknown (already dispatched or
// never queued).
func (q *Queue) Remove(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	entry, ok := q.byID[id]
	if !ok {
		return false
	}
	// Lazy removal: the entry stays in the heap but is skipped on Dequeue.
	entry.removed = true
	delete(q.byID, id)
	return true
}

// Drain empties the backlog and returns all still-pending descriptors, used
// by graceful shutdown to reject not-yet-started work.
func (q *Queue) Drain() []*task.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	var drained []*task.Task
	for q.items.Len() > 0 {
		entry := heap.Pop(&q.items).(*item)
		if entry.removed {
			continue
		}
		delete(q.byID, entry.task.ID)
		drained = append(drained, entry.task)
	}
	return drained
}

// Len returns the number of live entries in the backlog.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.byID)
}

type item struct {
	task    *task.Task
	removed bool
	index   int
}

type pending []*item

func (p pending) Len() int { return len(p) }

func (p pending) Less(i, j int) bool {
	if p[i].task.Priority != p[j].task.Priority {
		return p[i].task.Priority > p[j].task.Priority
	}
	return p[i].task.Seq < p[j].task.Seq
}

func (p pending) Swap(i, j int) {
	p[i], p[j] = p[j], p[i]
	p[i].index = i
	p[j].index = j
}

func (p *pending) Push(x interface{}) {
	entry := x.(*item)
	entry.index = len(*p)
	*p = append(*p, entry)
}

func (p *pending) Pop() interface{} {
	old := *p
	n := len(old)
	entry := old[n-1]
	old[n-1] = nil
	*p = old[:n-1]
	return entry
}
