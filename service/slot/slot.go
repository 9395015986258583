package slot

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/viant/taskpool/internal/clock"
	"github.com/viant/taskpool/model/task"
	"github.com/viant/taskpool/tracing"
)

// Executor runs one task body and returns its output.  It is registered once
// at slot creation and has no access to coordinator state.
type Executor func(ctx context.Context, t *task.Task) (interface{}, error)

// State represents the lifecycle state of a slot.
type State int32

const (
	StateIdle State = iota
	StateBusy
	StateTerminating
	StateDead
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBusy:
		return "busy"
	case StateTerminating:
		return "terminating"
	case StateDead:
		return "dead"
	}
	return "unknown"
}

// Slot runs tasks on its own goroutine.  The entry point is registered once
// at creation and never changes for the slot's lifetime.
type Slot struct {
	id      int
	execute Executor

	tasks   chan *task.Task
	results chan<- *task.Result

	state   atomic.Int32
	current atomic.Value
	faulted atomic.Bool

	ctx      context.Context
	cancelFn context.CancelFunc

	taskMu     sync.Mutex
	taskCancel context.CancelFunc

	done chan struct{}
}

// New creates a slot posting results to the shared outbound channel.
func New(id int, execute Executor, results chan<- *task.Result) *Slot {
	s := &Slot{
		id:      id,
		execute: execute,
		tasks:   make(chan *task.Task, 1),
		results: results,
		done:    make(chan struct{}),
	}
	s.current.Store("")
	return s
}

// ID returns the slot identifier.
func (s *Slot) ID() int {
	return s.id
}

// State returns the current lifecycle state.
func (s *Slot) State() State {
	return State(s.state.Load())
}

// CurrentTaskID returns the id of the in-flight task, empty when idle.
func (s *Slot) CurrentTaskID() string {
	return s.current.Load().(string)
}

// Faulted reports whether the slot died from a trapped panic.
func (s *Slot) Faulted() bool {
	return s.faulted.Load()
}

// Done is closed when the slot's goroutine has exited.
func (s *Slot) Done() <-chan struct{} {
	return s.done
}

// Start launches the slot goroutine.
func (s *Slot) Start(ctx context.Context) {
	s.ctx, s.cancelFn = context.WithCancel(ctx)
	go s.run()
}

// Assign hands a task to an idle slot.  The coordinator must only call this
// for slots it observed as idle; a busy or terminated slot rejects the task.
func (s *Slot) Assign(t *task.Task) error {
	switch s.State() {
	case StateTerminating, StateDead:
		return ErrTerminated
	case StateBusy:
		return ErrBusy
	}
	select {
	case s.tasks <- t:
		return nil
	default:
		return ErrBusy
	}
}

// Terminate stops the slot.  An in-flight task is signalled to stop
// (best-effort); the goroutine exits once the current execution returns.
func (s *Slot) Terminate() {
	state := State(s.state.Load())
	if state != StateDead {
		s.state.Store(int32(StateTerminating))
	}
	s.CancelTask(s.CurrentTaskID())
	if s.cancelFn != nil {
		s.cancelFn()
	}
}

// CancelTask signals the in-flight task identified by taskID to stop.  The
// signal is cooperative: the entry point observes it through its context.
func (s *Slot) CancelTask(taskID string) bool {
	if taskID == "" || s.CurrentTaskID() != taskID {
		return false
	}
	s.taskMu.Lock()
	defer s.taskMu.Unlock()
	if s.taskCancel != nil {
		s.taskCancel()
		return true
	}
	return false
}

func (s *Slot) run() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			if State(s.state.Load()) != StateDead {
				s.state.Store(int32(StateDead))
			}
			return
		case t := <-s.tasks:
			s.state.Store(int32(StateBusy))
			s.current.Store(t.ID)

			result := s.runTask(t)

			s.current.Store("")
			s.post(result)

			if s.faulted.Load() {
				s.state.Store(int32(StateDead))
				return
			}
			if State(s.state.Load()) == StateTerminating {
				s.state.Store(int32(StateDead))
				return
			}
			s.state.Store(int32(StateIdle))
		}
	}
}

// runTask runs the entry point, trapping panics so a crashing task kills the
// slot but never the process.
func (s *Slot) runTask(t *task.Task) (result *task.Result) {
	result = &task.Result{
		TaskID:    t.ID,
		SlotID:    s.id,
		StartedAt: clock.Now(),
	}

	taskCtx, cancel := context.WithCancel(s.ctx)
	s.taskMu.Lock()
	s.taskCancel = cancel
	s.taskMu.Unlock()
	defer func() {
		s.taskMu.Lock()
		s.taskCancel = nil
		s.taskMu.Unlock()
		cancel()
	}()

	taskCtx, span := tracing.StartSpan(taskCtx, fmt.Sprintf("slot.execute %s", t.ID), "CONSUMER")
	span.WithAttributes(map[string]string{"task.id": t.ID, "task.kind": t.Kind})

	defer func() {
		if r := recover(); r != nil {
			cause, ok := r.(error)
			if !ok {
				cause = fmt.Errorf("%v", r)
			}
			s.faulted.Store(true)
			result.Status = task.StatusError
			result.Err = &FaultError{SlotID: s.id, TaskID: t.ID, Cause: cause}
			result.FinishedAt = clock.Now()
			tracing.EndSpan(span, result.Err)
		}
	}()

	output, err := s.execute(taskCtx, t)
	result.FinishedAt = clock.Now()
	if err != nil {
		result.Status = task.StatusError
		result.Err = task.NewError(t.ID, err)
	} else {
		result.Status = task.StatusOk
		result.Output = output
	}
	tracing.EndSpan(span, err)
	return result
}

func (s *Slot) post(result *task.Result) {
	select {
	case s.results <- result:
	case <-s.ctx.Done():
	}
}
