package coordinator

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/viant/taskpool/extension"
	"github.com/viant/taskpool/internal/clock"
	"github.com/viant/taskpool/internal/idgen"
	"github.com/viant/taskpool/model/task"
	"github.com/viant/taskpool/policy"
	"github.com/viant/taskpool/progress"
	"github.com/viant/taskpool/service/broker"
	"github.com/viant/taskpool/service/dispatch"
	"github.com/viant/taskpool/service/event"
	"github.com/viant/taskpool/service/slot"
	"github.com/viant/taskpool/tracing"
)

// Config represents coordinator configuration.
type Config struct {
	// WorkerCount is the fixed number of slots, chosen at construction and
	// never resized at runtime.
	WorkerCount int

	// MaxQueueLength caps the dispatch backlog.
	MaxQueueLength int

	// RespawnOnFault replaces a dead slot with a fresh one; when false a
	// fault permanently reduces pool capacity.
	RespawnOnFault bool

	// DefaultTaskTimeout bounds tasks submitted without their own deadline;
	// zero disables the default.
	DefaultTaskTimeout time.Duration
}

// DefaultConfig returns the default coordinator configuration.
func DefaultConfig() Config {
	return Config{
		WorkerCount:    runtime.NumCPU(),
		MaxQueueLength: dispatch.DefaultMaxLength,
		RespawnOnFault: true,
	}
}

// Hooks are optional observability callbacks; any field may be nil.
type Hooks struct {
	OnTaskStart func(taskID string, slotID int)
	OnTaskEnd   func(result *task.Result)
	OnFault     func(slotID int, err error)
}

// Service coordinates the slots, the dispatch queue and the result broker.
type Service struct {
	config   Config
	handler  extension.Handler
	registry *extension.Registry

	queue        *dispatch.Queue
	broker       *broker.Service
	eventService *event.Service
	hooks        Hooks
	tracker      *progress.Tracker

	ctx      context.Context
	cancelFn context.CancelFunc

	mu         sync.Mutex
	slots      map[int]*slot.Slot
	inflight   map[string]int
	nextSlotID int
	capacity   int

	results chan *task.Result
	wake    chan struct{}
	events  chan func()

	shuttingDown   atomic.Bool
	shutdownOnce   sync.Once
	shutdownHandle *broker.Handle
	loopDone       chan struct{}
}

// New creates a coordinator service.
func New(options ...Option) (*Service, error) {
	s := &Service{
		config:   DefaultConfig(),
		slots:    make(map[int]*slot.Slot),
		inflight: make(map[string]int),
		wake:     make(chan struct{}, 1),
		loopDone: make(chan struct{}),
	}
	for _, opt := range options {
		opt(s)
	}
	if s.handler == nil && s.registry == nil {
		return nil, fmt.Errorf("worker entry point is required")
	}
	if s.config.WorkerCount <= 0 {
		return nil, fmt.Errorf("worker count must be positive")
	}
	if s.tracker == nil {
		s.tracker = progress.NewTracker("taskpool", nil)
	}
	s.queue = dispatch.NewQueue(s.config.MaxQueueLength)
	s.broker = broker.New(
		broker.WithTimeoutFunc(s.onTaskTimeout),
		broker.WithCancelFunc(s.cancelTask),
	)
	s.results = make(chan *task.Result, s.config.WorkerCount*2)
	if s.eventService != nil {
		s.events = make(chan func(), 256)
	}
	return s, nil
}

// Start spawns the slots and the dispatch loop.
func (s *Service) Start(ctx context.Context) error {
	s.ctx, s.cancelFn = context.WithCancel(ctx)
	for i := 0; i < s.config.WorkerCount; i++ {
		s.spawnSlot()
	}
	s.tracker.Update(progress.Delta{Capacity: s.config.WorkerCount})
	if s.events != nil {
		go s.publishLoop()
	}
	go s.run()
	return nil
}

// Submit enqueues the payload, or dispatches it immediately when a slot is
// idle, and returns the caller's handle without ever blocking.  Lifecycle,
// capacity and policy errors reject synchronously; execution errors reject
// the handle asynchronously.
func (s *Service) Submit(ctx context.Context, payload interface{}, options ...task.Option) (handle *broker.Handle, err error) {
	if s.shuttingDown.Load() {
		return nil, ErrPoolShuttingDown
	}

	t := task.New(payload, options...)
	if t.Deadline == nil && s.config.DefaultTaskTimeout > 0 {
		deadline := clock.Now().Add(s.config.DefaultTaskTimeout)
		t.Deadline = &deadline
	}

	if p := policy.FromContext(ctx); p != nil {
		if err = p.Admit(ctx, t.Kind, t.Payload); err != nil {
			s.tracker.Update(progress.Delta{Rejected: 1})
			return nil, err
		}
	}
	// An unknown kind is a caller mistake; surface it synchronously rather
	// than on the handle.
	if t.Kind != "" && s.registry != nil {
		if _, err = s.registry.Handler(t.Kind); err != nil {
			return nil, err
		}
	}

	_, span := tracing.StartSpan(ctx, "pool.submit", "PRODUCER")
	span.WithAttributes(map[string]string{"task.id": t.ID, "task.kind": t.Kind})
	defer func() { tracing.EndSpan(span, err) }()

	handle = s.broker.Register(t)
	if err = s.queue.Enqueue(t); err != nil {
		s.broker.Discard(t.ID)
		s.tracker.Update(progress.Delta{Rejected: 1})
		return nil, err
	}
	// Shutdown may have started between the entry check and the enqueue; the
	// shutdown sweep only covers tasks it observed, so re-check and withdraw
	// the task ourselves when we still can.
	if s.shuttingDown.Load() {
		if s.queue.Remove(t.ID) {
			s.broker.Discard(t.ID)
			return nil, ErrPoolShuttingDown
		}
	}
	s.tracker.Update(progress.Delta{Submitted: 1, Queued: 1})
	s.notify()
	return handle, nil
}

// Shutdown stops the pool.  Graceful shutdown lets in-flight tasks finish
// and rejects queued work with ErrPoolClosed; forced shutdown terminates the
// slots and rejects every outstanding handle with ErrAborted.  The returned
// handle resolves once the pool is fully drained or terminated; repeated
// calls return the same handle.
func (s *Service) Shutdown(graceful bool) *broker.Handle {
	s.shutdownOnce.Do(func() {
		s.shuttingDown.Store(true)
		handle, complete := broker.NewHandle("shutdown-" + idgen.Short())
		s.shutdownHandle = handle
		go s.shutdown(graceful, complete)
	})
	return s.shutdownHandle
}

// Stats returns a snapshot of the pool counters.
func (s *Service) Stats() progress.Stats {
	return s.tracker.Snapshot()
}

// Capacity returns the number of live slots.
func (s *Service) Capacity() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capacity
}

// QueueLen returns the current backlog length.
func (s *Service) QueueLen() int {
	return s.queue.Len()
}

func (s *Service) run() {
	defer close(s.loopDone)
	for {
		select {
		case <-s.ctx.Done():
			return
		case result := <-s.results:
			s.handleResult(result)
			s.dispatch()
		case <-s.wake:
			s.dispatch()
		}
	}
}

// dispatch matches queued tasks to idle slots until either runs out.
func (s *Service) dispatch() {
	for {
		target := s.idleSlot()
		if target == nil {
			return
		}
		t := s.queue.Dequeue()
		if t == nil {
			return
		}
		// A task that timed out while queued has no pending request left;
		// executing it would waste the slot.
		if s.broker.IsStale(t.ID) {
			s.tracker.Update(progress.Delta{Queued: -1})
			continue
		}
		if err := target.Assign(t); err != nil {
			// The slot went away between selection and assignment; put the
			// task back and try another slot.
			if qErr := s.queue.Enqueue(t); qErr != nil {
				s.broker.Reject(t.ID, qErr)
				s.tracker.Update(progress.Delta{Queued: -1, Failed: 1})
			}
			continue
		}
		s.mu.Lock()
		s.inflight[t.ID] = target.ID()
		s.mu.Unlock()
		s.tracker.Update(progress.Delta{Queued: -1, Running: 1})

		if s.hooks.OnTaskStart != nil {
			s.hooks.OnTaskStart(t.ID, target.ID())
		}
		s.publishTaskEvent(event.TypeTaskStarted, t, target.ID())
	}
}

func (s *Service) idleSlot() *slot.Slot {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sl := range s.slots {
		if sl.State() == slot.StateIdle {
			return sl
		}
	}
	return nil
}

func (s *Service) handleResult(result *task.Result) {
	s.mu.Lock()
	_, wasInflight := s.inflight[result.TaskID]
	delete(s.inflight, result.TaskID)
	faultedSlot := s.slots[result.SlotID]
	s.mu.Unlock()

	delta := progress.Delta{}
	if wasInflight {
		delta.Running = -1
	}

	if result.Status == task.StatusOk {
		if s.broker.Resolve(result.TaskID, result.Output) {
			delta.Completed = 1
			s.publishResultEvent(event.TypeTaskCompleted, result)
		}
	} else {
		if s.broker.Reject(result.TaskID, result.Err) {
			delta.Failed = 1
			s.publishResultEvent(event.TypeTaskFailed, result)
		}
	}
	s.tracker.Update(delta)

	if s.hooks.OnTaskEnd != nil {
		s.hooks.OnTaskEnd(result)
	}

	if slot.IsFault(result.Err) {
		if s.hooks.OnFault != nil {
			s.hooks.OnFault(result.SlotID, result.Err)
		}
		s.publishResultEvent(event.TypeSlotFault, result)
		s.replaceSlot(faultedSlot)
	}
}

// onTaskTimeout runs after the broker rejected a deadline-expired request.
// A still-queued task is simply removed; an unresponsive slot is treated as
// faulted and forcibly terminated.
func (s *Service) onTaskTimeout(taskID string) {
	if s.queue.Remove(taskID) {
		s.tracker.Update(progress.Delta{Queued: -1, Failed: 1})
		return
	}
	s.mu.Lock()
	slotID, ok := s.inflight[taskID]
	if ok {
		delete(s.inflight, taskID)
	}
	unresponsive := s.slots[slotID]
	s.mu.Unlock()
	if !ok {
		return
	}
	s.tracker.Update(progress.Delta{Running: -1, Failed: 1})
	if s.hooks.OnFault != nil && unresponsive != nil {
		s.hooks.OnFault(unresponsive.ID(), broker.ErrTimeout)
	}
	s.replaceSlot(unresponsive)
	s.notify()
}

// cancelTask implements Handle.Cancel: a queued task never executes, an
// in-flight one is signalled best-effort.  The handle rejects with
// ErrCancelled either way; a late slot message is dropped by the broker.
func (s *Service) cancelTask(taskID string) {
	if s.queue.Remove(taskID) {
		s.broker.Cancel(taskID)
		s.tracker.Update(progress.Delta{Queued: -1, Rejected: 1})
		return
	}
	s.mu.Lock()
	slotID, ok := s.inflight[taskID]
	running := s.slots[slotID]
	s.mu.Unlock()
	if ok && running != nil {
		running.CancelTask(taskID)
	}
	if s.broker.Cancel(taskID) {
		s.tracker.Update(progress.Delta{Rejected: 1})
	}
}

// replaceSlot retires a dead or unresponsive slot.  Depending on policy the
// slot is respawned, keeping capacity at N, or the pool permanently shrinks.
func (s *Service) replaceSlot(dead *slot.Slot) {
	if dead == nil {
		return
	}
	s.mu.Lock()
	if _, ok := s.slots[dead.ID()]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.slots, dead.ID())
	s.capacity--
	s.mu.Unlock()
	dead.Terminate()

	if s.config.RespawnOnFault && !s.shuttingDown.Load() {
		slotID := s.spawnSlot()
		s.publishTaskEvent(event.TypeSlotRespawned, nil, slotID)
		return
	}
	s.tracker.Update(progress.Delta{Capacity: -1})
	s.publishTaskEvent(event.TypeCapacityReduced, nil, dead.ID())
}

func (s *Service) spawnSlot() int {
	s.mu.Lock()
	slotID := s.nextSlotID
	s.nextSlotID++
	replacement := slot.New(slotID, s.executor(), s.results)
	s.slots[slotID] = replacement
	s.capacity++
	s.mu.Unlock()
	replacement.Start(s.ctx)
	return slotID
}

// executor adapts the configured entry point to slot execution: it exposes
// the task's buffers through the context and routes typed submissions via
// the registry.
func (s *Service) executor() slot.Executor {
	return func(ctx context.Context, t *task.Task) (interface{}, error) {
		ctx = task.ContextWithBuffers(ctx, t.Buffers)
		if t.Kind != "" && s.registry != nil {
			handler, err := s.registry.Handler(t.Kind)
			if err != nil {
				return nil, err
			}
			return handler(ctx, t.Payload)
		}
		if s.handler == nil {
			return nil, fmt.Errorf("no worker entry point for task %v", t.ID)
		}
		return s.handler(ctx, t.Payload)
	}
}

func (s *Service) shutdown(graceful bool, complete func(output interface{}, err error)) {
	if graceful {
		for _, t := range s.queue.Drain() {
			s.broker.Reject(t.ID, ErrPoolClosed)
			s.tracker.Update(progress.Delta{Queued: -1, Rejected: 1})
		}
		for {
			s.mu.Lock()
			pending := len(s.inflight)
			s.mu.Unlock()
			if pending == 0 {
				break
			}
			time.Sleep(10 * time.Millisecond)
		}
	} else {
		s.queue.Drain()
		s.broker.RejectAll(ErrAborted)
	}

	s.mu.Lock()
	remaining := make([]*slot.Slot, 0, len(s.slots))
	for _, sl := range s.slots {
		remaining = append(remaining, sl)
	}
	s.mu.Unlock()

	for _, sl := range remaining {
		sl.Terminate()
	}
	for _, sl := range remaining {
		<-sl.Done()
	}
	if s.cancelFn != nil {
		s.cancelFn()
		<-s.loopDone
	}
	complete(nil, nil)
}

func (s *Service) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// publishLoop delivers lifecycle events on its own goroutine so a slow or
// absent event consumer can never stall dispatch.
func (s *Service) publishLoop() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case publish := <-s.events:
			publish()
		}
	}
}

// enqueueEvent hands a publish closure to the publish loop without blocking;
// when the backlog is full the event is dropped, not the dispatcher.
func (s *Service) enqueueEvent(eventType event.Type, publish func()) {
	select {
	case s.events <- publish:
	default:
		log.Printf("event backlog full, dropping %v event", eventType)
	}
}

func (s *Service) publishTaskEvent(eventType event.Type, t *task.Task, slotID int) {
	if s.eventService == nil || !event.HasConsumer[*task.Task](s.eventService) {
		return
	}
	eCtx := &event.Context{SlotID: slotID, EventType: eventType}
	if t != nil {
		eCtx.TaskID = t.ID
		eCtx.Kind = t.Kind
	}
	s.enqueueEvent(eventType, func() {
		publisher, err := event.PublisherOf[*task.Task](s.eventService)
		if err != nil {
			log.Printf("failed to resolve task event publisher: %v", err)
			return
		}
		if err = publisher.Publish(s.ctx, event.NewEvent(eCtx, t)); err != nil {
			log.Printf("failed to publish %v event: %v", eventType, err)
		}
	})
}

func (s *Service) publishResultEvent(eventType event.Type, result *task.Result) {
	if s.eventService == nil || !event.HasConsumer[*task.Result](s.eventService) {
		return
	}
	eCtx := &event.Context{
		TaskID:      result.TaskID,
		SlotID:      result.SlotID,
		EventType:   eventType,
		TimeTakenMs: int(result.Elapsed().Milliseconds()),
	}
	s.enqueueEvent(eventType, func() {
		publisher, err := event.PublisherOf[*task.Result](s.eventService)
		if err != nil {
			log.Printf("failed to resolve result event publisher: %v", err)
			return
		}
		if err = publisher.Publish(s.ctx, event.NewEvent(eCtx, result)); err != nil {
			log.Printf("failed to publish %v event: %v", eventType, err)
		}
	})
}
