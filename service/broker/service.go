package broker

import (
	"sync"
	"time"

	"github.com/viant/taskpool/internal/clock"
	"github.com/viant/taskpool/model/task"
)

// staleRetention bounds how long a completed task id is remembered so that a
// late message from a respawned slot is recognised and dropped.
const staleRetention = time.Minute

// TimeoutFunc notifies the coordinator that a pending request timed out so it
// can treat the unresponsive slot as faulted.
type TimeoutFunc func(taskID string)

type request struct {
	handle    *Handle
	createdAt time.Time
	timer     *time.Timer
}

// Service maps task ids to pending requests.
type Service struct {
	mu        sync.Mutex
	pending   map[string]*request
	stale     map[string]struct{}
	onTimeout TimeoutFunc
	cancelFn  func(taskID string)
}

// Option customises the broker.
type Option func(*Service)

// WithTimeoutFunc registers the coordinator callback invoked when a pending
// request's deadline elapses.
func WithTimeoutFunc(fn TimeoutFunc) Option {
	return func(s *Service) { s.onTimeout = fn }
}

// WithCancelFunc wires Handle.Cancel back to the coordinator.
func WithCancelFunc(fn func(taskID string)) Option {
	return func(s *Service) { s.cancelFn = fn }
}

// New creates a broker service.
func New(options ...Option) *Service {
	s := &Service{
		pending: make(map[string]*request),
		stale:   make(map[string]struct{}),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Register creates the pending request for a submitted task and returns its
// handle.  When the descriptor carries a deadline a timer is armed that
// rejects the handle with ErrTimeout once elapsed.
func (s *Service) Register(t *task.Task) *Handle {
	handle := &Handle{
		taskID:   t.ID,
		done:     make(chan struct{}),
		cancelFn: s.cancelFn,
	}
	req := &request{handle: handle, createdAt: clock.Now()}
	s.mu.Lock()
	s.pending[t.ID] = req
	s.mu.Unlock()

	if t.Deadline != nil {
		taskID := t.ID
		delay := t.Deadline.Sub(clock.Now())
		req.timer = clock.After(delay, func() {
			if s.Reject(taskID, ErrTimeout) && s.onTimeout != nil {
				s.onTimeout(taskID)
			}
		})
	}
	return handle
}

// Discard drops a pending request without completing its handle, used when
// submission fails synchronously after registration (the caller never saw
// the handle).
func (s *Service) Discard(taskID string) {
	s.mu.Lock()
	req, ok := s.pending[taskID]
	if ok {
		delete(s.pending, taskID)
	}
	s.mu.Unlock()
	if ok && req.timer != nil {
		req.timer.Stop()
	}
}

// Resolve fulfils the pending request for taskID.  Returns false when the id
// is unknown or already completed; the duplicate is a no-op.
func (s *Service) Resolve(taskID string, output interface{}) bool {
	return s.finish(taskID, output, nil)
}

// Reject fails the pending request for taskID with the supplied error.
// Idempotent in the same way as Resolve.
func (s *Service) Reject(taskID string, err error) bool {
	return s.finish(taskID, nil, err)
}

// Cancel rejects the pending request with ErrCancelled.
func (s *Service) Cancel(taskID string) bool {
	return s.Reject(taskID, ErrCancelled)
}

// RejectAll fails every outstanding request, used by pool shutdown.
func (s *Service) RejectAll(err error) {
	s.mu.Lock()
	ids := make([]string, 0, len(s.pending))
	for id := range s.pending {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	for _, id := range ids {
		s.Reject(id, err)
	}
}

// Pending returns the number of unresolved requests.
func (s *Service) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// IsStale reports whether taskID completed recently; coordinators use it to
// discard late slot messages.
func (s *Service) IsStale(taskID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.stale[taskID]
	return ok
}

func (s *Service) finish(taskID string, output interface{}, err error) bool {
	s.mu.Lock()
	req, ok := s.pending[taskID]
	if !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.pending, taskID)
	s.stale[taskID] = struct{}{}
	s.mu.Unlock()

	if req.timer != nil {
		req.timer.Stop()
	}
	clock.After(staleRetention, func() {
		s.mu.Lock()
		delete(s.stale, taskID)
		s.mu.Unlock()
	})
	return req.handle.complete(output, err)
}
