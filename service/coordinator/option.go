package coordinator

import (
	"time"

	"github.com/viant/taskpool/extension"
	"github.com/viant/taskpool/progress"
	"github.com/viant/taskpool/service/event"
)

// Option configures the coordinator service.
type Option func(*Service)

// WithConfig replaces the whole configuration.
func WithConfig(config Config) Option {
	return func(s *Service) { s.config = config }
}

// WithWorkers sets the fixed slot count.
func WithWorkers(count int) Option {
	return func(s *Service) { s.config.WorkerCount = count }
}

// WithMaxQueueLength caps how many tasks may wait for a slot.
func WithMaxQueueLength(maxLength int) Option {
	return func(s *Service) { s.config.MaxQueueLength = maxLength }
}

// WithRespawnOnFault controls whether a crashed slot is replaced.
func WithRespawnOnFault(respawn bool) Option {
	return func(s *Service) { s.config.RespawnOnFault = respawn }
}

// WithDefaultTaskTimeout bounds tasks submitted without a deadline.
func WithDefaultTaskTimeout(timeout time.Duration) Option {
	return func(s *Service) { s.config.DefaultTaskTimeout = timeout }
}

// WithHandler sets the fallback entry point for tasks without a kind.
func WithHandler(handler extension.Handler) Option {
	return func(s *Service) { s.handler = handler }
}

// WithRegistry routes typed tasks to registered handlers.
func WithRegistry(registry *extension.Registry) Option {
	return func(s *Service) { s.registry = registry }
}

// WithEventService publishes lifecycle events to the given service.
func WithEventService(eventService *event.Service) Option {
	return func(s *Service) { s.eventService = eventService }
}

// WithHooks installs observability callbacks.
func WithHooks(hooks Hooks) Option {
	return func(s *Service) { s.hooks = hooks }
}

// WithTracker uses the supplied progress tracker instead of a private one.
func WithTracker(tracker *progress.Tracker) Option {
	return func(s *Service) { s.tracker = tracker }
}
