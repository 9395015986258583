package taskpool

import (
	"context"
	"fmt"
	"reflect"

	"github.com/viant/afs/url"
	"github.com/viant/taskpool/extension"
	"github.com/viant/taskpool/model/task"
	"github.com/viant/taskpool/policy"
	"github.com/viant/taskpool/progress"
	"github.com/viant/taskpool/service/broker"
	"github.com/viant/taskpool/service/coordinator"
	"github.com/viant/taskpool/service/event"
	"github.com/viant/taskpool/service/messaging"
	"github.com/viant/taskpool/service/messaging/fs"
	"github.com/viant/taskpool/tracing"
	"github.com/viant/x"
)

// Service is the high-level pool facade wiring the coordinator with the
// handler registry, lifecycle events, admission policy and progress tracking.
type Service struct {
	config       *Config
	registry     *extension.Registry
	handler      extension.Handler
	hooks        coordinator.Hooks
	eventService *event.Service
	tracker      *progress.Tracker
	admission    *policy.Policy
	coordinator  *coordinator.Service
}

// New creates a pool service.
func New(options ...Option) (*Service, error) {
	s := &Service{config: DefaultConfig()}
	for _, option := range options {
		option(s)
	}
	if err := s.init(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewPool is a convenience constructor fixing the slot count up front.
func NewPool(size int, options ...Option) (*Service, error) {
	return New(append([]Option{WithWorkers(size)}, options...)...)
}

// NewFromConfig creates a pool service from a deserialised configuration.
func NewFromConfig(config *Config, options ...Option) (*Service, error) {
	return New(append([]Option{WithConfig(config)}, options...)...)
}

func (s *Service) init() error {
	if err := s.config.Validate(); err != nil {
		return err
	}
	if s.registry == nil {
		s.registry = extension.NewRegistry()
	}
	if s.tracker == nil {
		s.tracker = progress.NewTracker("taskpool", nil)
	}
	if s.admission == nil && s.config.Policy != nil {
		s.admission = policy.FromConfig(s.config.Policy)
	}
	if err := s.ensureEventService(); err != nil {
		return err
	}
	if s.config.Tracing.ServiceName != "" {
		if err := tracing.Init(s.config.Tracing.ServiceName, s.config.Tracing.ServiceVersion, s.config.Tracing.OutputFile); err != nil {
			return fmt.Errorf("failed to initialise tracing: %w", err)
		}
	}
	var err error
	s.coordinator, err = coordinator.New(
		coordinator.WithConfig(s.config.poolConfig()),
		coordinator.WithHandler(s.handler),
		coordinator.WithRegistry(s.registry),
		coordinator.WithEventService(s.eventService),
		coordinator.WithHooks(s.hooks),
		coordinator.WithTracker(s.tracker),
	)
	return err
}

func (s *Service) ensureEventService() error {
	if s.eventService != nil || s.config.Events.Vendor == "" {
		return nil
	}
	vendor := messaging.Vendor(s.config.Events.Vendor)
	var opts []event.Option
	if vendor == messaging.VendorFs {
		baseURL := s.config.Events.BaseURL
		opts = append(opts, event.WithNewFsQueueConfig(func(name string) fs.Config {
			return fs.Config{BaseURL: url.Join(baseURL, name)}
		}))
	}
	eventService, err := event.New(vendor, opts...)
	if err != nil {
		return err
	}
	s.eventService = eventService
	return nil
}

// Start spawns the worker slots; it must be called before Submit.
func (s *Service) Start(ctx context.Context) error {
	return s.coordinator.Start(ctx)
}

// Submit hands a payload to the pool and returns a handle the caller awaits
// or cancels.  It never blocks: when all slots are busy the task queues, and
// a full queue rejects synchronously with dispatch.ErrQueueFull.
func (s *Service) Submit(ctx context.Context, payload interface{}, options ...task.Option) (*broker.Handle, error) {
	if s.admission != nil && policy.FromContext(ctx) == nil {
		ctx = policy.WithPolicy(ctx, s.admission)
	}
	return s.coordinator.Submit(ctx, payload, options...)
}

// Shutdown stops the pool and returns a handle resolving once shutdown
// completes.  See coordinator.Service.Shutdown for graceful semantics.
func (s *Service) Shutdown(graceful bool) *broker.Handle {
	return s.coordinator.Shutdown(graceful)
}

// RegisterHandler binds a task kind to a handler taking the raw payload.
func (s *Service) RegisterHandler(kind string, handler extension.Handler) {
	s.registry.Register(kind, handler)
}

// RegisterTypedHandler binds a task kind to a handler whose payload is
// converted to the supplied type before invocation.
func (s *Service) RegisterTypedHandler(kind string, inputType reflect.Type, handler extension.Handler) {
	s.registry.RegisterTyped(kind, inputType, handler)
}

// RegisterTypes publishes payload types to the registry's type registry so
// kinds registered by name can resolve them.
func (s *Service) RegisterTypes(types ...*x.Type) {
	for i := range types {
		s.registry.Types().Register(types[i])
	}
}

// Registry exposes the handler registry.
func (s *Service) Registry() *extension.Registry {
	return s.registry
}

// Events exposes the lifecycle event service, nil when events are disabled.
func (s *Service) Events() *event.Service {
	return s.eventService
}

// Stats returns a snapshot of the pool counters.
func (s *Service) Stats() progress.Stats {
	return s.coordinator.Stats()
}

// Capacity returns the number of live worker slots.
func (s *Service) Capacity() int {
	return s.coordinator.Capacity()
}

// QueueLen returns the current dispatch backlog length.
func (s *Service) QueueLen() int {
	return s.coordinator.QueueLen()
}
