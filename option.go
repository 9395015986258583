package taskpool

import (
	"time"

	"github.com/viant/taskpool/extension"
	"github.com/viant/taskpool/policy"
	"github.com/viant/taskpool/progress"
	"github.com/viant/taskpool/service/coordinator"
	"github.com/viant/taskpool/service/event"
	"github.com/viant/taskpool/tracing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Option customises the pool service.
type Option func(s *Service)

// WithConfig replaces the whole configuration.
func WithConfig(config *Config) Option {
	return func(s *Service) {
		if config != nil {
			s.config = config
		}
	}
}

// WithWorkers sets the fixed slot count.
func WithWorkers(count int) Option {
	return func(s *Service) { s.config.Pool.Workers = count }
}

// WithMaxQueueLength caps how many tasks may wait for a slot.
func WithMaxQueueLength(maxLength int) Option {
	return func(s *Service) { s.config.Pool.MaxQueueLength = maxLength }
}

// WithRespawnOnFault controls whether a crashed slot is replaced.
func WithRespawnOnFault(respawn bool) Option {
	return func(s *Service) { s.config.Pool.RespawnOnFault = &respawn }
}

// WithDefaultTaskTimeout bounds tasks submitted without a deadline.
func WithDefaultTaskTimeout(timeout time.Duration) Option {
	return func(s *Service) { s.config.Pool.DefaultTaskTimeoutMs = int(timeout.Milliseconds()) }
}

// WithHandler sets the fallback entry point for tasks without a kind.
func WithHandler(handler extension.Handler) Option {
	return func(s *Service) { s.handler = handler }
}

// WithRegistry uses the supplied handler registry.
func WithRegistry(registry *extension.Registry) Option {
	return func(s *Service) { s.registry = registry }
}

// WithEventService publishes lifecycle events to the given service.
func WithEventService(service *event.Service) Option {
	return func(s *Service) { s.eventService = service }
}

// WithHooks installs observability callbacks.
func WithHooks(hooks coordinator.Hooks) Option {
	return func(s *Service) { s.hooks = hooks }
}

// WithTracker uses the supplied progress tracker instead of a private one.
func WithTracker(tracker *progress.Tracker) Option {
	return func(s *Service) { s.tracker = tracker }
}

// WithPolicy applies the admission policy to every submission whose context
// does not carry its own.
func WithPolicy(p *policy.Policy) Option {
	return func(s *Service) { s.admission = p }
}

// WithTracing configures OpenTelemetry tracing.  If outputFile is empty the
// stdout exporter is used; otherwise spans are written to the supplied file.
// Safe to call multiple times; the first successful initialisation wins.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		_ = tracing.Init(serviceName, serviceVersion, outputFile)
	}
}

// WithTracingExporter configures OpenTelemetry tracing with a custom
// SpanExporter, enabling OTLP, Jaeger or Zipkin integrations.
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		_ = tracing.InitWithExporter(serviceName, serviceVersion, exporter)
	}
}
