package fleetsched

import (
	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/viant/fleetsched/progress"
	"github.com/viant/fleetsched/service/allocator"
	"github.com/viant/fleetsched/service/event"
	"github.com/viant/fleetsched/service/messaging"
	"github.com/viant/fleetsched/service/module"
)

// Option represents a scheduler service option
type Option func(s *Service)

// WithConfig sets the configuration
func WithConfig(config *Config) Option {
	return func(s *Service) {
		s.config = config
	}
}

// WithModules registers policy modules after the modules declared in the
// configuration. Registration order is the consultation order.
func WithModules(modules ...module.Module) Option {
	return func(s *Service) {
		s.modules = append(s.modules, modules...)
	}
}

// WithLogger sets the logger shared by all components
func WithLogger(logger logr.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithEventService sets the event service used to announce allocation
// outcomes. The caller keeps ownership of the service.
func WithEventService(service *event.Service) Option {
	return func(s *Service) {
		s.eventService = service
	}
}

// WithMetricsRegisterer registers the scheduler collectors with registerer.
func WithMetricsRegisterer(registerer prometheus.Registerer) Option {
	return func(s *Service) {
		s.registerer = registerer
	}
}

// WithProgressListener sets a callback receiving counter snapshots.
func WithProgressListener(listener func(progress.Progress)) Option {
	return func(s *Service) {
		s.onProgress = listener
	}
}

// WithHooks installs synchronous allocator callbacks.
func WithHooks(hooks *allocator.Hooks) Option {
	return func(s *Service) {
		s.hooks = hooks
	}
}

// WithQueue replaces the command queue
func WithQueue(queue messaging.Queue[allocator.Command]) Option {
	return func(s *Service) {
		s.queue = queue
	}
}

// WithTracing enables OpenTelemetry tracing with the stdout exporter. If
// outputFile is empty traces go to os.Stdout. It overrides the tracing
// section of the configuration; initialisation errors are reported by
// Runtime.Start.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		s.tracing = &TracingConfig{Enabled: true, ServiceName: serviceName, ServiceVersion: serviceVersion, OutputFile: outputFile}
	}
}

// WithTracingExporter enables OpenTelemetry tracing with a custom
// SpanExporter, for example OTLP, Jaeger or an in-memory exporter.
// Initialisation errors are reported by Runtime.Start.
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		s.tracing = &TracingConfig{Enabled: true, ServiceName: serviceName, ServiceVersion: serviceVersion}
		s.exporter = exporter
	}
}
