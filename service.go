package fleetsched

import (
	"errors"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/viant/fleetsched/internal/logging"
	"github.com/viant/fleetsched/metrics"
	"github.com/viant/fleetsched/model"
	"github.com/viant/fleetsched/policy"
	"github.com/viant/fleetsched/progress"
	"github.com/viant/fleetsched/service/allocator"
	"github.com/viant/fleetsched/service/dao/store"
	"github.com/viant/fleetsched/service/event"
	"github.com/viant/fleetsched/service/messaging"
	"github.com/viant/fleetsched/service/messaging/memory"
	"github.com/viant/fleetsched/service/module"
	"github.com/viant/fleetsched/service/module/block"
	"github.com/viant/fleetsched/service/module/gate"
	"github.com/viant/fleetsched/service/reservation"
	"github.com/viant/fleetsched/tracing"
)

// Service wires the scheduler components together.
type Service struct {
	runtime      *Runtime
	config       *Config
	modules      []module.Module
	logger       logr.Logger
	eventService *event.Service
	registerer   prometheus.Registerer
	onProgress   func(progress.Progress)
	hooks        *allocator.Hooks
	queue        messaging.Queue[allocator.Command]
	tracing      *TracingConfig
	exporter     sdktrace.SpanExporter
}

// New creates a scheduler service. Configuration errors are reported by
// Runtime.Start.
func New(options ...Option) *Service {
	ret := &Service{runtime: &Runtime{}}
	ret.runtime.initErr = ret.init(options)
	return ret
}

// NewFromConfig creates a scheduler service from config.
func NewFromConfig(config *Config, options ...Option) (*Service, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	ret := New(append([]Option{WithConfig(config)}, options...)...)
	if err := ret.runtime.initErr; err != nil {
		return nil, err
	}
	return ret, nil
}

// Runtime returns the scheduler facade.
func (s *Service) Runtime() *Runtime {
	return s.runtime
}

// Config returns the effective configuration.
func (s *Service) Config() *Config {
	return s.config
}

func (s *Service) init(options []Option) error {
	for _, option := range options {
		option(s)
	}
	if s.config == nil {
		s.config = DefaultConfig()
	}
	if s.logger.GetSink() == nil {
		s.logger = logging.New(s.config.Log.Name, s.config.Log.Verbosity)
	}
	var errs []error
	if err := s.ensureObservability(); err != nil {
		errs = append(errs, err)
	}
	configured, err := s.configuredModules()
	if err != nil {
		errs = append(errs, err)
	}

	runtime := s.runtime
	runtime.logger = s.logger.WithName("runtime")
	runtime.store = reservation.New(s.logger)
	runtime.modules = module.NewComposite(s.logger, append(configured, s.modules...)...)
	runtime.progress = progress.New(s.onProgress)
	runtime.claims = store.NewMemoryStore[string, model.Claim](claimKey,
		store.WithOrder[string, model.Claim](func(a, b *model.Claim) bool { return a.ClientID < b.ClientID }))
	runtime.events = s.eventService
	if runtime.events == nil && s.config.Events.Enabled {
		buffer := s.config.Events.Buffer
		runtime.events, err = event.New(messaging.VendorMemory,
			event.WithLogger(s.logger),
			event.WithNewMemoryQueueConfig(func(string) memory.Config {
				config := memory.DefaultConfig()
				config.QueueBuffer = buffer
				config.NonBlocking = true
				return config
			}))
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to create event service: %w", err))
		}
		runtime.ownsEvents = runtime.events != nil
	}

	allocatorOptions := []allocator.Option{
		allocator.WithConfig(s.config.Allocator),
		allocator.WithLogger(s.logger),
		allocator.WithProgress(runtime.progress),
		allocator.WithHooks(s.hooks),
	}
	if runtime.events != nil {
		allocatorOptions = append(allocatorOptions, allocator.WithEventService(runtime.events))
	}
	if s.queue != nil {
		allocatorOptions = append(allocatorOptions, allocator.WithQueue(s.queue))
	}
	runtime.allocator = allocator.New(runtime.store, runtime.modules, allocatorOptions...)
	runtime.env = &environment{runtime: runtime}
	return errors.Join(errs...)
}

func (s *Service) ensureObservability() error {
	registerer := s.registerer
	if registerer == nil && s.config.Metrics.Enabled {
		registerer = prometheus.DefaultRegisterer
	}
	if registerer != nil {
		metrics.Register(registerer)
	}
	tracingConfig := s.config.Tracing
	if s.tracing != nil {
		tracingConfig = *s.tracing
	}
	if !tracingConfig.Enabled {
		return nil
	}
	var err error
	if s.exporter != nil {
		err = tracing.InitWithExporter(tracingConfig.ServiceName, tracingConfig.ServiceVersion, s.exporter)
	} else {
		err = tracing.Init(tracingConfig.ServiceName, tracingConfig.ServiceVersion, tracingConfig.OutputFile)
	}
	if err != nil {
		return fmt.Errorf("failed to initialise tracing: %w", err)
	}
	return nil
}

// configuredModules builds the modules declared in the configuration, in
// policy, block, gate order.
func (s *Service) configuredModules() ([]module.Module, error) {
	var ret []module.Module
	if s.config.Policy != nil {
		m, err := policy.NewModule(s.config.Policy, s.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create policy module: %w", err)
		}
		ret = append(ret, m)
	}
	if s.config.Block != nil {
		m, err := block.New(*s.config.Block, block.WithLogger(s.logger))
		if err != nil {
			return nil, fmt.Errorf("failed to create block module: %w", err)
		}
		ret = append(ret, m)
	}
	if s.config.Gate != nil {
		m, err := gate.New(*s.config.Gate, gate.WithLogger(s.logger))
		if err != nil {
			return nil, fmt.Errorf("failed to create gate module: %w", err)
		}
		ret = append(ret, m)
	}
	return ret, nil
}

func claimKey(c *model.Claim) string { return c.ClientID }
