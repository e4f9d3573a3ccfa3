package allocator

import (
	"github.com/go-logr/logr"

	"github.com/viant/fleetsched/progress"
	"github.com/viant/fleetsched/service/event"
	"github.com/viant/fleetsched/service/messaging"
)

// Option configures the allocator service.
type Option func(s *Service)

// WithConfig sets the allocator configuration.
func WithConfig(config Config) Option {
	return func(s *Service) { s.config = config }
}

// WithLogger sets the logger.
func WithLogger(logger logr.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithQueue replaces the default priority command queue. The queue must
// deliver commands in Less order and Publish must not block.
func WithQueue(queue messaging.Queue[Command]) Option {
	return func(s *Service) { s.queue = queue }
}

// WithEventService announces allocation outcomes on service.
func WithEventService(service *event.Service) Option {
	return func(s *Service) { s.events = service }
}

// WithProgress records counters on tracker.
func WithProgress(tracker *progress.Progress) Option {
	return func(s *Service) { s.progress = tracker }
}

// WithHooks installs synchronous callbacks.
func WithHooks(hooks *Hooks) Option {
	return func(s *Service) { s.hooks = hooks }
}
