package gate

import (
	"github.com/go-logr/logr"

	"github.com/viant/fleetsched/service/dao"
	"github.com/viant/fleetsched/service/messaging"
)

// Option represents gate module option
type Option func(m *Module)

// WithLogger sets the module logger
func WithLogger(logger logr.Logger) Option {
	return func(m *Module) { m.logger = logger }
}

// WithRequestDAO replaces the request storage.
func WithRequestDAO(requests dao.Service[string, Request]) Option {
	return func(m *Module) { m.requests = requests }
}

// WithDecisionDAO replaces the decision storage.
func WithDecisionDAO(decisions dao.Service[string, Decision]) Option {
	return func(m *Module) { m.decisions = decisions }
}

// WithQueue replaces the event queue. The queue should not block on
// Publish, since requests are filed from allocator hooks.
func WithQueue(queue messaging.Queue[Event]) Option {
	return func(m *Module) { m.events = queue }
}
