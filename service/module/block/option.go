package block

import "github.com/go-logr/logr"

// Option represents block module option
type Option func(m *Module)

// WithLogger sets the module logger
func WithLogger(logger logr.Logger) Option {
	return func(m *Module) {
		m.logger = logger
	}
}
