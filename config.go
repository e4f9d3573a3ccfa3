package fleetsched

import (
	"context"
	"errors"
	"fmt"

	"github.com/viant/afs"
	"github.com/viant/afs/storage"
	"gopkg.in/yaml.v3"

	"github.com/viant/fleetsched/policy"
	"github.com/viant/fleetsched/service/allocator"
	"github.com/viant/fleetsched/service/module/block"
	"github.com/viant/fleetsched/service/module/gate"
)

// Config is a serialisable representation of the scheduler configuration. It
// can be populated from JSON or YAML. Module sections are optional; a module
// is registered only when its section is present.
type Config struct {
	Allocator allocator.Config `json:"allocator" yaml:"allocator"`
	Events    EventsConfig     `json:"events" yaml:"events"`
	Tracing   TracingConfig    `json:"tracing" yaml:"tracing"`
	Metrics   MetricsConfig    `json:"metrics" yaml:"metrics"`
	Log       LogConfig        `json:"log" yaml:"log"`

	Policy *policy.Config `json:"policy,omitempty" yaml:"policy,omitempty"`
	Block  *block.Config  `json:"block,omitempty" yaml:"block,omitempty"`
	Gate   *gate.Config   `json:"gate,omitempty" yaml:"gate,omitempty"`
}

// EventsConfig controls allocation event publishing.
type EventsConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	Buffer  int  `json:"buffer" yaml:"buffer"`
}

// TracingConfig controls the OpenTelemetry stdout exporter.
type TracingConfig struct {
	Enabled        bool   `json:"enabled" yaml:"enabled"`
	ServiceName    string `json:"serviceName" yaml:"serviceName"`
	ServiceVersion string `json:"serviceVersion" yaml:"serviceVersion"`
	OutputFile     string `json:"outputFile,omitempty" yaml:"outputFile,omitempty"`
}

// MetricsConfig controls registration of Prometheus collectors with the
// default registerer.
type MetricsConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// LogConfig configures the default stdr logger.
type LogConfig struct {
	Name      string `json:"name" yaml:"name"`
	Verbosity int    `json:"verbosity" yaml:"verbosity"`
}

// DefaultConfig returns a Config populated with default values. Callers may
// modify the returned struct before passing it to NewFromConfig.
func DefaultConfig() *Config {
	return &Config{
		Allocator: allocator.DefaultConfig(),
		Events:    EventsConfig{Enabled: false, Buffer: 1024},
		Tracing:   TracingConfig{ServiceName: "fleetsched", ServiceVersion: "dev"},
		Log:       LogConfig{Name: "fleetsched"},
	}
}

// Validate returns aggregated error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.Allocator.DeferredWarnThreshold < 0 {
		errs = append(errs, fmt.Errorf("allocator.deferredWarnThreshold must be >= 0"))
	}
	if c.Events.Enabled && c.Events.Buffer <= 0 {
		errs = append(errs, fmt.Errorf("events.buffer must be > 0"))
	}
	if c.Tracing.Enabled && c.Tracing.ServiceName == "" {
		errs = append(errs, fmt.Errorf("tracing.serviceName was empty"))
	}
	if c.Log.Verbosity < 0 {
		errs = append(errs, fmt.Errorf("log.verbosity must be >= 0"))
	}
	if err := c.Policy.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("policy: %w", err))
	}
	return errors.Join(errs...)
}

// LoadConfig reads a YAML configuration from URL using any afs supported
// storage (file, mem, embed, cloud). Missing sections keep their defaults.
func LoadConfig(ctx context.Context, URL string, options ...storage.Option) (*Config, error) {
	fs := afs.New()
	data, err := fs.DownloadWithURL(ctx, URL, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %v: %w", URL, err)
	}
	ret := DefaultConfig()
	if err = yaml.Unmarshal(data, ret); err != nil {
		return nil, fmt.Errorf("failed to decode config %v: %w", URL, err)
	}
	if err = ret.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %v: %w", URL, err)
	}
	return ret, nil
}
