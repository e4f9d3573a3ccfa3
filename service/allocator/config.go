package allocator

// Config represents allocator service configuration
type Config struct {
	// DeferredWarnThreshold logs a warning whenever the deferred set grows
	// beyond it; zero disables the warning.
	DeferredWarnThreshold int `json:"deferredWarnThreshold" yaml:"deferredWarnThreshold"`
	// PublishEvents announces allocation outcomes on the event service.
	PublishEvents bool `json:"publishEvents" yaml:"publishEvents"`
}

// DefaultConfig returns the default allocator configuration
func DefaultConfig() Config {
	return Config{
		DeferredWarnThreshold: 256,
		PublishEvents:         true,
	}
}
