package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// Namespace prefixes every collector.
	Namespace = "fleetsched"

	// --- Subsystems ---
	AllocatorSubsystem = "allocator"
	ModuleSubsystem    = "module"
	SchedulerSubsystem = "scheduler"
)

var (
	// LatencyBuckets cover 10us to 1s, command handling is in-memory.
	LatencyBuckets = []float64{
		0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1,
	}
)

// --- Allocator metrics ---
var (
	commandCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: AllocatorSubsystem,
			Name:      "commands_total",
			Help:      "Counter of processed allocator commands broken out by kind.",
		},
		[]string{"kind"},
	)

	commandLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: AllocatorSubsystem,
			Name:      "command_duration_seconds",
			Help:      "Allocator command processing latency in seconds.",
			Buckets:   LatencyBuckets,
		},
		[]string{"kind"},
	)

	outcomeCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: AllocatorSubsystem,
			Name:      "outcomes_total",
			Help:      "Counter of allocation outcomes (granted, deferred, rejected, released).",
		},
		[]string{"outcome"},
	)

	deferredGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: AllocatorSubsystem,
			Name:      "deferred_requests",
			Help:      "Number of allocation requests waiting for a retry.",
		},
	)
)

// --- Module metrics ---
var (
	moduleLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: ModuleSubsystem,
			Name:      "hook_duration_seconds",
			Help:      "Module hook latency in seconds broken out by hook and module.",
			Buckets:   LatencyBuckets,
		},
		[]string{"hook", "module"},
	)

	vetoCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: ModuleSubsystem,
			Name:      "vetoes_total",
			Help:      "Counter of allocation vetoes broken out by module.",
		},
		[]string{"module"},
	)
)

// --- Scheduler metrics ---
var (
	skippedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: SchedulerSubsystem,
			Name:      "immediate_skipped_total",
			Help:      "Counter of resources skipped by immediate allocation because another client held them.",
		},
	)
)

var registerMetrics sync.Once

// Register registers all collectors with registerer, defaulting to the
// Prometheus default registerer. Only the first call has an effect.
func Register(registerer prometheus.Registerer) {
	registerMetrics.Do(func() {
		if registerer == nil {
			registerer = prometheus.DefaultRegisterer
		}
		registerer.MustRegister(commandCounter)
		registerer.MustRegister(commandLatency)
		registerer.MustRegister(outcomeCounter)
		registerer.MustRegister(deferredGauge)
		registerer.MustRegister(moduleLatency)
		registerer.MustRegister(vetoCounter)
		registerer.MustRegister(skippedCounter)
	})
}

// RecordCommand counts a processed command and its latency.
func RecordCommand(kind string, duration time.Duration) {
	commandCounter.WithLabelValues(kind).Inc()
	commandLatency.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordOutcome counts an allocation outcome.
func RecordOutcome(outcome string) {
	outcomeCounter.WithLabelValues(outcome).Inc()
}

// SetDeferred sets the deferred request gauge.
func SetDeferred(count int) {
	deferredGauge.Set(float64(count))
}

// RecordModuleLatency records how long a module hook took.
func RecordModuleLatency(hook, module string, duration time.Duration) {
	moduleLatency.WithLabelValues(hook, module).Observe(duration.Seconds())
}

// RecordVeto counts a MayAllocate veto by module.
func RecordVeto(module string) {
	vetoCounter.WithLabelValues(module).Inc()
}

// RecordSkipped counts resources skipped by immediate allocation.
func RecordSkipped(count int) {
	skippedCounter.Add(float64(count))
}
