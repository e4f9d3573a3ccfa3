// Package tracing wraps OpenTelemetry so that the allocator can emit one
// span per processed command without importing the SDK directly. Tracing is
// opt-in: until Init or InitWithExporter is called spans are no-ops.
package tracing
