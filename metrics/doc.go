// Package metrics exposes Prometheus collectors describing allocator
// activity. Collectors are package level and registered once through
// Register.
package metrics
