// Package messaging defines the generic queue contract shared by the command
// pipeline and the event service. Implementations live in sub-packages:
// `memory` (bounded FIFO) and `priority` (unbounded, ordered).
package messaging
