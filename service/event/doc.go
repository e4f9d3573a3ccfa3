// Package event provides typed publish/subscribe on top of the messaging
// queues. Each payload type gets its own queue; every event is also mirrored
// onto a service-wide untyped queue observed through SetListener.
package event
