// Package policy provides a module that pauses allocation for selected
// clients, for example vehicles taken out of service, or for the whole fleet
// during an emergency stop.
package policy
