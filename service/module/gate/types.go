package gate

import (
	"time"
)

// Standard event topics.
const (
	TopicRequestCreated  = "request.created"
	TopicDecisionCreated = "decision.created"
	TopicRequestDropped  = "request.dropped"
)

// Event is published on the module queue whenever requests or decisions
// change.
type Event struct {
	Topic string      `json:"topic"`
	Data  interface{} `json:"data"` // *Request | *Decision
}

// Request asks for the gated resources of a committed grant to be opened.
type Request struct {
	ID        string    `json:"id"`
	ClientID  string    `json:"clientId"`
	Gated     []string  `json:"gated"`     // gated resources of the grant
	Resources []string  `json:"resources"` // every resource of the grant
	CreatedAt time.Time `json:"createdAt"`
}

// Decision records that a request was opened.
type Decision struct {
	ID       string    `json:"id"` // same as request.ID
	Reason   string    `json:"reason,omitempty"`
	OpenedAt time.Time `json:"openedAt"`
}
