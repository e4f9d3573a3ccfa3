package event

import (
	"time"

	"github.com/viant/fleetsched/internal/clock"
	"github.com/viant/fleetsched/internal/idgen"
)

// Context describes where an event originated.
type Context struct {
	ClientID  string `json:"clientId"`
	EventType string `json:"eventType"`
	Source    string `json:"source"`
}

// Event wraps a typed payload with metadata.
type Event[T any] struct {
	ID        string                 `json:"id"`
	Context   *Context               `json:"context"`
	CreatedAt time.Time              `json:"createdAt"`
	Metadata  map[string]interface{} `json:"metadata"`
	Data      T                      `json:"data"`
}

// NewEvent creates an event for data.
func NewEvent[T any](context *Context, data T) *Event[T] {
	return &Event[T]{
		ID:        idgen.New(),
		Context:   context,
		CreatedAt: clock.Now(),
		Metadata:  make(map[string]interface{}),
		Data:      data,
	}
}

// Type returns the event type or an empty string.
func (e *Event[T]) Type() string {
	if e == nil || e.Context == nil {
		return ""
	}
	return e.Context.EventType
}
