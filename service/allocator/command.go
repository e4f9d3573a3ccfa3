package allocator

import (
	"sync/atomic"
	"time"

	"github.com/viant/fleetsched/internal/clock"
	"github.com/viant/fleetsched/internal/idgen"
	"github.com/viant/fleetsched/model"
	"github.com/viant/fleetsched/model/resource"
)

// Kind identifies a command; its numeric value is the priority rank, lower
// ranks are served first.
type Kind int

const (
	KindRelease Kind = iota
	KindRetry
	KindPreparedCheck
	KindAllocate
)

func (k Kind) String() string {
	switch k {
	case KindRelease:
		return "release"
	case KindRetry:
		return "retry"
	case KindPreparedCheck:
		return "preparedCheck"
	case KindAllocate:
		return "allocate"
	}
	return "unknown"
}

// Priority returns the rank used for ordering.
func (k Kind) Priority() int { return int(k) }

// Command is a unit of work for the allocator worker.
type Command struct {
	ID        string
	Kind      Kind
	Client    model.Client
	Resources resource.Set
	// Module names the module that reported preparation, PreparedCheck only.
	Module    string
	CreatedAt time.Time
	Seq       uint64
}

// ClientID returns the id of the command's client.
func (c *Command) ClientID() string {
	if c.Client == nil {
		return ""
	}
	return c.Client.ID()
}

var sequence atomic.Uint64

// NewCommand creates a command stamped with the current time and the next
// sequence number.
func NewCommand(kind Kind, client model.Client, resources resource.Set) *Command {
	return &Command{
		ID:        idgen.NewWithPrefix(kind.String()),
		Kind:      kind,
		Client:    client,
		Resources: resources,
		CreatedAt: clock.Now(),
		Seq:       sequence.Add(1),
	}
}

// Less orders commands by priority, creation time, client id and sequence.
func Less(a, b *Command) bool {
	if a.Kind.Priority() != b.Kind.Priority() {
		return a.Kind.Priority() < b.Kind.Priority()
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	if aID, bID := a.ClientID(), b.ClientID(); aID != bID {
		return aID < bID
	}
	return a.Seq < b.Seq
}
