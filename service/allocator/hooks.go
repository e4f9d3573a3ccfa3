package allocator

import (
	"github.com/viant/fleetsched/model"
	"github.com/viant/fleetsched/model/resource"
)

// Hooks are optional synchronous callbacks invoked by the worker. They run
// on the worker goroutine without the store lock and must not block.
type Hooks struct {
	OnGranted    func(client model.Client, resources resource.Set)
	OnDeferred   func(client model.Client, resources resource.Set, reason string)
	OnRolledBack func(client model.Client, resources resource.Set)
	OnReleased   func(client model.Client, resources resource.Set)
	OnRetried    func(resubmitted int)
}

func (h *Hooks) doGranted(client model.Client, resources resource.Set) {
	if h != nil && h.OnGranted != nil {
		h.OnGranted(client, resources)
	}
}

func (h *Hooks) doDeferred(client model.Client, resources resource.Set, reason string) {
	if h != nil && h.OnDeferred != nil {
		h.OnDeferred(client, resources, reason)
	}
}

func (h *Hooks) doRolledBack(client model.Client, resources resource.Set) {
	if h != nil && h.OnRolledBack != nil {
		h.OnRolledBack(client, resources)
	}
}

func (h *Hooks) doReleased(client model.Client, resources resource.Set) {
	if h != nil && h.OnReleased != nil {
		h.OnReleased(client, resources)
	}
}

func (h *Hooks) doRetried(resubmitted int) {
	if h != nil && h.OnRetried != nil {
		h.OnRetried(resubmitted)
	}
}
