package module

import (
	"context"

	"github.com/viant/fleetsched/model"
	"github.com/viant/fleetsched/model/resource"
)

// Base implements every hook permissively. Embed it and override what the
// module cares about.
type Base struct {
	name string
	env  Environment
}

// NewBase returns a Base with the given name.
func NewBase(name string) Base {
	return Base{name: name}
}

func (b *Base) Name() string { return b.name }

func (b *Base) Initialize(_ context.Context, env Environment) error {
	b.env = env
	return nil
}

// Environment returns the environment received on Initialize.
func (b *Base) Environment() Environment { return b.env }

func (b *Base) Terminate(context.Context) error { return nil }

func (b *Base) Claim(model.Client, []resource.Set) {}

func (b *Base) Unclaim(model.Client) {}

func (b *Base) SetAllocationState(model.Client, resource.Set, []resource.Set) {}

func (b *Base) MayAllocate(model.Client, resource.Set) bool { return true }

func (b *Base) PrepareAllocation(model.Client, resource.Set) {}

func (b *Base) HasPreparedAllocation(model.Client, resource.Set) bool { return true }

func (b *Base) AllocationReleased(model.Client, resource.Set) {}
