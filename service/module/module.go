package module

import (
	"context"

	"github.com/viant/fleetsched/model"
	"github.com/viant/fleetsched/model/resource"
)

// Module is a pluggable allocation policy.
type Module interface {
	// Name identifies the module in logs and metrics.
	Name() string

	// Initialize prepares the module; env stays valid until Terminate.
	Initialize(ctx context.Context, env Environment) error

	// Terminate releases module state.
	Terminate(ctx context.Context) error

	// Claim is called when a client declares its future resource needs.
	Claim(client model.Client, steps []resource.Set)

	// Unclaim is called when a client discards its claim.
	Unclaim(client model.Client)

	// SetAllocationState reports what client holds and which claimed steps
	// are still ahead of it.
	SetAllocationState(client model.Client, allocated resource.Set, remaining []resource.Set)

	// MayAllocate vetoes a grant by returning false.
	MayAllocate(client model.Client, resources resource.Set) bool

	// PrepareAllocation is called right before resources are committed to
	// client. Preparation may complete later; the module then calls
	// Environment.PreparationSuccessful.
	PrepareAllocation(client model.Client, resources resource.Set)

	// HasPreparedAllocation reports whether preparation for the grant is
	// complete.
	HasPreparedAllocation(client model.Client, resources resource.Set) bool

	// AllocationReleased is called after resources became fully free.
	AllocationReleased(client model.Client, resources resource.Set)
}

// Reader is a read-only view of the reservation store. It may only be used
// from inside module hooks, where the store lock is already held.
type Reader interface {
	Available(resources resource.Set, clientID string) bool
	AllocatedBy(clientID string) resource.Set
	HolderOf(r resource.Resource) (string, int)
}

// Environment is handed to modules on initialization.
type Environment interface {
	// Reservations returns the store view usable from inside hooks.
	Reservations() Reader

	// PreparationSuccessful signals that the module finished preparing a
	// grant for client. It never blocks.
	PreparationSuccessful(m Module, client model.Client, resources resource.Set)
}
