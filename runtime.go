package fleetsched

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-logr/logr"

	"github.com/viant/fleetsched/internal/clock"
	"github.com/viant/fleetsched/internal/logging"
	"github.com/viant/fleetsched/metrics"
	"github.com/viant/fleetsched/model"
	"github.com/viant/fleetsched/model/resource"
	"github.com/viant/fleetsched/progress"
	"github.com/viant/fleetsched/service/allocator"
	"github.com/viant/fleetsched/service/dao"
	"github.com/viant/fleetsched/service/event"
	"github.com/viant/fleetsched/service/module"
	"github.com/viant/fleetsched/service/reservation"
)

// ErrInvalidProgressIndex is returned by UpdateProgressIndex for negative
// indexes.
var ErrInvalidProgressIndex = errors.New("invalid progress index")

// Runtime is the scheduler facade used by vehicles and operators.
//
// Allocate is asynchronous: the grant is delivered through
// model.Client.AllocationSuccessful on the allocator goroutine. Every other
// operation completes before returning.
type Runtime struct {
	store      *reservation.Store
	modules    *module.Composite
	allocator  *allocator.Service
	claims     dao.Service[string, model.Claim]
	progress   *progress.Progress
	events     *event.Service
	ownsEvents bool
	env        *environment
	logger     logr.Logger
	initErr    error

	mux     sync.Mutex
	running bool
	stopped chan struct{}
}

// Start initializes the modules and starts the allocator goroutine.
func (r *Runtime) Start(ctx context.Context) error {
	if r.initErr != nil {
		return r.initErr
	}
	r.mux.Lock()
	defer r.mux.Unlock()
	if r.running {
		return fmt.Errorf("runtime already started")
	}
	if r.stopped != nil {
		return fmt.Errorf("runtime cannot be restarted")
	}
	if err := r.modules.Initialize(ctx, r.env); err != nil {
		return fmt.Errorf("failed to initialize modules: %w", err)
	}
	r.running = true
	r.stopped = make(chan struct{})
	go func() {
		defer close(r.stopped)
		if err := r.allocator.Start(context.WithoutCancel(ctx)); err != nil {
			r.logger.Error(err, "allocator stopped")
		}
	}()
	r.logger.Info("scheduler started", "modules", len(r.modules.Modules()))
	return nil
}

// Shutdown stops the allocator and terminates the modules.
func (r *Runtime) Shutdown(ctx context.Context) error {
	r.mux.Lock()
	defer r.mux.Unlock()
	if !r.running {
		return nil
	}
	r.running = false
	r.allocator.Shutdown()
	<-r.stopped
	err := r.modules.Terminate(ctx)
	if r.ownsEvents {
		r.events.Close()
	}
	r.logger.Info("scheduler stopped")
	return err
}

// Claim replaces the claim of client and reports it to the modules.
func (r *Runtime) Claim(ctx context.Context, client model.Client, steps []resource.Set) error {
	if client == nil {
		r.logger.Info("ignoring claim without client")
		return nil
	}
	claim := &model.Claim{
		ClientID:  client.ID(),
		Steps:     append([]resource.Set(nil), steps...),
		UpdatedAt: clock.Now(),
	}
	r.store.Lock()
	defer r.store.Unlock()
	if err := r.claims.Save(ctx, claim); err != nil {
		return fmt.Errorf("failed to save claim of %v: %w", claim.ClientID, err)
	}
	r.modules.Claim(client, claim.Steps)
	r.modules.SetAllocationState(client, r.store.AllocatedBy(client.ID()), claim.Remaining())
	return nil
}

// UpdateProgressIndex marks the claim steps before index as passed. A
// negative index is an error; an index moving backwards or past the claim
// is logged and ignored.
func (r *Runtime) UpdateProgressIndex(ctx context.Context, client model.Client, index int) error {
	if index < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidProgressIndex, index)
	}
	if client == nil {
		r.logger.Info("ignoring progress update without client")
		return nil
	}
	r.store.Lock()
	defer r.store.Unlock()
	claim, err := r.claims.Load(ctx, client.ID())
	if err != nil {
		return err
	}
	switch {
	case claim == nil:
		r.logger.Info("ignoring progress update without claim", "client", client.ID(), "index", index)
		return nil
	case index < claim.Index:
		r.logger.Info("ignoring non monotonic progress update", "client", client.ID(), "index", index, "current", claim.Index)
		return nil
	case index > len(claim.Steps):
		r.logger.Info("ignoring progress update past claim", "client", client.ID(), "index", index, "steps", len(claim.Steps))
		return nil
	}
	claim.Index = index
	claim.UpdatedAt = clock.Now()
	if err = r.claims.Save(ctx, claim); err != nil {
		return err
	}
	r.modules.SetAllocationState(client, r.store.AllocatedBy(client.ID()), claim.Remaining())
	return nil
}

// Unclaim discards the claim of client. Its allocations are kept.
func (r *Runtime) Unclaim(ctx context.Context, client model.Client) error {
	if client == nil {
		r.logger.Info("ignoring unclaim without client")
		return nil
	}
	r.store.Lock()
	defer r.store.Unlock()
	if err := r.claims.Delete(ctx, client.ID()); err != nil {
		return err
	}
	r.modules.Unclaim(client)
	return nil
}

// ClaimOf returns the current claim of clientID, or nil.
func (r *Runtime) ClaimOf(ctx context.Context, clientID string) (*model.Claim, error) {
	r.store.Lock()
	defer r.store.Unlock()
	claim, err := r.claims.Load(ctx, clientID)
	if claim == nil || err != nil {
		return nil, err
	}
	ret := *claim
	ret.Steps = append([]resource.Set(nil), claim.Steps...)
	return &ret, nil
}

// Allocate requests resources for client and returns immediately.
func (r *Runtime) Allocate(ctx context.Context, client model.Client, resources resource.Set) error {
	if client == nil || resource.IsEmpty(resources) {
		r.logger.Info("ignoring allocation without client or resources")
		return nil
	}
	return r.allocator.Allocate(ctx, client, resources)
}

// AllocateNow immediately allocates every resource of resources that is free
// or already held by client, bypassing the modules and the command queue.
// Resources held by other clients are skipped and logged.
func (r *Runtime) AllocateNow(ctx context.Context, client model.Client, resources resource.Set) {
	if client == nil || resource.IsEmpty(resources) {
		r.logger.Info("ignoring immediate allocation without client or resources")
		return
	}
	granted := resource.NewSet()
	skipped := resource.NewSet()
	r.store.Lock()
	for _, res := range resource.Sorted(resources) {
		if holder, count := r.store.HolderOf(res); holder != "" && holder != client.ID() {
			r.logger.Info("skipping resource held by another client", "client", client.ID(), "resource", res.String(), "holder", holder, "count", count)
			skipped.Add(res)
			continue
		}
		if err := r.store.Allocate(res, client.ID()); err != nil {
			r.store.Unlock()
			panic(err)
		}
		granted.Add(res)
	}
	r.store.Unlock()

	r.progress.Update(progress.Delta{Forced: granted.Cardinality(), Skipped: skipped.Cardinality()})
	metrics.RecordSkipped(skipped.Cardinality())
	if granted.Cardinality() > 0 {
		metrics.RecordOutcome(allocator.OutcomeForced)
		r.allocator.Announce(ctx, allocator.OutcomeForced, client, granted, "")
	}
	if skipped.Cardinality() > 0 {
		r.allocator.Announce(ctx, allocator.OutcomeSkipped, client, skipped, "held by another client")
	}
}

// Free releases one allocation of each resource held by client. Resources
// that became fully free are announced to the modules and deferred requests
// are retried.
func (r *Runtime) Free(ctx context.Context, client model.Client, resources resource.Set) error {
	if client == nil || resource.IsEmpty(resources) {
		r.logger.Info("ignoring free without client or resources")
		return nil
	}
	r.store.Lock()
	defer r.store.Unlock()
	return r.releasedLocked(ctx, client, r.store.Free(client.ID(), resources))
}

// FreeAll releases every resource held by client regardless of its count.
func (r *Runtime) FreeAll(ctx context.Context, client model.Client) error {
	if client == nil {
		r.logger.Info("ignoring free all without client")
		return nil
	}
	r.store.Lock()
	defer r.store.Unlock()
	return r.releasedLocked(ctx, client, r.store.FreeAll(client.ID()))
}

func (r *Runtime) releasedLocked(ctx context.Context, client model.Client, freed resource.Set) error {
	if freed.Cardinality() > 0 {
		r.logger.V(logging.VERBOSE).Info("resources released", "client", client.ID(), "resources", resource.Names(freed))
		if err := r.allocator.Released(ctx, client, freed); err != nil {
			return fmt.Errorf("failed to enqueue release of %v: %w", client.ID(), err)
		}
	}
	if err := r.allocator.Retry(ctx, client); err != nil {
		return fmt.Errorf("failed to enqueue retry: %w", err)
	}
	return nil
}

// Retry re-evaluates every deferred request, for example after a module
// changed its mind.
func (r *Runtime) Retry(ctx context.Context) error {
	return r.allocator.Retry(ctx, model.NewClient("", nil))
}

// PreparationSuccessful reports that moduleName finished preparing the grant
// of resources to client.
func (r *Runtime) PreparationSuccessful(ctx context.Context, moduleName string, client model.Client, resources resource.Set) error {
	if client == nil {
		r.logger.Info("ignoring preparation without client", "module", moduleName)
		return nil
	}
	return r.allocator.PreparationSuccessful(ctx, moduleName, client, resources)
}

// GetAllocations returns the held resources grouped by client id.
func (r *Runtime) GetAllocations() map[string]resource.Set {
	r.store.Lock()
	defer r.store.Unlock()
	return r.store.Snapshot()
}

// Progress returns a snapshot of the allocation counters.
func (r *Runtime) Progress() progress.Progress {
	return r.progress.Snapshot()
}

// Modules returns the registered modules in consultation order.
func (r *Runtime) Modules() []module.Module {
	return r.modules.Modules()
}

// Module returns the registered module named name, or nil.
func (r *Runtime) Module(name string) module.Module {
	for _, m := range r.modules.Modules() {
		if m.Name() == name {
			return m
		}
	}
	return nil
}

// Events returns the event service, or nil when events are disabled.
func (r *Runtime) Events() *event.Service {
	return r.events
}

// environment is the module.Environment handed to modules.
type environment struct {
	runtime *Runtime
}

func (e *environment) Reservations() module.Reader {
	return e.runtime.store
}

func (e *environment) PreparationSuccessful(m module.Module, client model.Client, resources resource.Set) {
	name := ""
	if m != nil {
		name = m.Name()
	}
	if err := e.runtime.PreparationSuccessful(context.Background(), name, client, resources); err != nil {
		e.runtime.logger.Error(err, "failed to enqueue preparation check", "module", name)
	}
}
