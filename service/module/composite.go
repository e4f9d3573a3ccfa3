package module

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/viant/fleetsched/internal/logging"
	"github.com/viant/fleetsched/metrics"
	"github.com/viant/fleetsched/model"
	"github.com/viant/fleetsched/model/resource"
)

const (
	HookMayAllocate           = "mayAllocate"
	HookPrepareAllocation     = "prepareAllocation"
	HookHasPreparedAllocation = "hasPreparedAllocation"
	HookAllocationReleased    = "allocationReleased"
	HookSetAllocationState    = "setAllocationState"
	HookClaim                 = "claim"
	HookUnclaim               = "unclaim"
)

// Composite aggregates modules in registration order. MayAllocate and
// HasPreparedAllocation are the logical AND of all modules; notifications
// fan out to every module in order.
type Composite struct {
	modules []Module
	logger  logr.Logger
}

// NewComposite returns a composite of modules.
func NewComposite(logger logr.Logger, modules ...Module) *Composite {
	return &Composite{
		modules: append([]Module(nil), modules...),
		logger:  logging.OrDiscard(logger).WithName("modules"),
	}
}

// Name returns the composite name.
func (c *Composite) Name() string { return "composite" }

// Modules returns the registered modules in order.
func (c *Composite) Modules() []Module {
	return append([]Module(nil), c.modules...)
}

// Add appends modules; it must be called before Initialize.
func (c *Composite) Add(modules ...Module) {
	c.modules = append(c.modules, modules...)
}

// Initialize initializes every module even when some fail, and returns all
// failures joined.
func (c *Composite) Initialize(ctx context.Context, env Environment) error {
	var errs []error
	for _, m := range c.modules {
		if err := m.Initialize(ctx, env); err != nil {
			c.logger.Error(err, "failed to initialize module", "module", m.Name())
			errs = append(errs, fmt.Errorf("failed to initialize module %v: %w", m.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Terminate terminates every module even when some fail, and returns all
// failures joined.
func (c *Composite) Terminate(ctx context.Context) error {
	var errs []error
	for _, m := range c.modules {
		if err := m.Terminate(ctx); err != nil {
			c.logger.Error(err, "failed to terminate module", "module", m.Name())
			errs = append(errs, fmt.Errorf("failed to terminate module %v: %w", m.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (c *Composite) Claim(client model.Client, steps []resource.Set) {
	for _, m := range c.modules {
		before := time.Now()
		m.Claim(client, steps)
		metrics.RecordModuleLatency(HookClaim, m.Name(), time.Since(before))
	}
}

func (c *Composite) Unclaim(client model.Client) {
	for _, m := range c.modules {
		before := time.Now()
		m.Unclaim(client)
		metrics.RecordModuleLatency(HookUnclaim, m.Name(), time.Since(before))
	}
}

func (c *Composite) SetAllocationState(client model.Client, allocated resource.Set, remaining []resource.Set) {
	for _, m := range c.modules {
		before := time.Now()
		m.SetAllocationState(client, allocated, remaining)
		metrics.RecordModuleLatency(HookSetAllocationState, m.Name(), time.Since(before))
	}
}

// MayAllocate stops at the first module vetoing the grant.
func (c *Composite) MayAllocate(client model.Client, resources resource.Set) bool {
	loggerDebug := c.logger.V(logging.DEBUG)
	for _, m := range c.modules {
		before := time.Now()
		allowed := m.MayAllocate(client, resources)
		metrics.RecordModuleLatency(HookMayAllocate, m.Name(), time.Since(before))
		if !allowed {
			metrics.RecordVeto(m.Name())
			loggerDebug.Info("module vetoed allocation", "module", m.Name(), "client", client.ID(), "resources", resource.Names(resources))
			return false
		}
	}
	return true
}

func (c *Composite) PrepareAllocation(client model.Client, resources resource.Set) {
	for _, m := range c.modules {
		before := time.Now()
		m.PrepareAllocation(client, resources)
		metrics.RecordModuleLatency(HookPrepareAllocation, m.Name(), time.Since(before))
	}
}

// HasPreparedAllocation stops at the first module still preparing.
func (c *Composite) HasPreparedAllocation(client model.Client, resources resource.Set) bool {
	for _, m := range c.modules {
		before := time.Now()
		prepared := m.HasPreparedAllocation(client, resources)
		metrics.RecordModuleLatency(HookHasPreparedAllocation, m.Name(), time.Since(before))
		if !prepared {
			c.logger.V(logging.DEBUG).Info("module has not prepared allocation", "module", m.Name(), "client", client.ID())
			return false
		}
	}
	return true
}

func (c *Composite) AllocationReleased(client model.Client, resources resource.Set) {
	for _, m := range c.modules {
		before := time.Now()
		m.AllocationReleased(client, resources)
		metrics.RecordModuleLatency(HookAllocationReleased, m.Name(), time.Since(before))
	}
}

var _ Module = (*Composite)(nil)
