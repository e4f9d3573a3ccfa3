package policy

import (
	"strings"
	"sync"

	"github.com/go-logr/logr"

	"github.com/viant/fleetsched/internal/logging"
	"github.com/viant/fleetsched/model"
	"github.com/viant/fleetsched/model/resource"
	"github.com/viant/fleetsched/service/module"
)

// Name is the module name reported in logs and metrics.
const Name = "policy"

// Module vetoes grants to clients the policy does not allow. Changes take
// effect on the next allocation attempt; deferred requests are re-evaluated
// on the next retry.
type Module struct {
	module.Base
	mux    sync.RWMutex
	policy *Policy
	logger logr.Logger
}

// NewModule creates a policy module; a nil config allows every client.
func NewModule(config *Config, logger logr.Logger) (*Module, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	policy := FromConfig(config)
	if policy == nil {
		policy = &Policy{Mode: ModeAuto}
	}
	return &Module{
		Base:   module.NewBase(Name),
		policy: policy,
		logger: logging.OrDiscard(logger).WithName(Name),
	}, nil
}

// Policy returns a copy of the current policy.
func (m *Module) Policy() *Policy {
	m.mux.RLock()
	defer m.mux.RUnlock()
	return m.policy.Clone()
}

// Update replaces the policy.
func (m *Module) Update(p *Policy) error {
	if p == nil {
		p = &Policy{Mode: ModeAuto}
	}
	if err := validateMode(p.Mode); err != nil {
		return err
	}
	m.mux.Lock()
	m.policy = p.Clone()
	m.mux.Unlock()
	m.logger.Info("policy updated", "mode", p.Mode, "allow", p.AllowList, "block", p.BlockList)
	return nil
}

// SetMode switches the policy mode.
func (m *Module) SetMode(mode string) error {
	if err := validateMode(mode); err != nil {
		return err
	}
	m.mux.Lock()
	m.policy.Mode = mode
	m.mux.Unlock()
	m.logger.Info("policy mode changed", "mode", mode)
	return nil
}

// Pause blocks clientID.
func (m *Module) Pause(clientID string) {
	m.mux.Lock()
	defer m.mux.Unlock()
	for _, b := range m.policy.BlockList {
		if strings.EqualFold(b, clientID) {
			return
		}
	}
	m.policy.BlockList = append(m.policy.BlockList, clientID)
	m.logger.Info("client paused", "client", clientID)
}

// Resume removes clientID from the block list.
func (m *Module) Resume(clientID string) {
	m.mux.Lock()
	defer m.mux.Unlock()
	kept := m.policy.BlockList[:0]
	for _, b := range m.policy.BlockList {
		if !strings.EqualFold(b, clientID) {
			kept = append(kept, b)
		}
	}
	m.policy.BlockList = kept
	m.logger.Info("client resumed", "client", clientID)
}

// MayAllocate applies the policy to the requesting client.
func (m *Module) MayAllocate(client model.Client, _ resource.Set) bool {
	m.mux.RLock()
	allowed := m.policy.IsAllowed(client.ID())
	m.mux.RUnlock()
	if !allowed {
		m.logger.V(logging.DEBUG).Info("allocation paused by policy", "client", client.ID())
	}
	return allowed
}
