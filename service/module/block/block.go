package block

import (
	"fmt"

	"github.com/go-logr/logr"

	"github.com/viant/fleetsched/internal/logging"
	"github.com/viant/fleetsched/model"
	"github.com/viant/fleetsched/model/resource"
	"github.com/viant/fleetsched/service/module"
)

// Name is the module name reported in logs and metrics.
const Name = "block"

// Block is a named group of resources occupied by at most one client.
type Block struct {
	Name      string   `json:"name" yaml:"name"`
	Resources []string `json:"resources" yaml:"resources"`
}

// Config lists the blocks guarded by the module.
type Config struct {
	Blocks []Block `json:"blocks,omitempty" yaml:"blocks,omitempty"`
}

type group struct {
	name    string
	members resource.Set
}

func (g *group) overlaps(resources resource.Set) bool {
	for _, r := range resource.Sorted(resources) {
		if g.members.Contains(r) {
			return true
		}
	}
	return false
}

// Module vetoes grants that would put a second client into an occupied block.
type Module struct {
	module.Base
	groups []*group
	logger logr.Logger
}

// New creates a block module from config. Resource names use the
// "kind/name" notation.
func New(config Config, opts ...Option) (*Module, error) {
	ret := &Module{Base: module.NewBase(Name)}
	for _, opt := range opts {
		opt(ret)
	}
	ret.logger = logging.OrDiscard(ret.logger).WithName(Name)
	seen := make(map[string]bool)
	for _, block := range config.Blocks {
		if block.Name == "" {
			return nil, fmt.Errorf("block name was empty")
		}
		if seen[block.Name] {
			return nil, fmt.Errorf("duplicate block: %v", block.Name)
		}
		seen[block.Name] = true
		members := resource.NewSet()
		for _, text := range block.Resources {
			r, err := resource.Parse(text)
			if err != nil {
				return nil, fmt.Errorf("invalid resource in block %v: %w", block.Name, err)
			}
			members.Add(r)
		}
		if members.Cardinality() == 0 {
			return nil, fmt.Errorf("block %v has no resources", block.Name)
		}
		ret.groups = append(ret.groups, &group{name: block.Name, members: members})
	}
	return ret, nil
}

// Blocks returns the names of blocks containing r.
func (m *Module) Blocks(r resource.Resource) []string {
	var ret []string
	for _, g := range m.groups {
		if g.members.Contains(r) {
			ret = append(ret, g.name)
		}
	}
	return ret
}

// MayAllocate denies resources of a block while another client holds any
// member of that block.
func (m *Module) MayAllocate(client model.Client, resources resource.Set) bool {
	env := m.Environment()
	if env == nil || resources == nil {
		return true
	}
	reservations := env.Reservations()
	for _, g := range m.groups {
		if !g.overlaps(resources) {
			continue
		}
		for _, member := range resource.Sorted(g.members) {
			holder, _ := reservations.HolderOf(member)
			if holder != "" && holder != client.ID() {
				m.logger.V(logging.DEBUG).Info("block occupied", "block", g.name, "client", client.ID(), "occupant", holder)
				return false
			}
		}
	}
	return true
}
