package model

import (
	"time"

	"github.com/viant/fleetsched/model/resource"
)

// Claim describes the ordered resource sets a client expects to need.
// Index points at the first step not yet passed.
type Claim struct {
	ClientID  string         `json:"clientId" yaml:"clientId"`
	Steps     []resource.Set `json:"-" yaml:"-"`
	Index     int            `json:"index" yaml:"index"`
	UpdatedAt time.Time      `json:"updatedAt" yaml:"updatedAt"`
}

// Remaining returns the steps from Index onwards.
func (c *Claim) Remaining() []resource.Set {
	if c == nil || c.Index >= len(c.Steps) {
		return nil
	}
	return c.Steps[c.Index:]
}

// Resources returns the union of all remaining steps.
func (c *Claim) Resources() resource.Set {
	ret := resource.NewSet()
	for _, step := range c.Remaining() {
		if step != nil {
			ret = ret.Union(step)
		}
	}
	return ret
}
