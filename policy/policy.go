package policy

import (
	"fmt"
	"strings"
)

// Modes recognised by the policy.
const (
	ModeAuto = "auto" // allocate to allowed clients (default)
	ModeDeny = "deny" // veto every allocation
)

// Policy represents the per-client allocation settings.
//
//   - Mode controls the high-level behaviour (auto / deny).
//   - AllowList and BlockList filter clients by id regardless of Mode.
//
// A nil *Policy allows everything.
type Policy struct {
	Mode      string
	AllowList []string
	BlockList []string
}

// Config represents the declarative, serialisable part of a Policy.
type Config struct {
	Mode      string   `json:"mode,omitempty" yaml:"mode,omitempty"`
	AllowList []string `json:"allow,omitempty" yaml:"allow,omitempty"`
	BlockList []string `json:"block,omitempty" yaml:"block,omitempty"`
}

// Validate checks the mode.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	return validateMode(c.Mode)
}

func validateMode(mode string) error {
	switch mode {
	case "", ModeAuto, ModeDeny:
		return nil
	}
	return fmt.Errorf("unsupported policy mode: %v", mode)
}

// ToConfig converts a runtime Policy into a persistable Config.
func ToConfig(p *Policy) *Config {
	if p == nil {
		return nil
	}
	return &Config{
		Mode:      p.Mode,
		AllowList: append([]string(nil), p.AllowList...),
		BlockList: append([]string(nil), p.BlockList...),
	}
}

// FromConfig converts a stored Config back to a runtime Policy.
func FromConfig(c *Config) *Policy {
	if c == nil {
		return nil
	}
	return &Policy{
		Mode:      c.Mode,
		AllowList: append([]string(nil), c.AllowList...),
		BlockList: append([]string(nil), c.BlockList...),
	}
}

// Clone returns a deep copy of p.
func (p *Policy) Clone() *Policy {
	return FromConfig(ToConfig(p))
}

// IsAllowed evaluates Mode, BlockList and AllowList for clientID. Lists match
// client ids case-insensitively.
func (p *Policy) IsAllowed(clientID string) bool {
	if p == nil {
		return true
	}
	if p.Mode == ModeDeny {
		return false
	}
	normalized := strings.ToLower(clientID)

	// BlockList has priority.
	for _, b := range p.BlockList {
		if normalized == strings.ToLower(b) {
			return false
		}
	}
	if len(p.AllowList) == 0 {
		return true
	}
	for _, a := range p.AllowList {
		if normalized == strings.ToLower(a) {
			return true
		}
	}
	return false
}
