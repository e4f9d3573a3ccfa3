package dao

// Parameter narrows List results; its meaning is defined by the store's
// matcher.
type Parameter struct {
	Name  string
	Value interface{}
}

// NewParameter creates a parameter holding a single value or a slice of values.
func NewParameter(name string, values ...string) *Parameter {
	if len(values) == 1 {
		return &Parameter{Name: name, Value: values[0]}
	}
	return &Parameter{Name: name, Value: values}
}

// Values returns the parameter value as a string slice.
func (p *Parameter) Values() []string {
	switch actual := p.Value.(type) {
	case string:
		return []string{actual}
	case []string:
		return actual
	}
	return nil
}

// Matches reports whether candidate equals any of the parameter values.
func (p *Parameter) Matches(candidate string) bool {
	for _, value := range p.Values() {
		if value == candidate {
			return true
		}
	}
	return false
}
