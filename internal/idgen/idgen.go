package idgen

import "github.com/google/uuid"

// NewFunc produces identifiers; tests may replace it.
var NewFunc = func() string { return uuid.New().String() }

// New returns a new globally unique identifier.
func New() string { return NewFunc() }

// NewWithPrefix returns prefix-<id>, used for command and gate request ids.
func NewWithPrefix(prefix string) string {
	if prefix == "" {
		return NewFunc()
	}
	return prefix + "-" + NewFunc()
}
