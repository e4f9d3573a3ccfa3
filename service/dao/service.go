// Package dao defines a generic keyed storage contract used for claims and
// gate requests.
package dao

import (
	"context"
)

// Service stores entities of T keyed by K.
type Service[K comparable, T any] interface {
	Save(ctx context.Context, t *T) error

	// Load returns nil and no error when id is unknown.
	Load(ctx context.Context, id K) (*T, error)

	Delete(ctx context.Context, id K) error

	// List returns the entities matching every parameter.
	List(ctx context.Context, parameters ...*Parameter) ([]*T, error)
}
