package model

import "github.com/viant/fleetsched/model/resource"

// Client represents a consumer of resources, typically a vehicle.
type Client interface {
	// ID returns a stable identifier, unique across the fleet.
	ID() string

	// AllocationSuccessful is called once the requested resources were
	// committed. Returning false rejects the grant and the resources are
	// rolled back.
	AllocationSuccessful(resources resource.Set) bool
}

type funcClient struct {
	id     string
	accept func(resources resource.Set) bool
}

func (c *funcClient) ID() string { return c.id }

func (c *funcClient) AllocationSuccessful(resources resource.Set) bool {
	if c.accept == nil {
		return true
	}
	return c.accept(resources)
}

// NewClient adapts accept into a Client. A nil accept confirms every grant.
func NewClient(id string, accept func(resources resource.Set) bool) Client {
	return &funcClient{id: id, accept: accept}
}
