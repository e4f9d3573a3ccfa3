package reservation

import (
	"fmt"

	"github.com/viant/fleetsched/model/resource"
)

// ConsistencyError reports an attempt to allocate a resource that is held by
// another client. It indicates a broken locking discipline and is raised as
// a panic by the allocator.
type ConsistencyError struct {
	Resource resource.Resource
	Holder   string
	Client   string
	Count    int
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("resource %v is already allocated by %v (count %d), cannot allocate to %v", e.Resource, e.Holder, e.Count, e.Client)
}
