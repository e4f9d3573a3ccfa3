package resource

import (
	"fmt"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// Kind classifies a resource within the plant topology.
type Kind string

const (
	KindPoint    Kind = "point"
	KindPath     Kind = "path"
	KindLocation Kind = "location"
	KindGeneric  Kind = "generic"
)

// Resource identifies an exclusively usable unit of the plant (a point, a
// path segment, a location). Two resources are the same when kind and name
// match, so values can be used as map keys.
type Resource struct {
	Kind Kind   `json:"kind" yaml:"kind"`
	Name string `json:"name" yaml:"name"`
}

// String returns kind/name.
func (r Resource) String() string {
	if r.Kind == "" {
		return r.Name
	}
	return string(r.Kind) + "/" + r.Name
}

// Point returns a point resource.
func Point(name string) Resource { return Resource{Kind: KindPoint, Name: name} }

// Path returns a path resource.
func Path(name string) Resource { return Resource{Kind: KindPath, Name: name} }

// Location returns a location resource.
func Location(name string) Resource { return Resource{Kind: KindLocation, Name: name} }

// Generic returns a resource of the generic kind.
func Generic(name string) Resource { return Resource{Kind: KindGeneric, Name: name} }

// Parse converts "kind/name" into a Resource; a value without a kind prefix
// becomes a generic resource.
func Parse(text string) (Resource, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Resource{}, fmt.Errorf("empty resource name")
	}
	index := strings.Index(text, "/")
	if index == -1 {
		return Generic(text), nil
	}
	kind, name := Kind(text[:index]), text[index+1:]
	if name == "" {
		return Resource{}, fmt.Errorf("invalid resource %q: missing name", text)
	}
	switch kind {
	case KindPoint, KindPath, KindLocation, KindGeneric:
	default:
		return Resource{}, fmt.Errorf("invalid resource %q: unsupported kind %q", text, kind)
	}
	return Resource{Kind: kind, Name: name}, nil
}

// Set is a thread-safe set of resources.
type Set = mapset.Set[Resource]

// NewSet creates a set holding the supplied resources.
func NewSet(resources ...Resource) Set {
	return mapset.NewSet[Resource](resources...)
}

// Names returns the sorted string form of the set, handy for logs and events.
func Names(resources Set) []string {
	if resources == nil {
		return nil
	}
	ret := make([]string, 0, resources.Cardinality())
	resources.Each(func(r Resource) bool {
		ret = append(ret, r.String())
		return false
	})
	sort.Strings(ret)
	return ret
}

// Sorted returns the set members ordered by kind then name.
func Sorted(resources Set) []Resource {
	if resources == nil {
		return nil
	}
	ret := resources.ToSlice()
	sort.Slice(ret, func(i, j int) bool {
		if ret[i].Kind != ret[j].Kind {
			return ret[i].Kind < ret[j].Kind
		}
		return ret[i].Name < ret[j].Name
	})
	return ret
}

// IsEmpty reports whether resources is nil or has no members.
func IsEmpty(resources Set) bool {
	return resources == nil || resources.Cardinality() == 0
}
