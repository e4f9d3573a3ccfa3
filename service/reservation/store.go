package reservation

import (
	"sync"

	"github.com/go-logr/logr"

	"github.com/viant/fleetsched/internal/logging"
	"github.com/viant/fleetsched/model/resource"
)

// Store maps resources to their reservation entries. Entries are created on
// first access and never removed; a released entry is reset to empty.
//
// All methods expect the caller to hold the store lock.
type Store struct {
	sync.Mutex
	entries map[resource.Resource]*Entry
	logger  logr.Logger
}

// New creates an empty store.
func New(logger logr.Logger) *Store {
	return &Store{
		entries: make(map[resource.Resource]*Entry),
		logger:  logging.OrDiscard(logger).WithName("reservation"),
	}
}

// EntryFor returns the entry of r, creating an empty one when needed.
func (s *Store) EntryFor(r resource.Resource) *Entry {
	entry, ok := s.entries[r]
	if !ok {
		entry = &Entry{}
		s.entries[r] = entry
	}
	return entry
}

// HolderOf returns the holder and count of r without creating an entry.
func (s *Store) HolderOf(r resource.Resource) (string, int) {
	entry, ok := s.entries[r]
	if !ok {
		return "", 0
	}
	return entry.Holder, entry.Count
}

// Available reports whether every resource is free or held by clientID.
func (s *Store) Available(resources resource.Set, clientID string) bool {
	if resources == nil {
		return true
	}
	available := true
	resources.Each(func(r resource.Resource) bool {
		if entry, ok := s.entries[r]; ok && !entry.IsAvailableFor(clientID) {
			available = false
			return true
		}
		return false
	})
	return available
}

// Allocate records one more allocation of r by clientID. Allocating a
// resource held by a different client returns a *ConsistencyError and leaves
// the entry untouched.
func (s *Store) Allocate(r resource.Resource, clientID string) error {
	entry := s.EntryFor(r)
	if !entry.IsAvailableFor(clientID) {
		return &ConsistencyError{Resource: r, Holder: entry.Holder, Client: clientID, Count: entry.Count}
	}
	entry.Holder = clientID
	entry.Count++
	return nil
}

// Free releases one allocation of every resource in resources held by
// clientID. Resources not held by clientID are logged and skipped. The
// returned set holds the resources whose count dropped to zero.
func (s *Store) Free(clientID string, resources resource.Set) resource.Set {
	freed := resource.NewSet()
	if resources == nil {
		return freed
	}
	for _, r := range resource.Sorted(resources) {
		entry, ok := s.entries[r]
		if !ok || !entry.IsHeldBy(clientID) {
			holder := ""
			if ok {
				holder = entry.Holder
			}
			s.logger.Info("ignoring release of resource not held by client", "client", clientID, "resource", r.String(), "holder", holder)
			continue
		}
		entry.Count--
		if entry.Count == 0 {
			entry.reset()
			freed.Add(r)
		}
	}
	return freed
}

// FreeAll releases every resource held by clientID regardless of its count
// and returns the released resources.
func (s *Store) FreeAll(clientID string) resource.Set {
	freed := resource.NewSet()
	for r, entry := range s.entries {
		if entry.IsHeldBy(clientID) {
			entry.reset()
			freed.Add(r)
		}
	}
	return freed
}

// AllocatedBy returns the resources currently held by clientID.
func (s *Store) AllocatedBy(clientID string) resource.Set {
	ret := resource.NewSet()
	for r, entry := range s.entries {
		if entry.IsHeldBy(clientID) {
			ret.Add(r)
		}
	}
	return ret
}

// Snapshot returns the held resources grouped by client id.
func (s *Store) Snapshot() map[string]resource.Set {
	ret := make(map[string]resource.Set)
	for r, entry := range s.entries {
		if entry.IsFree() {
			continue
		}
		held, ok := ret[entry.Holder]
		if !ok {
			held = resource.NewSet()
			ret[entry.Holder] = held
		}
		held.Add(r)
	}
	return ret
}

// Len returns the number of entries ever touched.
func (s *Store) Len() int {
	return len(s.entries)
}
