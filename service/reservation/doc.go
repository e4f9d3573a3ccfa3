// Package reservation keeps the authoritative record of which client holds
// which resource and how many times it has allocated it.
//
// The Store is not self-synchronising: callers take the embedded mutex
// (store.Lock / store.Unlock) around every read or mutation so that a
// check-and-commit sequence spanning several calls is atomic. The allocator
// worker and the scheduler facade share this one lock.
package reservation
