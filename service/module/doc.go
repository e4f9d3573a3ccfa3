// Package module defines the policy extension contract consulted by the
// allocator and the Composite that aggregates several modules behind it.
//
// Every hook is invoked while the reservation store lock is held, so hooks
// never run concurrently with each other or with store mutations. Hooks must
// not call back into the scheduler facade except through
// Environment.PreparationSuccessful, which only enqueues a command.
package module
