// Package fleetsched provides a resource allocation scheduler for fleets of
// automated transport vehicles.
//
// Vehicles (clients) request exclusive use of map resources such as points,
// paths and locations. Requests are processed by a single allocator
// goroutine in priority order; requests that cannot be served are deferred
// and retried whenever resources are released. Pluggable modules can veto or
// delay grants:
//
//   - policy - pauses selected vehicles or the whole fleet
//   - block  - keeps a group of resources to a single vehicle
//   - gate   - waits for doors or barriers to open before confirming
//
// End-users typically interact with the scheduler via the Runtime facade
// exposed by the root package:
//
//	srv := fleetsched.New(fleetsched.WithModules(myModule))
//	rt := srv.Runtime()
//	_ = rt.Start(ctx)
//	defer rt.Shutdown(ctx)
//	_ = rt.Allocate(ctx, vehicle, resource.NewSet(resource.Point("P1")))
package fleetsched
