// Package allocator owns the command queue and is the only component that
// grants resources on behalf of asynchronous allocation requests.
//
// Commands are drained by a single worker goroutine in ascending order of
// (priority, creation time, client id, sequence), where release
// notifications come first, then retries, then preparation checks and
// finally new allocation requests. Requests that cannot be granted are parked
// in a deferred set; every retry pass re-submits the whole set, which costs
// O(deferred) per release.
package allocator
