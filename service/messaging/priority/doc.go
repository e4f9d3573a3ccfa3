// Package priority provides an unbounded, ordered in-memory messaging.Queue.
// The allocator uses it so that release notifications overtake retries and
// retries overtake new allocation requests.
package priority
