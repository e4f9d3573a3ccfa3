// Package model contains the types shared by every layer of the scheduler:
// the Client contract through which grants are confirmed and the Claim that
// describes a client's ordered future resource needs.
//
// Resource identity and resource sets live in the `resource` sub-package.
package model
