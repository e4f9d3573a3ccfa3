// Package block provides a module that lets only one client at a time occupy
// a named group of resources, such as a narrow corridor or a single-lane
// ramp.
package block
