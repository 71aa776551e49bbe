// Package tasks holds task bodies that are not specific to one caller.
//
// The manager ticks on a single goroutine, so anything that blocks (network
// calls, disk) goes through Async: the work runs elsewhere and the task only
// checks for its result each tick.
package tasks
