// Package model contains the in-memory representation of work submitted to
// the pool and its results.
//
// The `task` sub-package defines the immutable descriptor exchanged between
// the coordinator and worker slots; the `buffer` sub-package implements the
// ownership-tracked byte regions a descriptor may carry.  The root model
// package simply aggregates those building blocks so that they can be
// referenced from other parts of the code base with a single import.
package model
