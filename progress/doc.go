// Package progress defines primitives for reporting and aggregating pool
// activity counters.  It abstracts away the delivery mechanism so that
// callers can consume updates in a uniform way, whether through snapshot
// polling or an onChange callback.
package progress
