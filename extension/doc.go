// Package extension provides the run-time registry binding task kinds to
// worker entry points and their Go input types.  A pool constructed with a
// registry routes each submitted task by its kind and converts the raw
// payload into the registered input type before invoking the handler.
//
// The registry is normally populated through the public APIs under the root
// taskpool package, therefore most applications do not need to import this
// package directly.
package extension
