// Package coordinator owns the fixed set of worker slots, the dispatch queue
// and the result broker.  It matches pending tasks to free slots, tracks
// in-flight work and exposes the submit/shutdown operations callers use.
// The coordinator itself never blocks on a worker: submissions return a
// handle immediately and results flow back asynchronously through the
// broker.
package coordinator
