// Package taskpool provides a bounded pool of worker slots for CPU-bound
// work with a submit/await contract.
//
// A pool owns a fixed number of slots.  Submissions never block: when every
// slot is busy the task waits in a bounded priority queue, and a full queue
// rejects immediately.  Each submission returns a handle the caller awaits
// or cancels; a slot crash is trapped and surfaces as a fault on that
// task's handle while the pool replaces the slot.
//
// End-users interact with the pool via the Service facade exposed by the
// root package:
//
//	pool, _ := taskpool.NewPool(4, taskpool.WithHandler(compute))
//	_ = pool.Start(ctx)
//	handle, _ := pool.Submit(ctx, payload)
//	output, err := handle.Wait(ctx)
//	pool.Shutdown(true)
//
// Typed routing, lifecycle events, admission policy and tracing are wired
// through the extension, event, policy and tracing sub-packages.
package taskpool
