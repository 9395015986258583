// Package slot wraps one isolated execution context of the pool.  Every slot
// owns a dedicated goroutine and communicates with the coordinator through
// message channels only; the sole shared state between the two sides is an
// explicitly passed buffer handle.  A slot executes exactly one task at a
// time and posts a tagged result back when it finishes.
package slot
