// Package buffer implements the shared-buffer handle passed between a pool
// caller and a worker slot.  A handle either *transfers* its backing region
// (ownership moves, the sender side is detached and every further access
// fails with ErrDetached) or *shares* it (both sides retain access; callers
// must coordinate overlapping writes themselves – the pool does not arbitrate
// memory races).
package buffer

import (
	"errors"
	"sync"
)

// ErrDetached is returned when a handle is used after its backing region has
// been transferred away.
var ErrDetached = errors.New("buffer: handle detached after transfer")

// Handle references a contiguous byte region.  The zero value is not usable;
// construct handles with New or FromBytes.
type Handle struct {
	mu       sync.Mutex
	data     []byte
	detached bool
}

// New allocates a zeroed region of the given size.
func New(size int) *Handle {
	return &Handle{data: make([]byte, size)}
}

// FromBytes wraps the supplied slice without copying.  The caller must not
// retain the slice unless it intends shared semantics.
func FromBytes(data []byte) *Handle {
	return &Handle{data: data}
}

// Len returns the region size, or 0 when detached.
func (h *Handle) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.detached {
		return 0
	}
	return len(h.data)
}

// Bytes exposes the backing region.  After Transfer the sender's handle
// returns ErrDetached instead of stale data.
func (h *Handle) Bytes() ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.detached {
		return nil, ErrDetached
	}
	return h.data, nil
}

// Detached reports whether the backing region has been transferred away.
func (h *Handle) Detached() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.detached
}

// Transfer moves ownership of the backing region to a fresh handle and
// detaches the receiver.  The returned handle is the only valid reference to
// the region from this point on.
func (h *Handle) Transfer() (*Handle, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.detached {
		return nil, ErrDetached
	}
	moved := &Handle{data: h.data}
	h.data = nil
	h.detached = true
	return moved, nil
}

// Share returns a second handle over the same backing region.  Both handles
// remain valid and observe each other's writes; non-overlapping access is the
// caller's contract.
func (h *Handle) Share() (*Handle, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.detached {
		return nil, ErrDetached
	}
	return &Handle{data: h.data}, nil
}
