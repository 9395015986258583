package slot

import (
	"errors"
	"fmt"
)

// ErrBusy is returned when a task is assigned to a slot that is not idle.
var ErrBusy = errors.New("slot: not idle")

// ErrTerminated is returned when a task is assigned to a terminating or dead
// slot.
var ErrTerminated = errors.New("slot: terminated")

// FaultError reports an unrecoverable failure of the execution context
// itself (a panic in the entry point), as opposed to an ordinary error the
// entry point returned.
type FaultError struct {
	SlotID int
	TaskID string
	Cause  error
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("slot %d faulted while running task %s: %v", e.SlotID, e.TaskID, e.Cause)
}

func (e *FaultError) Unwrap() error {
	return e.Cause
}

// IsFault reports whether err carries a slot fault.
func IsFault(err error) bool {
	var fault *FaultError
	return errors.As(err, &fault)
}
