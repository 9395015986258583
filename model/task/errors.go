package task

import "fmt"

// Error wraps a failure raised by the worker entry point itself, as opposed
// to pool lifecycle or capacity errors.  The original cause is preserved for
// errors.Is/As.
type Error struct {
	TaskID string
	Cause  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("task %s failed: %v", e.TaskID, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError wraps the handler failure for the given task.
func NewError(taskID string, cause error) *Error {
	return &Error{TaskID: taskID, Cause: cause}
}
