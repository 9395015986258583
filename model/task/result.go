package task

import "time"

// Status tags the outcome of a slot execution.
type Status string

const (
	StatusOk    Status = "ok"
	StatusError Status = "error"
)

// Result is the tagged message a slot posts back after executing a task.
type Result struct {
	TaskID     string
	SlotID     int
	Status     Status
	Output     interface{}
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Elapsed returns the execution wall time.
func (r *Result) Elapsed() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
