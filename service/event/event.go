// Package event fans pool lifecycle notifications out to listeners through
// the messaging queue abstraction.  Events are typed: a listener can
// subscribe to one payload type, or to everything via the untyped stream.
package event

import (
	"time"

	"github.com/viant/taskpool/internal/clock"
)

// Type enumerates pool lifecycle notifications.
type Type string

const (
	TypeTaskStarted     Type = "taskStarted"
	TypeTaskCompleted   Type = "taskCompleted"
	TypeTaskFailed      Type = "taskFailed"
	TypeSlotFault       Type = "slotFault"
	TypeSlotRespawned   Type = "slotRespawned"
	TypeCapacityReduced Type = "capacityReduced"
)

// Context identifies the task and slot an event relates to.
type Context struct {
	TaskID      string `json:"taskID"`
	Kind        string `json:"kind,omitempty"`
	SlotID      int    `json:"slotID"`
	EventType   Type   `json:"eventType"`
	TimeTakenMs int    `json:"timeTakenMs,omitempty"`
}

// Event wraps a typed payload with its pool context.
type Event[T any] struct {
	Context   *Context               `json:"context"`
	CreatedAt time.Time              `json:"createdAt"`
	Metadata  map[string]interface{} `json:"metadata"`
	Data      T                      `json:"data"`
}

// NewEvent creates an event stamped with the current time.
func NewEvent[T any](context *Context, data T) *Event[T] {
	return &Event[T]{
		Context:   context,
		CreatedAt: clock.Now(),
		Metadata:  make(map[string]interface{}),
		Data:      data,
	}
}
