package event

import (
	"context"

	"github.com/viant/taskpool/internal/clock"
	"github.com/viant/taskpool/service/messaging"
)

// Publisher publishes typed events; when wired to a service it mirrors every
// event onto the untyped stream so catch-all listeners see it too.  The
// mirror only happens while a catch-all listener is active, otherwise the
// untyped queue would fill with events nobody drains.
type Publisher[T any] struct {
	queue     messaging.Queue[Event[T]]
	anyQueue  messaging.Queue[Event[any]]
	anyActive func() bool
}

// NewPublisher creates a publisher over the supplied queue.
func NewPublisher[T any](queue messaging.Queue[Event[T]]) *Publisher[T] {
	return &Publisher[T]{queue: queue}
}

// Publish stamps and enqueues the event.
func (p *Publisher[T]) Publish(ctx context.Context, event *Event[T]) error {
	event.CreatedAt = clock.Now()
	if p.anyQueue != nil && (p.anyActive == nil || p.anyActive()) {
		_ = p.anyQueue.Publish(ctx, &Event[any]{
			Context:   event.Context,
			CreatedAt: event.CreatedAt,
			Metadata:  event.Metadata,
			Data:      event.Data,
		})
	}
	return p.queue.Publish(ctx, event)
}

// Consume retrieves and acknowledges the next event.
func (p *Publisher[T]) Consume(ctx context.Context) (*Event[T], error) {
	msg, err := p.queue.Consume(ctx)
	if err != nil || msg == nil {
		return nil, err
	}
	if err = msg.Ack(); err != nil {
		return nil, err
	}
	return msg.T(), nil
}
