package event

import (
	"context"
	"errors"
	"log"
	"time"
)

// Listener consumes events from a publisher on its own goroutine and invokes
// the handler for each.
type Listener[T any] struct {
	publisher *Publisher[T]
	handler   func(*Event[T])
	ctx       context.Context
	cancelFn  context.CancelFunc
}

// NewListener creates a listener over the supplied publisher.
func NewListener[T any](publisher *Publisher[T], handler func(*Event[T])) *Listener[T] {
	ctx, cancelFn := context.WithCancel(context.Background())
	return &Listener[T]{
		publisher: publisher,
		handler:   handler,
		ctx:       ctx,
		cancelFn:  cancelFn,
	}
}

// Stop terminates the listener goroutine.
func (l *Listener[T]) Stop() {
	l.cancelFn()
}

// Start launches the consume loop.
func (l *Listener[T]) Start() {
	go func() {
		for {
			event, err := l.publisher.Consume(l.ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				log.Printf("error consuming event: %v", err)
				continue
			}
			if event == nil {
				// Journal-backed queues poll; avoid a busy loop.
				select {
				case <-l.ctx.Done():
					return
				case <-time.After(50 * time.Millisecond):
				}
				continue
			}
			l.handler(event)
		}
	}()
}
