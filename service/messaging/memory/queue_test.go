package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type testEvent struct {
	TaskID string
	Type   string
}

func TestQueue(t *testing.T) {
	config := DefaultConfig()
	config.RetryDelay = 10 * time.Millisecond
	queue := NewQueue[testEvent](config)

	ctx := context.Background()
	payload := testEvent{TaskID: "t-1", Type: "taskStarted"}

	err := queue.Publish(ctx, &payload)
	assert.NoError(t, err)
	assert.Equal(t, 1, queue.Size())

	message, err := queue.Consume(ctx)
	assert.NoError(t, err)
	assert.NotNil(t, message)
	assert.Equal(t, 0, queue.Size())
	assert.Equal(t, payload, *message.T())

	assert.NoError(t, message.Ack())
	// Double ack is rejected.
	assert.Error(t, message.Ack())
}

func TestQueueRetries(t *testing.T) {
	config := DefaultConfig()
	config.MaxRetries = 1
	config.RetryDelay = 10 * time.Millisecond
	queue := NewQueue[testEvent](config)

	ctx := context.Background()
	payload := testEvent{TaskID: "retry"}
	assert.NoError(t, queue.Publish(ctx, &payload))

	message, err := queue.Consume(ctx)
	assert.NoError(t, err)
	assert.NoError(t, message.Nack(nil))

	// The message is requeued once.
	time.Sleep(30 * time.Millisecond)
	message, err = queue.Consume(ctx)
	assert.NoError(t, err)
	assert.NoError(t, message.Nack(nil))

	// Out of retries - the message is parked, not requeued.
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 0, queue.Size())
	assert.Equal(t, 1, queue.DroppedCount())
}

func TestQueueDropOnFull(t *testing.T) {
	config := DefaultConfig()
	config.QueueBuffer = 2
	config.DropOnFull = true
	queue := NewQueue[testEvent](config)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		payload := testEvent{TaskID: "t"}
		// Publishing past capacity discards instead of blocking.
		assert.NoError(t, queue.Publish(ctx, &payload))
	}
	assert.Equal(t, 2, queue.Size())
}

func TestQueueContextCancellation(t *testing.T) {
	queue := NewQueue[testEvent](DefaultConfig())

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	payload := testEvent{TaskID: "t"}
	assert.Error(t, queue.Publish(cancelled, &payload))

	ctxWithTimeout, cancelTimeout := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancelTimeout()
	_, err := queue.Consume(ctxWithTimeout)
	assert.Error(t, err)

	// The queue stays usable after a cancelled operation.
	ctx := context.Background()
	assert.NoError(t, queue.Publish(ctx, &payload))
	message, err := queue.Consume(ctx)
	assert.NoError(t, err)
	assert.NotNil(t, message)
}
