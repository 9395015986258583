package task

import (
	"context"

	"github.com/viant/taskpool/model/buffer"
)

type buffersKeyT struct{}

var buffersKey buffersKeyT

// ContextWithBuffers exposes the task's buffers to the worker entry point.
func ContextWithBuffers(ctx context.Context, handles []*buffer.Handle) context.Context {
	if len(handles) == 0 {
		return ctx
	}
	return context.WithValue(ctx, buffersKey, handles)
}

// BuffersFromContext returns the buffers attached to the running task, nil
// when the task carries none.
func BuffersFromContext(ctx context.Context) []*buffer.Handle {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(buffersKey).([]*buffer.Handle); ok {
		return v
	}
	return nil
}
