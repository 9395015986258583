package coordinator

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/taskpool/extension"
	"github.com/viant/taskpool/model/task"
	"github.com/viant/taskpool/policy"
	"github.com/viant/taskpool/service/broker"
	"github.com/viant/taskpool/service/dispatch"
	"github.com/viant/taskpool/service/slot"
)

func startService(t *testing.T, options ...Option) *Service {
	srv, err := New(options...)
	require.NoError(t, err)
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() {
		handle := srv.Shutdown(false)
		_, _ = handle.Wait(context.Background())
	})
	return srv
}

func TestNew_RequiresEntryPoint(t *testing.T) {
	_, err := New(WithWorkers(2))
	assert.Error(t, err)
}

func TestService_ConcurrencyCap(t *testing.T) {
	var active, peak int32
	handler := func(ctx context.Context, payload interface{}) (interface{}, error) {
		n := atomic.AddInt32(&active, 1)
		for {
			prev := atomic.LoadInt32(&peak)
			if n <= prev || atomic.CompareAndSwapInt32(&peak, prev, n) {
				break
			}
		}
		time.Sleep(100 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return payload, nil
	}
	srv := startService(t, WithWorkers(2), WithHandler(handler))

	started := time.Now()
	var handles []*broker.Handle
	for i := 0; i < 4; i++ {
		handle, err := srv.Submit(context.Background(), i)
		require.NoError(t, err)
		handles = append(handles, handle)
	}
	for i, handle := range handles {
		output, err := handle.Wait(context.Background())
		assert.NoError(t, err)
		assert.EqualValues(t, i, output)
	}
	elapsed := time.Since(started)

	assert.EqualValues(t, 2, atomic.LoadInt32(&peak))
	assert.GreaterOrEqual(t, elapsed, 200*time.Millisecond)
	assert.Less(t, elapsed, 500*time.Millisecond)
}

func TestService_PriorityOrder(t *testing.T) {
	release := make(chan struct{})
	var mu sync.Mutex
	var order []string
	handler := func(ctx context.Context, payload interface{}) (interface{}, error) {
		name := payload.(string)
		if name == "gate" {
			<-release
			return name, nil
		}
		mu.Lock()
		order = append(order, name)
		mu.Unlock()
		return name, nil
	}
	srv := startService(t, WithWorkers(1), WithHandler(handler))
	ctx := context.Background()

	gate, err := srv.Submit(ctx, "gate")
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	lowA, _ := srv.Submit(ctx, "lowA")
	lowB, _ := srv.Submit(ctx, "lowB")
	high, _ := srv.Submit(ctx, "high", task.WithPriority(10))
	mid, _ := srv.Submit(ctx, "mid", task.WithPriority(5))
	close(release)

	for _, handle := range []*broker.Handle{gate, lowA, lowB, high, mid} {
		_, err := handle.Wait(ctx)
		assert.NoError(t, err)
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"high", "mid", "lowA", "lowB"}, order)
}

func TestService_CancelQueuedNeverExecutes(t *testing.T) {
	release := make(chan struct{})
	var executed atomic.Bool
	handler := func(ctx context.Context, payload interface{}) (interface{}, error) {
		switch payload {
		case "gate":
			<-release
		case "victim":
			executed.Store(true)
		}
		return payload, nil
	}
	srv := startService(t, WithWorkers(1), WithHandler(handler))
	ctx := context.Background()

	gate, err := srv.Submit(ctx, "gate")
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	victim, err := srv.Submit(ctx, "victim")
	require.NoError(t, err)
	victim.Cancel()

	close(release)
	_, err = gate.Wait(ctx)
	require.NoError(t, err)

	_, err = victim.Wait(ctx)
	assert.ErrorIs(t, err, broker.ErrCancelled)

	time.Sleep(50 * time.Millisecond)
	assert.False(t, executed.Load())
}

func TestService_QueueFullRecovery(t *testing.T) {
	release := make(chan struct{})
	handler := func(ctx context.Context, payload interface{}) (interface{}, error) {
		if payload == "gate" {
			<-release
		}
		return payload, nil
	}
	srv := startService(t, WithWorkers(1), WithMaxQueueLength(1), WithHandler(handler))
	ctx := context.Background()

	gate, err := srv.Submit(ctx, "gate")
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	queued, err := srv.Submit(ctx, "queued")
	require.NoError(t, err)

	_, err = srv.Submit(ctx, "overflow")
	assert.ErrorIs(t, err, dispatch.ErrQueueFull)

	close(release)
	_, err = gate.Wait(ctx)
	require.NoError(t, err)
	_, err = queued.Wait(ctx)
	require.NoError(t, err)

	// Capacity freed up; submissions succeed again.
	retried, err := srv.Submit(ctx, "retried")
	require.NoError(t, err)
	output, err := retried.Wait(ctx)
	assert.NoError(t, err)
	assert.Equal(t, "retried", output)
}

func TestService_FaultRespawn(t *testing.T) {
	var faults int32
	handler := func(ctx context.Context, payload interface{}) (interface{}, error) {
		if payload == "boom" {
			panic("kaboom")
		}
		return payload, nil
	}
	srv := startService(t,
		WithWorkers(1),
		WithHandler(handler),
		WithHooks(Hooks{OnFault: func(slotID int, err error) { atomic.AddInt32(&faults, 1) }}),
	)
	ctx := context.Background()

	crashed, err := srv.Submit(ctx, "boom")
	require.NoError(t, err)
	_, err = crashed.Wait(ctx)
	require.Error(t, err)
	assert.True(t, slot.IsFault(err))
	var fault *slot.FaultError
	require.True(t, errors.As(err, &fault))
	assert.Equal(t, crashed.TaskID(), fault.TaskID)

	// The replacement slot keeps the pool at full capacity.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, srv.Capacity())
	survivor, err := srv.Submit(ctx, "ok")
	require.NoError(t, err)
	output, err := survivor.Wait(ctx)
	assert.NoError(t, err)
	assert.Equal(t, "ok", output)
	assert.EqualValues(t, 1, atomic.LoadInt32(&faults))
}

func TestService_FaultWithoutRespawnReducesCapacity(t *testing.T) {
	handler := func(ctx context.Context, payload interface{}) (interface{}, error) {
		if payload == "boom" {
			panic("kaboom")
		}
		return payload, nil
	}
	srv := startService(t, WithWorkers(2), WithRespawnOnFault(false), WithHandler(handler))
	ctx := context.Background()

	crashed, err := srv.Submit(ctx, "boom")
	require.NoError(t, err)
	_, err = crashed.Wait(ctx)
	require.Error(t, err)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, srv.Capacity())

	// The surviving slot still serves work.
	survivor, err := srv.Submit(ctx, "ok")
	require.NoError(t, err)
	output, err := survivor.Wait(ctx)
	assert.NoError(t, err)
	assert.Equal(t, "ok", output)
}

func TestService_TaskError(t *testing.T) {
	boom := errors.New("no such entry")
	handler := func(ctx context.Context, payload interface{}) (interface{}, error) {
		return nil, boom
	}
	srv := startService(t, WithWorkers(1), WithHandler(handler))

	handle, err := srv.Submit(context.Background(), "in")
	require.NoError(t, err)
	_, err = handle.Wait(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.False(t, slot.IsFault(err))

	// An execution error does not kill the slot.
	assert.Equal(t, 1, srv.Capacity())
}

func TestService_TimeoutInFlight(t *testing.T) {
	handler := func(ctx context.Context, payload interface{}) (interface{}, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(300 * time.Millisecond):
			return payload, nil
		}
	}
	srv := startService(t, WithWorkers(1), WithHandler(handler))
	ctx := context.Background()

	slow, err := srv.Submit(ctx, "slow", task.WithTimeout(30*time.Millisecond))
	require.NoError(t, err)
	_, err = slow.Wait(ctx)
	assert.ErrorIs(t, err, broker.ErrTimeout)

	// The unresponsive slot was replaced; the pool keeps serving.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, srv.Capacity())
	quick, err := srv.Submit(ctx, "quick", task.WithTimeout(time.Second))
	require.NoError(t, err)
	output, err := quick.Wait(ctx)
	assert.NoError(t, err)
	assert.Equal(t, "quick", output)
}

func TestService_TimeoutWhileQueued(t *testing.T) {
	release := make(chan struct{})
	var executed atomic.Bool
	handler := func(ctx context.Context, payload interface{}) (interface{}, error) {
		switch payload {
		case "gate":
			<-release
		case "stale":
			executed.Store(true)
		}
		return payload, nil
	}
	srv := startService(t, WithWorkers(1), WithHandler(handler))
	ctx := context.Background()

	gate, err := srv.Submit(ctx, "gate")
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	stale, err := srv.Submit(ctx, "stale", task.WithTimeout(30*time.Millisecond))
	require.NoError(t, err)
	_, err = stale.Wait(ctx)
	assert.ErrorIs(t, err, broker.ErrTimeout)

	close(release)
	_, err = gate.Wait(ctx)
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	assert.False(t, executed.Load())
}

func TestService_DefaultTaskTimeout(t *testing.T) {
	handler := func(ctx context.Context, payload interface{}) (interface{}, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
			return payload, nil
		}
	}
	srv := startService(t, WithWorkers(1), WithHandler(handler), WithDefaultTaskTimeout(30*time.Millisecond))

	handle, err := srv.Submit(context.Background(), "slow")
	require.NoError(t, err)
	_, err = handle.Wait(context.Background())
	assert.ErrorIs(t, err, broker.ErrTimeout)
}

func TestService_ShutdownGraceful(t *testing.T) {
	release := make(chan struct{})
	handler := func(ctx context.Context, payload interface{}) (interface{}, error) {
		if payload == "gate" {
			<-release
		}
		return payload, nil
	}
	srv := startService(t, WithWorkers(1), WithHandler(handler))
	ctx := context.Background()

	gate, err := srv.Submit(ctx, "gate")
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	queued, err := srv.Submit(ctx, "queued")
	require.NoError(t, err)

	done := srv.Shutdown(true)

	// Queued work is rejected; submissions are refused.
	_, err = queued.Wait(ctx)
	assert.ErrorIs(t, err, ErrPoolClosed)
	_, err = srv.Submit(ctx, "late")
	assert.ErrorIs(t, err, ErrPoolShuttingDown)

	// The in-flight task runs to completion.
	close(release)
	output, err := gate.Wait(ctx)
	assert.NoError(t, err)
	assert.Equal(t, "gate", output)

	_, err = done.Wait(ctx)
	assert.NoError(t, err)

	// Repeated shutdown returns the same handle.
	assert.Same(t, done, srv.Shutdown(false))
}

func TestService_ShutdownSubmitRace(t *testing.T) {
	handler := func(ctx context.Context, payload interface{}) (interface{}, error) {
		return payload, nil
	}
	srv := startService(t, WithWorkers(2), WithHandler(handler))
	ctx := context.Background()

	// Hammer Submit from several goroutines while shutdown starts mid-burst.
	// Every handle that Submit hands out must eventually resolve, one way or
	// the other; a handle stuck pending means the task slipped past the
	// shutdown sweep.
	var wg sync.WaitGroup
	handles := make(chan *broker.Handle, 1024)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				handle, err := srv.Submit(ctx, i)
				if err != nil {
					return
				}
				handles <- handle
			}
		}()
	}
	time.Sleep(time.Millisecond)
	done := srv.Shutdown(true)
	wg.Wait()
	close(handles)

	_, err := done.Wait(ctx)
	require.NoError(t, err)

	for handle := range handles {
		waitCtx, cancel := context.WithTimeout(ctx, time.Second)
		_, err := handle.Wait(waitCtx)
		cancel()
		if err != nil {
			assert.ErrorIs(t, err, ErrPoolClosed)
		}
		require.NoError(t, waitCtx.Err(), "handle %v left unresolved", handle.TaskID())
	}
}

func TestService_ShutdownForced(t *testing.T) {
	handler := func(ctx context.Context, payload interface{}) (interface{}, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	srv := startService(t, WithWorkers(1), WithHandler(handler))
	ctx := context.Background()

	inflight, err := srv.Submit(ctx, "inflight")
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	queued, err := srv.Submit(ctx, "queued")
	require.NoError(t, err)

	done := srv.Shutdown(false)
	_, err = inflight.Wait(ctx)
	assert.ErrorIs(t, err, ErrAborted)
	_, err = queued.Wait(ctx)
	assert.ErrorIs(t, err, ErrAborted)

	_, err = done.Wait(ctx)
	assert.NoError(t, err)
}

func TestService_RegistryRouting(t *testing.T) {
	type greeting struct {
		Name string
	}
	registry := extension.NewRegistry()
	registry.RegisterTyped("greet", reflect.TypeOf(&greeting{}), func(ctx context.Context, input interface{}) (interface{}, error) {
		return "hello " + input.(*greeting).Name, nil
	})
	srv := startService(t, WithWorkers(1), WithRegistry(registry))
	ctx := context.Background()

	handle, err := srv.Submit(ctx, map[string]interface{}{"Name": "pool"}, task.WithKind("greet"))
	require.NoError(t, err)
	output, err := handle.Wait(ctx)
	assert.NoError(t, err)
	assert.Equal(t, "hello pool", output)

	// Unknown kinds fail synchronously.
	_, err = srv.Submit(ctx, nil, task.WithKind("missing"))
	assert.Error(t, err)
}

func TestService_PolicyAdmission(t *testing.T) {
	handler := func(ctx context.Context, payload interface{}) (interface{}, error) {
		return payload, nil
	}
	srv := startService(t, WithWorkers(1), WithHandler(handler))
	ctx := policy.WithPolicy(context.Background(), &policy.Policy{Mode: policy.ModeDeny})

	_, err := srv.Submit(ctx, "blocked")
	assert.ErrorIs(t, err, policy.ErrDenied)

	// Without a policy in context the submission goes through.
	handle, err := srv.Submit(context.Background(), "allowed")
	require.NoError(t, err)
	output, err := handle.Wait(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "allowed", output)
}

func TestService_Stats(t *testing.T) {
	handler := func(ctx context.Context, payload interface{}) (interface{}, error) {
		if payload == "boom" {
			panic("kaboom")
		}
		return payload, nil
	}
	srv := startService(t, WithWorkers(2), WithHandler(handler))
	ctx := context.Background()

	ok, err := srv.Submit(ctx, "ok")
	require.NoError(t, err)
	boom, err := srv.Submit(ctx, "boom")
	require.NoError(t, err)
	_, _ = ok.Wait(ctx)
	_, _ = boom.Wait(ctx)
	time.Sleep(50 * time.Millisecond)

	stats := srv.Stats()
	assert.Equal(t, 2, stats.Submitted)
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 0, stats.Running)
	assert.Equal(t, 2, stats.Capacity)
}
