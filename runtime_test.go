package cascade

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRuntimeLifecycleEvalAndFinish(t *testing.T) {
	rt, err := NewRuntime(WithWorkerPoolSize(1))
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		rt.Run(context.Background())
		close(done)
	}()

	require.NoError(t, rt.Eval(nil))
	rt.Finish(0)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Finish")
	}
}

func TestRuntimeRunStopsOnContextCancel(t *testing.T) {
	rt, err := NewRuntime()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rt.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

func TestRuntimeEvalAfterFinishReturnsTerminated(t *testing.T) {
	rt, err := NewRuntime()
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		rt.Run(context.Background())
		close(done)
	}()
	rt.Finish(0)
	<-done

	require.ErrorIs(t, rt.Eval(nil), ErrRuntimeTerminated)
}

func TestGetGoroutineIDStableWithinGoroutineDistinctAcross(t *testing.T) {
	a := getGoroutineID()
	b := getGoroutineID()
	require.Equal(t, a, b)

	other := make(chan uint64, 1)
	go func() { other <- getGoroutineID() }()
	require.NotEqual(t, a, <-other)
}
