package cascade

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInterruptQueueFIFOOrder(t *testing.T) {
	q := NewInterruptQueue()
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		q.ScheduleInterrupt(func() { order = append(order, i) })
	}
	q.DrainAll()
	require.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestInterruptQueueBlockingInterruptWaitsForCompletion(t *testing.T) {
	q := NewInterruptQueue()
	var ran bool
	go func() {
		time.Sleep(10 * time.Millisecond)
		q.DrainAll()
	}()
	q.ScheduleBlockingInterrupt(func() { ran = true })
	require.True(t, ran)
}

func TestInterruptQueueRejectsAfterFinish(t *testing.T) {
	q := NewInterruptQueue()
	q.Finish()
	require.False(t, q.ScheduleInterrupt(func() {}))
}

func TestInterruptQueueScheduleInterruptOrRunsAltAfterFinish(t *testing.T) {
	q := NewInterruptQueue()
	q.Finish()
	var altRan bool
	q.ScheduleInterruptOr(func() {}, func() { altRan = true })
	require.True(t, altRan)
}

func TestInterruptQueueStateSafeInterruptDefersWhileDirty(t *testing.T) {
	q := NewInterruptQueue()
	var mu sync.Mutex
	dirty := true
	var ran bool

	q.ScheduleStateSafeInterrupt(func() {
		ran = true
	}, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return dirty
	})

	// First drain: still dirty, f must not run, but the interrupt
	// re-schedules itself.
	q.DrainAll()
	require.False(t, ran)
	require.Equal(t, 1, q.Len())

	mu.Lock()
	dirty = false
	mu.Unlock()

	q.DrainAll()
	require.True(t, ran)
	require.Equal(t, 0, q.Len())
}

func TestInterruptQueueReentrantScheduleWithinDrain(t *testing.T) {
	q := NewInterruptQueue()
	var order []int
	q.ScheduleInterrupt(func() {
		order = append(order, 1)
		q.ScheduleInterrupt(func() { order = append(order, 2) })
	})
	q.DrainAll()
	require.Equal(t, []int{1, 2}, order)
}
