package cascade

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingEngine struct {
	*StubEngine
	reads []Bits
}

func (e *recordingEngine) Read(vid VarID, v Bits) { e.reads = append(e.reads, v) }

func TestDataPlaneWriteFansOutToEverySubscriber(t *testing.T) {
	dp := NewDataPlane()
	a := &recordingEngine{StubEngine: &StubEngine{}}
	b := &recordingEngine{StubEngine: &StubEngine{}}
	dp.Subscribe(1, a)
	dp.Subscribe(1, b)

	dp.Write(1, NewBits(8, 0x42))

	require.Len(t, a.reads, 1)
	require.Len(t, b.reads, 1)
	require.True(t, a.reads[0].Equal(NewBits(8, 0x42)))
}

func TestDataPlaneUnsubscribeStopsDelivery(t *testing.T) {
	dp := NewDataPlane()
	a := &recordingEngine{StubEngine: &StubEngine{}}
	id := dp.Subscribe(1, a)
	require.True(t, dp.Unsubscribe(1, id))

	dp.Write(1, NewBits(8, 1))
	require.Empty(t, a.reads)
}

func TestDataPlaneRemoveEngineDropsAllSubscriptions(t *testing.T) {
	dp := NewDataPlane()
	a := &recordingEngine{StubEngine: &StubEngine{}}
	dp.Subscribe(1, a)
	dp.Subscribe(2, a)
	require.Equal(t, 1, dp.SubscriberCount(1))

	dp.RemoveEngine(a)

	require.Equal(t, 0, dp.SubscriberCount(1))
	require.Equal(t, 0, dp.SubscriberCount(2))
	require.False(t, dp.HasSubscribers(1))
}

func TestDataPlaneHasSubscribers(t *testing.T) {
	dp := NewDataPlane()
	require.False(t, dp.HasSubscribers(1))
	dp.Subscribe(1, &recordingEngine{StubEngine: &StubEngine{}})
	require.True(t, dp.HasSubscribers(1))
}
