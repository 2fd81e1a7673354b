package cascade

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeWriterEngine is a minimal Engine whose Evaluate flips one output port
// and then has nothing left to do — used to drive the scheduler's active
// loop without a real SoftwareEngine/IR pipeline.
type fakeWriterEngine struct {
	*StubEngine
	vid          VarID
	val          Bits
	readsPending bool
	evalCount    int
}

func newFakeWriterEngine(vid VarID, val Bits) *fakeWriterEngine {
	return &fakeWriterEngine{StubEngine: NewStubEngine(), vid: vid, val: val, readsPending: true}
}

func (e *fakeWriterEngine) ThereAreReads() bool { return e.readsPending }
func (e *fakeWriterEngine) Evaluate() {
	e.evalCount++
	e.readsPending = false
}
func (e *fakeWriterEngine) Writes() []VarID { return []VarID{e.vid} }
func (e *fakeWriterEngine) GetState() EngineState {
	return EngineState{Values: map[VarID]Bits{e.vid: e.val}}
}

type fakeReaderEngine struct {
	*StubEngine
	reads []Bits
}

func (e *fakeReaderEngine) Read(_ VarID, v Bits) { e.reads = append(e.reads, v) }

// TestSchedulerPropagateWritesPublishesToSubscribers exercises the data-plane
// publish side the reference scheduler relies on for every non-inlined
// module instantiation (§1 core component #2, §4.5): an engine's current
// output value reaches every other engine subscribed to that VarID.
func TestSchedulerPropagateWritesPublishesToSubscribers(t *testing.T) {
	const vid VarID = 42
	dp := NewDataPlane()
	writer := newFakeWriterEngine(vid, NewBits(8, 7))
	reader := &fakeReaderEngine{StubEngine: NewStubEngine()}
	dp.Subscribe(vid, reader)

	s := &Scheduler{dataplane: dp}
	m := &Module{Engine: writer}

	s.propagateWrites(m)

	require.Len(t, reader.reads, 1)
	require.Equal(t, uint64(7), reader.reads[0].ToUint64())
}

// TestSchedulerPropagateWritesSkipsEnginesWithNoWrites confirms the
// zero-writes fast path never touches the data plane.
func TestSchedulerPropagateWritesSkipsEnginesWithNoWrites(t *testing.T) {
	dp := NewDataPlane()
	s := &Scheduler{dataplane: dp}
	m := &Module{Engine: NewStubEngine()}

	require.NotPanics(t, func() { s.propagateWrites(m) })
}

// TestDrainActivePropagatesEveryEvaluate drives §4.6's "drain_active" loop
// directly: the writer's single Evaluate must both run and publish its
// output before the pass settles (no further work pending).
func TestDrainActivePropagatesEveryEvaluate(t *testing.T) {
	const vid VarID = 7
	dp := NewDataPlane()
	writer := newFakeWriterEngine(vid, NewBits(4, 3))
	reader := &fakeReaderEngine{StubEngine: NewStubEngine()}
	dp.Subscribe(vid, reader)

	s := &Scheduler{dataplane: dp}
	m := &Module{Engine: writer}

	s.drainActive([]*Module{m}, false)

	require.Equal(t, 1, writer.evalCount)
	require.Len(t, reader.reads, 1)
	require.Equal(t, uint64(3), reader.reads[0].ToUint64())
}
