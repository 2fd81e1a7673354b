package cascade

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeStatefulEngine is a StubEngine that actually remembers
// GetState/SetState and GetInput/SetInput, standing in for a real engine
// in save/restore round-trip tests without needing a full module compile.
type fakeStatefulEngine struct {
	*StubEngine
	state EngineState
	input EngineInput
}

func newFakeStatefulEngine() *fakeStatefulEngine {
	return &fakeStatefulEngine{StubEngine: &StubEngine{}}
}

func (e *fakeStatefulEngine) GetState() EngineState { return e.state }
func (e *fakeStatefulEngine) SetState(s EngineState) { e.state = s }
func (e *fakeStatefulEngine) GetInput() EngineInput  { return e.input }
func (e *fakeStatefulEngine) SetInput(s EngineInput) { e.input = s }

func buildTestTree(root, child Engine) *Module {
	r := &Module{psrc: newModuleDeclaration(SourceLoc{}, RootModuleName), Engine: root}
	c := &Module{InstancePath: "counter", psrc: newModuleDeclaration(SourceLoc{}, "Counter"), Engine: child}
	r.Children = []*Module{c}
	return r
}

func TestSaveRestoreRoundTrip(t *testing.T) {
	rootEngine := newFakeStatefulEngine()
	rootEngine.state = EngineState{Values: map[VarID]Bits{
		0: NewBits(8, 42),
		1: NewSignedBits(4, -3),
		2: NewRealBits(3.5),
	}}
	childEngine := newFakeStatefulEngine()
	childEngine.input = EngineInput{Values: map[VarID]Bits{10: NewBits(3, 7)}}

	src := buildTestTree(rootEngine, childEngine)

	var buf bytes.Buffer
	require.NoError(t, SaveModuleTree(&buf, src))

	freshRoot := buildTestTree(newFakeStatefulEngine(), newFakeStatefulEngine())
	require.NoError(t, RestartModuleTree(bytes.NewReader(buf.Bytes()), freshRoot))

	gotRoot := freshRoot.Engine.(*fakeStatefulEngine)
	require.True(t, gotRoot.state.Values[0].Equal(NewBits(8, 42)))
	require.Equal(t, int64(-3), gotRoot.state.Values[1].ToInt64())
	require.InDelta(t, 3.5, gotRoot.state.Values[2].ToFloat64(), 1e-9)

	gotChild := freshRoot.Children[0].Engine.(*fakeStatefulEngine)
	require.True(t, gotChild.input.Values[10].Equal(NewBits(3, 7)))
}

func TestSaveRestoreSkipsMissingInstance(t *testing.T) {
	src := buildTestTree(newFakeStatefulEngine(), newFakeStatefulEngine())
	src.Children[0].Engine.(*fakeStatefulEngine).state = EngineState{Values: map[VarID]Bits{0: NewBits(1, 1)}}

	var buf bytes.Buffer
	require.NoError(t, SaveModuleTree(&buf, src))

	// A fresh tree missing the "counter" instance entirely: its record
	// should be silently skipped rather than erroring (§4.5 "injects into
	// every matching instance").
	freshRoot := &Module{psrc: newModuleDeclaration(SourceLoc{}, RootModuleName), Engine: newFakeStatefulEngine()}
	require.NoError(t, RestartModuleTree(bytes.NewReader(buf.Bytes()), freshRoot))
}

func TestEncodeDecodeVarMapRoundTrip(t *testing.T) {
	in := map[VarID]Bits{
		5:   NewBits(17, 0x1FFFF),
		200: NewSignedBits(64, -1),
		7:   NewRealBits(-2.25),
	}
	data := encodeVarMap(in)
	out, err := decodeVarMap(data)
	require.NoError(t, err)
	for k, v := range in {
		require.True(t, v.Equal(out[k]), "vid %d", k)
	}
}
