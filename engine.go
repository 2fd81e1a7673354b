package cascade

// VarID is the deterministic variable id assigned by Isolate (§4.3) and
// used by the data plane to route bit-vector values between engines.
type VarID uint32

// Engine is the uniform back-end contract every module's executor
// satisfies (§3 "Engine contract"). The software interpreter, the native
// code engine and the FPGA engine are all Engines; the scheduler and
// Module tree never type-switch on which one they hold.
type Engine interface {
	// IsStub reports whether this is a placeholder that participates in
	// the hierarchy but does no work (e.g. an inlined instance's former
	// slot, or a module with an empty body).
	IsStub() bool
	// IsClock reports whether this engine drives the designated clock
	// variable consumed by open-loop mode.
	IsClock() bool
	// IsLogic reports whether this is the designated inlined-logic engine
	// eligible to run under Engine.OpenLoop.
	IsLogic() bool

	// Evaluate drains active events and produces outputs. Called by the
	// reference scheduler's drain_active.
	Evaluate()
	// ThereAreReads reports whether any subscribed input changed since the
	// last Evaluate/ConditionalEvaluate call.
	ThereAreReads() bool
	// ConditionalEvaluate evaluates only if ThereAreReads(); returns
	// whether it did.
	ConditionalEvaluate() bool

	// ThereAreUpdates reports whether any non-blocking assignment is
	// pending application.
	ThereAreUpdates() bool
	// ConditionalUpdate applies pending non-blocking updates if any are
	// pending, returning whether any were applied.
	ConditionalUpdate() bool

	// OverridesDoneStep hints whether DoneStep must be called at all
	// (an engine with no end-of-step bookkeeping can report false so the
	// scheduler skips the call).
	OverridesDoneStep() bool
	// DoneStep runs end-of-step bookkeeping (e.g. clearing reg "used this
	// tick" markers for $monitor-style sampling, which Cascade does not
	// implement, but the hook is part of the contract regardless).
	DoneStep()
	// DoneSimulation runs terminal cleanup, called once per live engine
	// from the scheduler's teardown after Runtime.Finish.
	DoneSimulation()

	// OpenLoop runs self-contained logic against a local clock for up to
	// maxIters virtual ticks without external interaction, returning the
	// number of iterations actually completed. Only the designated
	// inlined-logic engine is ever asked to do this.
	OpenLoop(clockID VarID, clockVal Bits, maxIters int) (itersCompleted int)

	// GetClockID/GetClockVal/SetClockVal are valid only on a clock engine.
	GetClockID() VarID
	GetClockVal() Bits
	SetClockVal(Bits)

	// Read delivers an externally-written value for the given variable id:
	// the data plane calls Read on every engine subscribed to vid whenever
	// DataPlane.Write is called for it (Scheduler.propagateWrites does so
	// with each engine's outputs; engines never call it). Write
	// sets vid's value directly in this engine's own storage without going
	// through the data plane itself — used for direct injection (restart,
	// tests) where the caller already has a variable id rather than a
	// declaration name; publishing a changed output to the data plane is
	// the scheduler's job (Scheduler.propagateWrites), not this method's.
	Read(vid VarID, val Bits)
	Write(vid VarID, val Bits)

	// GetState/SetState and GetInput/SetInput support checkpoint/restore
	// (§6 save-file format) and the atomic engine hand-off of §4.5: the
	// scheduler extracts the old engine's input/state and injects it into
	// the new one before the swap is observable.
	GetState() EngineState
	SetState(EngineState)
	GetInput() EngineInput
	SetInput(EngineInput)

	// Reads/Writes enumerate the variable ids this engine subscribes to
	// as a reader/writer, used by Module.synchronize to wire the data
	// plane (§4.5 step following compilation).
	Reads() []VarID
	Writes() []VarID
}

// EngineState is an opaque, engine-defined snapshot of local storage
// (register/wire/integer contents) extracted and injected across a hand-off
// or a save/restore round trip. Concretely it is the serialized form of
// every declaration's current Bits, keyed by the declaration's mangled
// local id so that state transfers between two IR generations of the same
// isolated module (same variable-id assignment, §4.3 determinism).
type EngineState struct {
	Values map[VarID]Bits
}

func CloneEngineState(s EngineState) EngineState {
	out := EngineState{Values: make(map[VarID]Bits, len(s.Values))}
	for k, v := range s.Values {
		out.Values[k] = v
	}
	return out
}

// EngineInput is the analogous snapshot of pending input-port values not
// yet consumed by Evaluate — distinct from EngineState because inputs are
// driven by other engines via the data plane, not by this engine's own
// procedural code.
type EngineInput struct {
	Values map[VarID]Bits
}

func CloneEngineInput(s EngineInput) EngineInput {
	out := EngineInput{Values: make(map[VarID]Bits, len(s.Values))}
	for k, v := range s.Values {
		out.Values[k] = v
	}
	return out
}

// StubEngine is a placeholder Engine: it participates in the module tree
// (so the hierarchy shape is stable) but does no work. Used for inlined
// instances and for modules whose body elaborated to nothing.
type StubEngine struct{}

func NewStubEngine() *StubEngine { return &StubEngine{} }

func (*StubEngine) IsStub() bool  { return true }
func (*StubEngine) IsClock() bool { return false }
func (*StubEngine) IsLogic() bool { return false }

func (*StubEngine) Evaluate()                {}
func (*StubEngine) ThereAreReads() bool      { return false }
func (*StubEngine) ConditionalEvaluate() bool { return false }
func (*StubEngine) ThereAreUpdates() bool    { return false }
func (*StubEngine) ConditionalUpdate() bool  { return false }
func (*StubEngine) OverridesDoneStep() bool  { return false }
func (*StubEngine) DoneStep()                {}
func (*StubEngine) DoneSimulation()          {}

func (*StubEngine) OpenLoop(VarID, Bits, int) int { return 0 }

func (*StubEngine) GetClockID() VarID   { return 0 }
func (*StubEngine) GetClockVal() Bits   { return NewBits(1, 0) }
func (*StubEngine) SetClockVal(Bits)    {}

func (*StubEngine) Read(VarID, Bits)  {}
func (*StubEngine) Write(VarID, Bits) {}

func (*StubEngine) GetState() EngineState   { return EngineState{} }
func (*StubEngine) SetState(EngineState)    {}
func (*StubEngine) GetInput() EngineInput   { return EngineInput{} }
func (*StubEngine) SetInput(EngineInput)    {}

func (*StubEngine) Reads() []VarID  { return nil }
func (*StubEngine) Writes() []VarID { return nil }
