package cascade

// IOHost is the external collaborator consuming the software engine's
// `$write`/`$display`/`$finish` system tasks (§L.1): the front-end owns
// the actual FId stream table and virtual-time bookkeeping; the engine
// only needs to format arguments and hand the formatted string (and any
// finish request) across.
type IOHost interface {
	// WriteStream routes formatted output to the given FId (§L.2).
	WriteStream(fid FID, s string)
	// RequestFinish is called for `$finish(arg)` (§L.3); the engine keeps
	// executing to the end of the current statement sequence but the
	// host is responsible for actually stopping the runtime (§4.6
	// Finish).
	RequestFinish(arg int, loc SourceLoc)
}

// SoftwareEngine is the in-process interpreter back-end: it directly
// walks the IR-transformed, isolated ModuleDeclaration's statements every
// tick rather than compiling to native code or an FPGA bitstream.
// Grounded on `src/target/core/sw/sw_logic.cc`'s direct-interpretation
// design — no JIT, no native codegen, straight tree-walking evaluation
// against the shared Evaluator/Bits model.
type SoftwareEngine struct {
	md *ModuleDeclaration
	ev *Evaluator
	host IOHost

	declByVarID map[VarID]Decl
	varIDByDecl map[Decl]VarID
	reads       []VarID
	writes      []VarID

	clockID   VarID
	clockFlag bool
	logicFlag bool

	prevEdgeVal map[Decl]Bits
	dirtyReads  bool
	executedInitial map[*InitialConstruct]bool

	pending []pendingWrite
}

type pendingWrite struct {
	decl *Identifier
	val  Bits
}

// NewSoftwareEngine builds a SoftwareEngine from an Isolate result that has
// already been run through Pipeline.Run (so md is the final software IR).
// isClock/isLogic classify the engine per §3's is_clock/is_logic scheduler
// fast-path hints; clockDeclName names the declaration that holds the
// clock value when isClock is true.
func NewSoftwareEngine(md *ModuleDeclaration, iso *IsolateResult, host IOHost, isClock, isLogic bool, clockDeclName string) *SoftwareEngine {
	e := &SoftwareEngine{
		md:          md,
		ev:          NewEvaluator(md),
		host:        host,
		declByVarID: map[VarID]Decl{},
		varIDByDecl: map[Decl]VarID{},
		prevEdgeVal: map[Decl]Bits{},
		executedInitial: map[*InitialConstruct]bool{},
		clockFlag:   isClock,
		logicFlag:   isLogic,
	}
	byName := map[string]Decl{}
	for _, d := range md.Decls {
		byName[d.DeclName()] = d
	}
	for name, vid := range iso.PortVarID {
		d := byName[name]
		if d == nil {
			continue
		}
		e.declByVarID[vid] = d
		e.varIDByDecl[d] = vid
		if pd, ok := d.(*PortDeclaration); ok {
			switch pd.Direction {
			case PortInput:
				e.reads = append(e.reads, vid)
			case PortOutput:
				e.writes = append(e.writes, vid)
			case PortInout:
				e.reads = append(e.reads, vid)
				e.writes = append(e.writes, vid)
			}
		}
		if d.DeclName() == clockDeclName {
			e.clockID = vid
		}
	}
	for name, vid := range iso.LocalVarID {
		d := byName[name]
		if d == nil {
			continue
		}
		e.declByVarID[vid] = d
		e.varIDByDecl[d] = vid
		if d.DeclName() == clockDeclName {
			e.clockID = vid
		}
	}
	NewResolver(md).ResolveAll()
	return e
}

func (e *SoftwareEngine) IsStub() bool  { return false }
func (e *SoftwareEngine) IsClock() bool { return e.clockFlag }
func (e *SoftwareEngine) IsLogic() bool { return e.logicFlag }

// Evaluate walks the module's items in order, running every continuous
// assignment, every always-block whose sensitivity fired since the
// previous call, and every initial block that has not run yet, draining
// active events per §4.1/§4.6.
func (e *SoftwareEngine) Evaluate() {
	for _, it := range e.md.Items {
		switch v := it.(type) {
		case *ContinuousAssign:
			e.ev.AssignValue(v.Lhs, e.ev.GetValue(v.Rhs))
		case *AlwaysConstruct:
			if e.sensitivityFired(v) {
				e.exec(v.Body)
			}
		case *InitialConstruct:
			if !v.Ignore && !e.executedInitial[v] {
				e.executedInitial[v] = true
				e.exec(v.Body)
			}
		}
	}
	e.dirtyReads = false
}

func (e *SoftwareEngine) sensitivityFired(a *AlwaysConstruct) bool {
	if len(a.Sensitivity) == 0 {
		return true // @(*) left unexpanded (software path doesn't require EventExpand)
	}
	fired := false
	for _, se := range a.Sensitivity {
		id, ok := se.Expr.(*Identifier)
		if !ok {
			continue
		}
		d := id.decl
		if d == nil {
			continue
		}
		cur := e.ev.GetValue(se.Expr)
		prev, seen := e.prevEdgeVal[d]
		e.prevEdgeVal[d] = cur
		if !seen {
			continue
		}
		switch se.Edge {
		case EdgePos:
			if prev.IsZero() && !cur.IsZero() {
				fired = true
			}
		case EdgeNeg:
			if !prev.IsZero() && cur.IsZero() {
				fired = true
			}
		default:
			if !prev.Equal(cur) {
				fired = true
			}
		}
	}
	return fired
}

// exec interprets a statement procedurally: blocking assigns apply
// immediately (through the Evaluator, so dependents see the new value
// right away); non-blocking assigns queue into pending, applied only on
// ConditionalUpdate, mirroring the reference scheduler's active/update
// phase split (§4.6).
func (e *SoftwareEngine) exec(s Stmt) {
	switch v := s.(type) {
	case nil:
	case *Block:
		for _, it := range v.Items {
			e.exec(it)
		}
	case *BlockingAssign:
		e.ev.AssignValue(v.Lhs, e.ev.GetValue(v.Rhs))
	case *NonblockingAssign:
		e.pending = append(e.pending, pendingWrite{decl: v.Lhs, val: e.ev.GetValue(v.Rhs)})
	case *ContinuousAssign:
		e.ev.AssignValue(v.Lhs, e.ev.GetValue(v.Rhs))
	case *IfStatement:
		if !e.ev.GetValue(v.Cond).IsZero() {
			e.exec(v.Then)
		} else {
			e.exec(v.Else)
		}
	case *SystemTaskEnable:
		e.execSystemTask(v)
	case *TaskEnable:
		// user task calls are not executed on the software path (the AST
		// carries no task bodies); the statement is a no-op.
	case *StateMachineConstruct:
		e.execStateMachine(v)
	}
}

func (e *SoftwareEngine) execStateMachine(sm *StateMachineConstruct) {
	cur := int(e.ev.GetValue(sm.StateVar).ToInt64())
	for _, st := range sm.States {
		if st.Index == cur {
			e.exec(st.Body)
			return
		}
	}
}

func (e *SoftwareEngine) execSystemTask(t *SystemTaskEnable) {
	switch t.Name {
	case "$write", "$display":
		s := e.formatArgs(t.Args)
		if t.Name == "$display" {
			s += "\n"
		}
		e.host.WriteStream(StdoutFID, s)
	case "$finish":
		arg := 0
		if len(t.Args) > 0 {
			arg = int(e.ev.GetValue(t.Args[0]).ToInt64())
		}
		e.host.RequestFinish(arg, t.Loc())
	}
}

// formatArgs implements Verilog-style `$write`/`$display` formatting: the
// first argument is treated as a format string if it's a string literal
// containing a `%` directive, otherwise every argument is concatenated
// using its natural decimal/string representation (§L.1).
func (e *SoftwareEngine) formatArgs(args []Expr) string {
	if len(args) == 0 {
		return ""
	}
	if s, ok := args[0].(*StringLit); ok && containsPercent(s.Value) {
		return formatDirectives(e.ev, s.Value, args[1:])
	}
	out := ""
	for _, a := range args {
		if s, ok := a.(*StringLit); ok {
			out += s.Value
			continue
		}
		out += e.ev.GetValue(a).Format('d')
	}
	return out
}

func containsPercent(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == '%' {
			return true
		}
	}
	return false
}

func formatDirectives(ev *Evaluator, format string, args []Expr) string {
	out := make([]byte, 0, len(format))
	ai := 0
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' || i+1 >= len(format) {
			out = append(out, c)
			continue
		}
		i++
		d := format[i]
		if d == '%' {
			out = append(out, '%')
			continue
		}
		var val Bits
		if ai < len(args) {
			val = ev.GetValue(args[ai])
			ai++
		}
		switch d {
		case 'd', 'D':
			out = append(out, val.Format('d')...)
		case 'b', 'B':
			out = append(out, val.Format('b')...)
		case 'h', 'H', 'x', 'X':
			out = append(out, val.Format('h')...)
		case 's', 'S':
			out = append(out, val.Format('s')...)
		default:
			out = append(out, '%', d)
		}
	}
	return string(out)
}

func (e *SoftwareEngine) ThereAreReads() bool { return e.dirtyReads }
func (e *SoftwareEngine) ConditionalEvaluate() bool {
	if !e.ThereAreReads() {
		return false
	}
	e.Evaluate()
	return true
}

func (e *SoftwareEngine) ThereAreUpdates() bool { return len(e.pending) > 0 }
func (e *SoftwareEngine) ConditionalUpdate() bool {
	if len(e.pending) == 0 {
		return false
	}
	for _, pw := range e.pending {
		e.ev.AssignValue(pw.decl, pw.val)
	}
	e.pending = e.pending[:0]
	return true
}

func (e *SoftwareEngine) OverridesDoneStep() bool { return false }
func (e *SoftwareEngine) DoneStep()               {}
func (e *SoftwareEngine) DoneSimulation()         {}

// OpenLoop runs this engine's own evaluate/update/done-step cycle against
// a local copy of the clock variable for up to maxIters virtual ticks,
// without consulting the scheduler or the data plane in between — the
// fast path of §4.6. It does not stop early on $finish: a $finish inside
// the loop reaches the host's RequestFinish, and OpenLoop still returns
// only after maxIters iterations.
func (e *SoftwareEngine) OpenLoop(clockID VarID, clockVal Bits, maxIters int) int {
	d, ok := e.declByVarID[clockID]
	if !ok {
		return 0
	}
	cur := clockVal
	iters := 0
	for ; iters < maxIters; iters++ {
		cur = cur.LogicalNot()
		e.ev.AssignValue(&Identifier{Name: d.DeclName(), decl: d, resolved: true}, cur)
		e.dirtyReads = true
		e.Evaluate()
		for e.ConditionalUpdate() {
			e.Evaluate()
		}
		e.DoneStep()
	}
	return iters
}

func (e *SoftwareEngine) GetClockID() VarID { return e.clockID }
func (e *SoftwareEngine) GetClockVal() Bits {
	if d, ok := e.declByVarID[e.clockID]; ok && len(d.Values()) > 0 {
		return d.Values()[0]
	}
	return NewBits(1, 0)
}
func (e *SoftwareEngine) SetClockVal(v Bits) {
	if d, ok := e.declByVarID[e.clockID]; ok {
		e.ev.AssignValue(&Identifier{Name: d.DeclName(), decl: d, resolved: true}, v)
	}
}

func (e *SoftwareEngine) Read(vid VarID, val Bits) {
	d, ok := e.declByVarID[vid]
	if !ok {
		return
	}
	e.ev.AssignValue(&Identifier{Name: d.DeclName(), decl: d, resolved: true}, val)
	e.dirtyReads = true
}

func (e *SoftwareEngine) Write(vid VarID, val Bits) {
	d, ok := e.declByVarID[vid]
	if !ok {
		return
	}
	e.ev.AssignValue(&Identifier{Name: d.DeclName(), decl: d, resolved: true}, val)
}

func (e *SoftwareEngine) GetState() EngineState {
	st := EngineState{Values: map[VarID]Bits{}}
	for vid, d := range e.declByVarID {
		if len(d.Values()) > 0 {
			st.Values[vid] = d.Values()[0]
		}
	}
	return st
}

func (e *SoftwareEngine) SetState(st EngineState) {
	for vid, v := range st.Values {
		if d, ok := e.declByVarID[vid]; ok {
			d.SetValues([]Bits{v})
		}
	}
}

func (e *SoftwareEngine) GetInput() EngineInput {
	in := EngineInput{Values: map[VarID]Bits{}}
	for _, vid := range e.reads {
		if d, ok := e.declByVarID[vid]; ok && len(d.Values()) > 0 {
			in.Values[vid] = d.Values()[0]
		}
	}
	return in
}

func (e *SoftwareEngine) SetInput(in EngineInput) {
	for vid, v := range in.Values {
		e.Read(vid, v)
	}
}

func (e *SoftwareEngine) Reads() []VarID  { return e.reads }
func (e *SoftwareEngine) Writes() []VarID { return e.writes }
