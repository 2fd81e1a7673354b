package cascade

// Machinify converts an edge-triggered always-block containing task calls
// into a case-statement state machine, per §4.4/§L.5: FPGA back-ends
// cannot suspend mid-block the way a tasked always-block implicitly does
// (§9 "cooperative suspension inside always-blocks for tasks"), so the
// block is split at every TaskEnable into its own state. Each task-call
// state transfers control to the runtime (the generated engine yields
// after entering it, waiting for the runtime to signal the task
// completed) and the machine gets one extra implicit StateDone state
// beyond the 1:1 task-call states, signalling completion back to the
// scheduler (§L.5).
//
// Only FPGA back-ends run this pass; the software interpreter executes
// tasked always-blocks unconverted and treats each task call as a no-op.
func Machinify(a *AlwaysConstruct, stateVarName string) *StateMachineConstruct {
	blocks := splitAtTasks(a.Body)
	sm := &StateMachineConstruct{
		Sensitivity: a.Sensitivity,
		StateVar:    &Identifier{Name: stateVarName},
	}
	for i, seg := range blocks {
		ms := MachineState{Index: i, Body: seg.body}
		if seg.taskCall != "" {
			ms.TaskCall = seg.taskCall
		}
		sm.States = append(sm.States, ms)
	}
	sm.States = append(sm.States, MachineState{Index: StateDone, Body: nil})
	return sm
}

type taskSegment struct {
	body     Stmt
	taskCall string // name of the task this segment ends by calling, "" if none
}

// splitAtTasks walks body's top-level statement sequence (descending into
// Block wrappers) and cuts a new segment every time a TaskEnable is
// encountered, so each resulting segment ends with (at most) one task
// call.
func splitAtTasks(body Stmt) []taskSegment {
	var stmts []Stmt
	switch v := body.(type) {
	case *Block:
		stmts = v.Items
	default:
		stmts = []Stmt{body}
	}

	var segs []taskSegment
	var cur []Stmt
	flush := func(task string) {
		var b Stmt
		if len(cur) == 1 {
			b = cur[0]
		} else if len(cur) > 1 {
			b = &Block{Items: append([]Stmt{}, cur...)}
		}
		segs = append(segs, taskSegment{body: b, taskCall: task})
		cur = nil
	}
	for _, it := range stmts {
		if te, ok := it.(*TaskEnable); ok {
			flush(te.Name)
			continue
		}
		cur = append(cur, it)
	}
	if len(cur) > 0 || len(segs) == 0 {
		flush("")
	}
	return segs
}

func machineStateLiteral(i int) Bits {
	if i == StateDone {
		return NewBits(32, uint64(1)<<31)
	}
	return NewBits(32, uint64(i))
}
