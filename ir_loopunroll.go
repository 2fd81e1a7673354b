package cascade

// LoopUnroll rewrites for/repeat/while statements with statically
// evaluable bounds into a straight-line sequential block, per §4.4: the
// back-ends this package targets (the software interpreter, and FPGA
// back-ends ahead of Machinify) cannot execute dynamic loops directly.
//
// ev is the Evaluator for the module the statement belongs to; loop
// bounds are evaluated against its current declaration values (genvars
// and parameters are expected to already be constant by this point in the
// pipeline — Isolate runs before LoopUnroll).
func LoopUnroll(ev *Evaluator, s Stmt) Stmt {
	switch v := s.(type) {
	case *ForStatement:
		return unrollFor(ev, v)
	case *RepeatStatement:
		return unrollRepeat(ev, v)
	case *WhileStatement:
		return unrollWhile(ev, v)
	case *Block:
		nb := &Block{Decls: v.Decls}
		for _, it := range v.Items {
			nb.Items = append(nb.Items, LoopUnroll(ev, it))
		}
		return nb
	case *IfStatement:
		return &IfStatement{Cond: v.Cond, Then: LoopUnroll(ev, v.Then), Else: LoopUnroll(ev, v.Else)}
	case *AlwaysConstruct:
		return &AlwaysConstruct{Star: v.Star, Sensitivity: v.Sensitivity, Body: LoopUnroll(ev, v.Body)}
	case *InitialConstruct:
		return &InitialConstruct{Body: LoopUnroll(ev, v.Body), Ignore: v.Ignore}
	default:
		return s
	}
}

const loopUnrollBudget = 1 << 16

func unrollFor(ev *Evaluator, f *ForStatement) Stmt {
	out := &Block{}
	ev.AssignValue(f.InitVar, ev.GetValue(f.InitVal))
	for i := 0; i < loopUnrollBudget; i++ {
		if ev.GetValue(f.Cond).IsZero() {
			break
		}
		out.Items = append(out.Items, cloneStmtForUnroll(f.Body))
		ev.AssignValue(f.StepVar, ev.GetValue(f.StepVal))
	}
	return out
}

func unrollRepeat(ev *Evaluator, r *RepeatStatement) Stmt {
	n := ev.constEvalInt(r.Count)
	out := &Block{}
	for i := 0; i < n; i++ {
		out.Items = append(out.Items, cloneStmtForUnroll(r.Body))
	}
	return out
}

func unrollWhile(ev *Evaluator, w *WhileStatement) Stmt {
	out := &Block{}
	for i := 0; i < loopUnrollBudget; i++ {
		if ev.GetValue(w.Cond).IsZero() {
			break
		}
		out.Items = append(out.Items, cloneStmtForUnroll(w.Body))
	}
	return out
}

// cloneStmtForUnroll copies the body once per iteration so later passes
// (constant propagation in particular) can specialize each copy
// independently instead of sharing one AST subtree across iterations.
func cloneStmtForUnroll(s Stmt) Stmt { return renameStmt(s, nil) }
