package cascade

// ConstantProp rewrites expressions whose leaves are localparams or
// genvars (parameters have already become localparams by Isolate) into
// plain numeric literals, per §4.4. Wires and regs are never folded, and
// when the module declares no localparam or genvar the pass does nothing.
// Simplifies the tree ahead of DeadCodeEliminate and back-ends that prefer
// literals over net reads.
//
// ev evaluates against the current (already-elaborated, already-isolated)
// declaration values; md.Decls is scanned once to build the constant set.
func ConstantProp(ev *Evaluator, md *ModuleDeclaration) {
	constDecl := map[Decl]bool{}
	for _, d := range md.Decls {
		switch d.(type) {
		case *LocalparamDeclaration, *GenvarDeclaration:
			constDecl[d] = true
		}
	}
	if len(constDecl) == 0 {
		return
	}
	for _, it := range md.Items {
		foldConstants(ev, it, constDecl)
	}
}

func foldConstants(ev *Evaluator, s Stmt, constDecl map[Decl]bool) {
	switch v := s.(type) {
	case *BlockingAssign:
		v.Rhs = foldExpr(ev, v.Rhs, constDecl)
	case *NonblockingAssign:
		v.Rhs = foldExpr(ev, v.Rhs, constDecl)
	case *ContinuousAssign:
		v.Rhs = foldExpr(ev, v.Rhs, constDecl)
	case *IfStatement:
		v.Cond = foldExpr(ev, v.Cond, constDecl)
		foldConstants(ev, v.Then, constDecl)
		foldConstants(ev, v.Else, constDecl)
	case *Block:
		for i := range v.Items {
			foldConstants(ev, v.Items[i], constDecl)
		}
	case *AlwaysConstruct:
		foldConstants(ev, v.Body, constDecl)
	case *InitialConstruct:
		foldConstants(ev, v.Body, constDecl)
	case *SystemTaskEnable:
		for i := range v.Args {
			v.Args[i] = foldExpr(ev, v.Args[i], constDecl)
		}
	}
}

// foldExpr replaces e with a Number literal if every leaf it reaches is a
// constant declaration or a literal already; otherwise it recurses into
// operands, folding what it can (e.g. `x + (2*3)` becomes `x + 6`).
func foldExpr(ev *Evaluator, e Expr, constDecl map[Decl]bool) Expr {
	if e == nil {
		return nil
	}
	if isConstExpr(e, constDecl) {
		return &Number{Value: ev.GetValue(e)}
	}
	switch v := e.(type) {
	case *BinaryExpr:
		v.Lhs = foldExpr(ev, v.Lhs, constDecl)
		v.Rhs = foldExpr(ev, v.Rhs, constDecl)
	case *UnaryExpr:
		v.Arg = foldExpr(ev, v.Arg, constDecl)
	case *ConditionalExpr:
		v.Cond = foldExpr(ev, v.Cond, constDecl)
		v.Then = foldExpr(ev, v.Then, constDecl)
		v.Else = foldExpr(ev, v.Else, constDecl)
	case *Concatenation:
		for i := range v.Parts {
			v.Parts[i] = foldExpr(ev, v.Parts[i], constDecl)
		}
	case *MultipleConcatenation:
		v.Part = foldExpr(ev, v.Part, constDecl)
	}
	return e
}

func isConstExpr(e Expr, constDecl map[Decl]bool) bool {
	switch v := e.(type) {
	case *Number:
		return true
	case *Identifier:
		if len(v.Index) > 0 || v.RangeMSB != nil {
			return false // dynamic index/slice: don't fold away the reference
		}
		return v.decl != nil && constDecl[v.decl]
	case *BinaryExpr:
		return isConstExpr(v.Lhs, constDecl) && isConstExpr(v.Rhs, constDecl)
	case *UnaryExpr:
		return isConstExpr(v.Arg, constDecl)
	case *ConditionalExpr:
		return isConstExpr(v.Cond, constDecl) && isConstExpr(v.Then, constDecl) && isConstExpr(v.Else, constDecl)
	case *Concatenation:
		for _, p := range v.Parts {
			if !isConstExpr(p, constDecl) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
