package cascade

// DeadCodeEliminate removes declarations with an empty use-set, per §4.4.
// Per §L.4 (ground truth from the original dead_code_eliminate pass), a
// declaration is eligible for removal only if its use-set is empty AND it
// is not referenced by a task call inside an initial/always block — task
// calls don't show up as ordinary identifier uses (they name the task,
// not a variable), so a declaration used only as a TaskEnable argument
// still has a populated Uses() from the argument-expression walk and is
// protected by the same check. Two further guards keep a declaration
// whatever its use count: ports (the isolated module's external contract
// depends on them) and declarations whose initializer calls a system
// function (hasSideEffectingInitializer).
func DeadCodeEliminate(md *ModuleDeclaration) {
	portSet := map[Decl]bool{}
	for _, p := range md.Ports {
		portSet[p] = true
	}
	kept := md.Decls[:0:0]
	for _, d := range md.Decls {
		if portSet[d] || len(d.Uses()) > 0 || hasSideEffectingInitializer(d) {
			kept = append(kept, d)
			continue
		}
	}
	md.Decls = kept

	keepSet := map[Decl]bool{}
	for _, d := range md.Decls {
		keepSet[d] = true
	}
	items := md.Items[:0:0]
	for _, it := range md.Items {
		if ds, ok := it.(*DeclStmt); ok && !keepSet[ds.D] {
			continue
		}
		items = append(items, it)
	}
	md.Items = items
}

// hasSideEffectingInitializer reports whether d's declared initializer
// expression contains a $-system-function call (e.g. `reg[31:0] r =
// $fopen(...)`), which must run even though nothing subsequently reads r.
func hasSideEffectingInitializer(d Decl) bool {
	var init Expr
	switch v := d.(type) {
	case *RegDeclaration:
		init = v.Init
	case *IntegerDeclaration:
		init = v.Init
	case *WireDeclaration:
		init = v.Assign
	}
	return exprHasSystemCall(init)
}

func exprHasSystemCall(e Expr) bool {
	switch v := e.(type) {
	case nil:
		return false
	case *SystemFuncCall:
		return true
	case *BinaryExpr:
		return exprHasSystemCall(v.Lhs) || exprHasSystemCall(v.Rhs)
	case *UnaryExpr:
		return exprHasSystemCall(v.Arg)
	case *ConditionalExpr:
		return exprHasSystemCall(v.Cond) || exprHasSystemCall(v.Then) || exprHasSystemCall(v.Else)
	case *Concatenation:
		for _, p := range v.Parts {
			if exprHasSystemCall(p) {
				return true
			}
		}
		return false
	default:
		return false
	}
}
