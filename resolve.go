package cascade

// Resolver maps identifier occurrences to their declaration and maintains
// the inverse use-list cache, per §4.2. It operates against a single
// ModuleDeclaration's resolution/uses caches (md.resolution, and each
// Decl's embedded use-list via addUse/removeUse).
//
// Lookup is strictly lexical: walk from the identifier's enclosing block
// outward through nested blocks, generate blocks/regions, and finally the
// module declaration itself. Hierarchical references (a.b.c) are left
// unresolved: Resolve returns nil for them, and no other part of this
// package resolves them either.
type Resolver struct {
	md *ModuleDeclaration
}

func NewResolver(md *ModuleDeclaration) *Resolver {
	return &Resolver{md: md}
}

// scopeOf returns the innermost Block containing n, or nil if n is a
// direct module item.
func scopeOf(n Node) *Block {
	for p := n.Parent(); p != nil; p = p.Parent() {
		if b, ok := p.(*Block); ok {
			return b
		}
	}
	return nil
}

// lookup performs the lexical scope walk for a bare (non-hierarchical)
// name, starting at the identifier's enclosing scope.
func (r *Resolver) lookup(id *Identifier) Decl {
	for b := scopeOf(id); b != nil; b = scopeOf(b) {
		for _, d := range b.Decls {
			if d.DeclName() == id.Name {
				return d
			}
		}
	}
	for _, d := range r.md.Decls {
		if d.DeclName() == id.Name {
			return d
		}
	}
	for _, p := range r.md.Ports {
		if p.DeclName() == id.Name {
			return p
		}
	}
	return nil
}

// Resolve resolves id against the lexical scope chain, populating both the
// resolution cache and the declaration's use-list. Returns nil (and
// records nothing) if the name is undeclared — the caller (typecheck)
// reports this as an error or a "may become an error" warning per §7.
func (r *Resolver) Resolve(id *Identifier) Decl {
	if len(id.Path) > 0 {
		// Hierarchical reference: left unresolved.
		return nil
	}
	if id.resolved {
		if d, ok := r.md.resolution[id]; ok {
			return d
		}
	}
	d := r.lookup(id)
	if d == nil {
		return nil
	}
	r.md.resolution[id] = d
	id.decl = d
	id.resolved = true
	d.addUse(id)
	return d
}

// ResolveAll walks every identifier in the module declaration's item list,
// calling Resolve. Used after a declaration is inserted or generate
// elaboration introduces new identifiers.
func (r *Resolver) ResolveAll() {
	for _, it := range r.md.Items {
		r.resolveStmt(it)
	}
}

func (r *Resolver) resolveStmt(s Stmt) {
	walkIdentifiers(s, func(id *Identifier) {
		r.Resolve(id)
		for _, ix := range id.Index {
			r.resolveExpr(ix)
		}
		r.resolveExpr(id.RangeMSB)
		r.resolveExpr(id.RangeLSB)
		r.resolveExpr(id.RangeWidth)
	})
}

func (r *Resolver) resolveExpr(e Expr) {
	if e == nil {
		return
	}
	walkIdentifiers(e, func(id *Identifier) { r.Resolve(id) })
}

// Invalidate clears resolution and use-list entries for every identifier
// strictly below n (§8: "After invalidate(n), every identifier strictly
// below n has resolution = nil").
func (r *Resolver) Invalidate(n Node) {
	walkIdentifiers(n, func(id *Identifier) {
		if id.decl != nil {
			id.decl.removeUse(id)
		}
		delete(r.md.resolution, id)
		id.decl = nil
		id.resolved = false
	})
}

// walkIdentifiers visits every *Identifier reachable from n (including n
// itself if it is one), via a plain type-switch traversal — the
// pattern-match alternative to a Visitor/Editor class hierarchy called for
// by the redesign notes.
func walkIdentifiers(n Node, fn func(*Identifier)) {
	if n == nil {
		return
	}
	switch v := n.(type) {
	case *Identifier:
		fn(v)
		for _, ix := range v.Index {
			walkIdentifiers(ix, fn)
		}
		walkIdentifiers(v.RangeMSB, fn)
		walkIdentifiers(v.RangeLSB, fn)
		walkIdentifiers(v.RangeWidth, fn)
	case *BinaryExpr:
		walkIdentifiers(v.Lhs, fn)
		walkIdentifiers(v.Rhs, fn)
	case *UnaryExpr:
		walkIdentifiers(v.Arg, fn)
	case *ConditionalExpr:
		walkIdentifiers(v.Cond, fn)
		walkIdentifiers(v.Then, fn)
		walkIdentifiers(v.Else, fn)
	case *Concatenation:
		for _, p := range v.Parts {
			walkIdentifiers(p, fn)
		}
	case *MultipleConcatenation:
		walkIdentifiers(v.Count, fn)
		walkIdentifiers(v.Part, fn)
	case *SystemFuncCall:
		for _, a := range v.Args {
			walkIdentifiers(a, fn)
		}
	case *BlockingAssign:
		walkIdentifiers(v.Lhs, fn)
		walkIdentifiers(v.Rhs, fn)
	case *NonblockingAssign:
		walkIdentifiers(v.Lhs, fn)
		walkIdentifiers(v.Rhs, fn)
	case *ContinuousAssign:
		walkIdentifiers(v.Lhs, fn)
		walkIdentifiers(v.Rhs, fn)
	case *PackedAssign:
		for _, f := range v.Fields {
			walkIdentifiers(f, fn)
		}
		walkIdentifiers(v.Rhs, fn)
	case *IfStatement:
		walkIdentifiers(v.Cond, fn)
		walkIdentifiers(v.Then, fn)
		walkIdentifiers(v.Else, fn)
	case *ForStatement:
		walkIdentifiers(v.InitVar, fn)
		walkIdentifiers(v.InitVal, fn)
		walkIdentifiers(v.Cond, fn)
		walkIdentifiers(v.StepVar, fn)
		walkIdentifiers(v.StepVal, fn)
		walkIdentifiers(v.Body, fn)
	case *WhileStatement:
		walkIdentifiers(v.Cond, fn)
		walkIdentifiers(v.Body, fn)
	case *RepeatStatement:
		walkIdentifiers(v.Count, fn)
		walkIdentifiers(v.Body, fn)
	case *Block:
		for _, it := range v.Items {
			walkIdentifiers(it, fn)
		}
	case *AlwaysConstruct:
		for _, e := range v.Sensitivity {
			walkIdentifiers(e.Expr, fn)
		}
		walkIdentifiers(v.Body, fn)
	case *InitialConstruct:
		walkIdentifiers(v.Body, fn)
	case *SystemTaskEnable:
		for _, a := range v.Args {
			walkIdentifiers(a, fn)
		}
	case *TaskEnable:
		for _, a := range v.Args {
			walkIdentifiers(a, fn)
		}
	case *ModuleInstantiation:
		for _, pv := range v.Params {
			walkIdentifiers(pv, fn)
		}
		for _, pc := range v.Ports {
			walkIdentifiers(pc.Expr, fn)
		}
	case *ForGenerate:
		walkIdentifiers(v.InitVal, fn)
		walkIdentifiers(v.Cond, fn)
		walkIdentifiers(v.StepVal, fn)
		walkIdentifiers(v.Body, fn)
	case *IfGenerate:
		walkIdentifiers(v.Cond, fn)
		walkIdentifiers(v.Then, fn)
		walkIdentifiers(v.Else, fn)
	case *CaseGenerate:
		walkIdentifiers(v.Sel, fn)
		for _, arm := range v.Arms {
			for _, val := range arm.Values {
				walkIdentifiers(val, fn)
			}
			walkIdentifiers(arm.Body, fn)
		}
	case *DeclStmt:
		walkIdentifiers(v.D, fn)
	case *RegDeclaration:
		walkIdentifiers(v.Init, fn)
	case *WireDeclaration:
		walkIdentifiers(v.Assign, fn)
	case *IntegerDeclaration:
		walkIdentifiers(v.Init, fn)
	case *ParameterDeclaration:
		walkIdentifiers(v.Value, fn)
	case *LocalparamDeclaration:
		walkIdentifiers(v.Value, fn)
	}
}

// Navigator enumerates lexical scopes and generate-block children of a
// module declaration. Nothing in this package constructs one;
// Module.instantiateChildren walks a declaration's items directly.
type Navigator struct{ md *ModuleDeclaration }

func NewNavigator(md *ModuleDeclaration) *Navigator { return &Navigator{md: md} }

// Instantiations returns every ModuleInstantiation reachable from the
// module's items (including nested inside blocks and elaborated
// generates), in document order.
func (nv *Navigator) Instantiations() []*ModuleInstantiation {
	var out []*ModuleInstantiation
	var visit func(Stmt)
	visit = func(s Stmt) {
		switch v := s.(type) {
		case *ModuleInstantiation:
			out = append(out, v)
		case *Block:
			for _, it := range v.Items {
				visit(it)
			}
		case *IfGenerate:
			visit(v.Then)
			if v.Else != nil {
				visit(v.Else)
			}
		case *CaseGenerate:
			for _, arm := range v.Arms {
				visit(arm.Body)
			}
		case *ForGenerate:
			visit(v.Body)
		}
	}
	for _, it := range nv.md.Items {
		visit(it)
	}
	return out
}
