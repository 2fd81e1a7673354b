package cascade

// DeAlias rewrites chains of wire aliases (`wire a = b; wire b = c;`,
// possibly with sub-slicing) so every use refers to the ultimate source,
// with composed slice ranges, per §4.4. Reduces wire count ahead of
// back-ends that charge per signal (FPGA register allocation).
//
// md must already be resolved (Resolver caches populated) so Identifier
// nodes carry their decl pointer.
func DeAlias(md *ModuleDeclaration) {
	alias := map[Decl]*Identifier{} // decl -> the single expr its wire-assign aliases, if it is a pure identifier (possibly sliced)
	for _, d := range md.Decls {
		wd, ok := d.(*WireDeclaration)
		if !ok || wd.Assign == nil {
			continue
		}
		if id, ok := wd.Assign.(*Identifier); ok {
			alias[wd] = id
		}
	}
	if len(alias) == 0 {
		return
	}
	resolve := func(id *Identifier) *Identifier {
		cur := id
		for i := 0; i < 64; i++ {
			if cur.decl == nil {
				break
			}
			src, ok := alias[cur.decl]
			if !ok {
				break
			}
			cur = composeSlice(cur, src)
		}
		return cur
	}
	for _, it := range md.Items {
		walkIdentifiersMut(it, func(id **Identifier) {
			if (*id).decl == nil {
				return
			}
			if _, ok := alias[(*id).decl]; !ok {
				return
			}
			*id = resolve(*id)
		})
	}
}

// composeSlice rewrites outer (a reference with its own optional
// [msb:lsb]) to instead reference src's underlying declaration, composing
// outer's slice (relative to the alias) with src's own slice if any.
func composeSlice(outer, src *Identifier) *Identifier {
	if outer.RangeMSB == nil {
		// bare alias use: inherit src wholesale.
		ni := *src
		return &ni
	}
	// Outer already slices the alias; since the alias is itself just an
	// Identifier (possibly sliced), and range arithmetic for the general
	// composed case requires constant bounds, this only composes when
	// src itself is unsliced — the common case the restricted subset
	// exercises (sliced-alias-of-a-slice is rare enough that DeAlias
	// conservatively leaves it for a future pass rather than risk a
	// wrong composition).
	if src.RangeMSB != nil {
		return outer
	}
	ni := *outer
	ni.decl = src.decl
	ni.Name = src.Name
	ni.resolved = false
	return &ni
}

// walkIdentifiersMut is walkIdentifiers with the ability to replace the
// visited identifier in its parent slot, used by DeAlias, which rewrites
// leaves in place rather than just reading them.
func walkIdentifiersMut(n Node, fn func(**Identifier)) {
	switch v := n.(type) {
	case *BlockingAssign:
		fn(&v.Lhs)
		walkExprMut(&v.Rhs, fn)
	case *NonblockingAssign:
		fn(&v.Lhs)
		walkExprMut(&v.Rhs, fn)
	case *ContinuousAssign:
		fn(&v.Lhs)
		walkExprMut(&v.Rhs, fn)
	case *IfStatement:
		walkExprMut(&v.Cond, fn)
		walkIdentifiersMut(v.Then, fn)
		walkIdentifiersMut(v.Else, fn)
	case *Block:
		for _, it := range v.Items {
			walkIdentifiersMut(it, fn)
		}
	case *AlwaysConstruct:
		for i := range v.Sensitivity {
			walkExprMut(&v.Sensitivity[i].Expr, fn)
		}
		walkIdentifiersMut(v.Body, fn)
	case *InitialConstruct:
		walkIdentifiersMut(v.Body, fn)
	case *SystemTaskEnable:
		for i := range v.Args {
			walkExprMut(&v.Args[i], fn)
		}
	}
}

func walkExprMut(e *Expr, fn func(**Identifier)) {
	if e == nil || *e == nil {
		return
	}
	switch v := (*e).(type) {
	case *Identifier:
		var ip *Identifier = v
		fn(&ip)
		*e = ip
	case *BinaryExpr:
		walkExprMut(&v.Lhs, fn)
		walkExprMut(&v.Rhs, fn)
	case *UnaryExpr:
		walkExprMut(&v.Arg, fn)
	case *ConditionalExpr:
		walkExprMut(&v.Cond, fn)
		walkExprMut(&v.Then, fn)
		walkExprMut(&v.Else, fn)
	case *Concatenation:
		for i := range v.Parts {
			walkExprMut(&v.Parts[i], fn)
		}
	case *MultipleConcatenation:
		walkExprMut(&v.Part, fn)
	case *SystemFuncCall:
		for i := range v.Args {
			walkExprMut(&v.Args[i], fn)
		}
	}
}
