package cascade

import "fmt"

// packTempCounter is package-level since AssignUnpack may run across many
// modules in one compile batch; uniqueness only needs to hold within a
// single isolated module's namespace, but a shared counter keeps temp
// names trivially unique everywhere without threading extra state through
// the pass's simple per-statement call signature.
var packTempCounter int

// AssignUnpack lowers `{a,b,c} = expr;` into a 1-to-1-left-hand-side form:
// a temporary `__pack_k` is declared, wired to expr, then each field is
// assigned its slice of the temporary, per §4.4. Runs on every item list in
// a module; mutates md.Decls to add the temporary declarations it
// introduces.
func AssignUnpack(md *ModuleDeclaration) {
	var rewrite func(s Stmt) []Stmt
	rewrite = func(s Stmt) []Stmt {
		switch v := s.(type) {
		case *PackedAssign:
			return unpackOne(md, v)
		case *Block:
			nb := &Block{Decls: v.Decls}
			for _, it := range v.Items {
				nb.Items = append(nb.Items, rewrite(it)...)
			}
			return []Stmt{nb}
		case *IfStatement:
			return []Stmt{&IfStatement{Cond: v.Cond, Then: single(rewrite(v.Then)), Else: single(rewrite(v.Else))}}
		case *AlwaysConstruct:
			return []Stmt{&AlwaysConstruct{Star: v.Star, Sensitivity: v.Sensitivity, Body: single(rewrite(v.Body))}}
		case *InitialConstruct:
			return []Stmt{&InitialConstruct{Body: single(rewrite(v.Body)), Ignore: v.Ignore}}
		default:
			return []Stmt{s}
		}
	}
	var out []Stmt
	for _, it := range md.Items {
		out = append(out, rewrite(it)...)
	}
	md.Items = out
}

func single(stmts []Stmt) Stmt {
	if len(stmts) == 0 {
		return nil
	}
	if len(stmts) == 1 {
		return stmts[0]
	}
	return &Block{Items: stmts}
}

func unpackOne(md *ModuleDeclaration, v *PackedAssign) []Stmt {
	packTempCounter++
	width := 0
	for _, f := range v.Fields {
		width += f.declWidth()
	}
	tempName := fmt.Sprintf("__pack_%d", packTempCounter)
	temp := &WireDeclaration{declBase: declBase{name: tempName, width: width, typ: Unsigned}}
	md.Decls = append(md.Decls, temp)

	var out []Stmt
	out = append(out, &ContinuousAssign{Lhs: &Identifier{Name: tempName, decl: temp, resolved: true}, Rhs: v.Rhs})

	lsb := 0
	for i := len(v.Fields) - 1; i >= 0; i-- {
		f := v.Fields[i]
		w := f.declWidth()
		src := &Identifier{Name: tempName, decl: temp, resolved: true, RangeMSB: &Number{Value: NewBits(32, uint64(lsb+w-1))}, RangeLSB: &Number{Value: NewBits(32, uint64(lsb))}}
		if v.Blocking {
			out = append(out, &BlockingAssign{Lhs: f, Rhs: src})
		} else {
			out = append(out, &NonblockingAssign{Lhs: f, Rhs: src})
		}
		lsb += w
	}
	return out
}

// declWidth returns the width an Identifier occupies as a PackedAssign
// field: its declaration's width, narrowed by an explicit slice if one is
// present.
func (id *Identifier) declWidth() int {
	if id.RangeMSB != nil && !id.RangeIsPlus && !id.RangeIsMinus {
		if msb, ok := id.RangeMSB.(*Number); ok {
			if lsb, ok := id.RangeLSB.(*Number); ok {
				return int(msb.Value.ToInt64()-lsb.Value.ToInt64()) + 1
			}
		}
	}
	if id.decl != nil {
		return id.decl.Width()
	}
	return 1
}
