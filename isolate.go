package cascade

import "fmt"

// Isolator performs the Isolate transform of §4.3: given an instantiated
// ModuleDeclaration within the program, produce a stand-alone declaration
// with mangled identifiers and explicit global I/O ports. One Isolator is
// shared across every call for a given hierarchy so that variable-id
// assignment is deterministic and stable across recompilations (§8
// "Deterministic isolation IDs") — the id for a given (instance path,
// original declaration name) pair depends only on the order calls were
// first made against this Isolator, never on recompilation timing.
type Isolator struct {
	instanceCounter int
	varCounter       VarID
	varIDs           map[string]VarID
}

func NewIsolator() *Isolator {
	return &Isolator{varIDs: map[string]VarID{}}
}

// varID returns the deterministic id for key, assigning a fresh one on
// first sight. key is instancePath + "." + declaration-name, which is
// stable across recompiles of the same hierarchy as long as instance
// paths and declared names don't change (the contract the data plane
// depends on, §4.3/§8).
func (iso *Isolator) varID(key string) VarID {
	if id, ok := iso.varIDs[key]; ok {
		return id
	}
	id := iso.varCounter
	iso.varCounter++
	iso.varIDs[key] = id
	return id
}

// VarIDFor exposes the deterministic id for an instance path + declaration
// name, assigning one on first sight exactly as Isolate does (used when
// replacing an instantiation, to compute a child's port vid before that
// child has been isolated itself, so the parent's replacement continuous
// assignments and the child's own port declarations agree on the same id).
func (iso *Isolator) VarIDFor(instancePath, declName string) VarID {
	return iso.varID(instancePath + "." + declName)
}

// IsolateResult is the product of one Isolate call: the mangled stand-alone
// declaration plus the maps needed to wire it onto the data plane and to
// translate save-file records back to source-level names for the log view.
type IsolateResult struct {
	Module *ModuleDeclaration

	// PortVarID/LocalVarID map a mangled declaration name (as it appears
	// in Module.Decls) to its deterministic VarID.
	PortVarID  map[string]VarID
	LocalVarID map[string]VarID

	// OrigName maps a VarID back to the original (unmangled) declaration
	// name, for save-file records and debug dumps (§6).
	OrigName map[VarID]string
}

// Isolate transforms md (the declaration instantiated at instancePath,
// already generate-expanded by Program.Eval/elaborateGenerates) into a
// stand-alone ModuleDeclaration per §4.3:
//
//   - mangled module name __M<k>
//   - every declared port becomes a top-level I/O port __x<v>;
//     hierarchical (external) reads and writes are not turned into ports
//   - every local becomes a declaration __l<v>
//   - parameter declarations downgrade to localparams holding the
//     already-bound value
//   - integer declarations become 32-bit signed reg declarations
//   - initial constructs beyond ignore are tagged __ignore
//   - non-inlined nested instantiations are replaced by one continuous
//     assignment per port connection (an output port drives the outside
//     identifier; any other port is driven by the outside expression),
//     wired to the child's own deterministic port vid (computed via
//     VarIDFor so it lines up with that child's own Isolate call,
//     whenever it happens)
//   - inlined nested instantiations are dropped; their bodies are not
//     spliced in
func (iso *Isolator) Isolate(instancePath string, md *ModuleDeclaration, ignore int) *IsolateResult {
	k := iso.instanceCounter
	iso.instanceCounter++

	out := newModuleDeclaration(md.Loc(), fmt.Sprintf("__M%d", k))
	res := &IsolateResult{
		Module:     out,
		PortVarID:  map[string]VarID{},
		LocalVarID: map[string]VarID{},
		OrigName:   map[VarID]string{},
	}

	rename := map[Decl]Decl{}

	for _, p := range md.Ports {
		vid := iso.varID(instancePath + "." + p.DeclName())
		mangled := fmt.Sprintf("__x%d", vid)
		np := &PortDeclaration{
			declBase:  declBase{name: mangled, dims: p.Dims(), width: p.Width(), typ: p.Type(), values: cloneBitsSlice(p.Values())},
			Direction: p.Direction,
		}
		out.Ports = append(out.Ports, np)
		out.Decls = append(out.Decls, np)
		rename[p] = np
		res.PortVarID[mangled] = vid
		res.OrigName[vid] = p.DeclName()
	}

	for _, d := range md.Decls {
		if _, done := rename[d]; done {
			continue
		}
		vid := iso.varID(instancePath + "." + d.DeclName())
		mangled := fmt.Sprintf("__l%d", vid)
		var nd Decl
		switch dd := d.(type) {
		case *ParameterDeclaration:
			nd = &LocalparamDeclaration{
				declBase: declBase{name: mangled, dims: dd.Dims(), width: dd.Width(), typ: dd.Type(), values: cloneBitsSlice(dd.Values())},
				Value:    dd.Value,
			}
		case *IntegerDeclaration:
			nd = &RegDeclaration{
				declBase: declBase{name: mangled, dims: dd.Dims(), width: 32, typ: Signed, values: retypeAll(dd.Values(), 32, Signed)},
				Init:     dd.Init,
			}
		case *RegDeclaration:
			nd = &RegDeclaration{declBase: cloneDeclBase(dd.declBase, mangled), Init: dd.Init}
		case *WireDeclaration:
			nd = &WireDeclaration{declBase: cloneDeclBase(dd.declBase, mangled), Assign: dd.Assign}
		case *LocalparamDeclaration:
			nd = &LocalparamDeclaration{declBase: cloneDeclBase(dd.declBase, mangled), Value: dd.Value}
		case *GenvarDeclaration:
			nd = &GenvarDeclaration{declBase: cloneDeclBase(dd.declBase, mangled)}
		default:
			nd = d
		}
		out.Decls = append(out.Decls, nd)
		rename[d] = nd
		res.LocalVarID[mangled] = vid
		res.OrigName[vid] = d.DeclName()
	}

	initialSeen := 0
	for _, it := range md.Items {
		out.Items = append(out.Items, iso.isolateItem(it, instancePath, rename, &initialSeen, ignore)...)
	}

	setParentsRecursive(out, nil)
	return res
}

func cloneDeclBase(b declBase, name string) declBase {
	return declBase{name: name, dims: b.dims, width: b.width, typ: b.typ, values: cloneBitsSlice(b.values)}
}

func cloneBitsSlice(in []Bits) []Bits {
	out := make([]Bits, len(in))
	copy(out, in)
	return out
}

func retypeAll(in []Bits, width int, typ ValueType) []Bits {
	out := make([]Bits, len(in))
	for i, b := range in {
		out[i] = retype(b, width, typ)
	}
	return out
}

// isolateItem rewrites a single module item for the isolated output,
// possibly producing more than one output item (module instantiation
// replacement produces one continuous assign per connection).
func (iso *Isolator) isolateItem(it Stmt, instancePath string, rename map[Decl]Decl, initialSeen *int, ignore int) []Stmt {
	switch v := it.(type) {
	case *DeclStmt:
		if nd, ok := rename[v.D]; ok {
			return []Stmt{&DeclStmt{D: nd}}
		}
		return []Stmt{v}
	case *InitialConstruct:
		nb := renameStmt(v.Body, rename).(Stmt)
		ignored := *initialSeen >= ignore
		*initialSeen++
		return []Stmt{&InitialConstruct{Body: nb, Ignore: ignored}}
	case *ModuleInstantiation:
		if v.Inline {
			// Nothing in this package splices an inlined instance's
			// body in (Program.Eval expands generates only), so the
			// instance is dropped as a no-op rather than instantiated —
			// inlined instances never own a separate engine.
			return nil
		}
		childPath := instancePath + "." + v.InstName
		var out []Stmt
		for _, pc := range v.Ports {
			portName := identName(pc.Port)
			if portName == "" {
				continue
			}
			vid := iso.VarIDFor(childPath, portName)
			alias := fmt.Sprintf("__l%d", vid)
			dir := portDirectionOf(pc.Port)
			switch dir {
			case PortOutput:
				out = append(out, &ContinuousAssign{Lhs: mustIdentifier(renameExpr(pc.Expr, rename)), Rhs: newLocalRef(alias)})
			default: // input or inout: drive the child
				out = append(out, &ContinuousAssign{Lhs: newLocalRef(alias), Rhs: renameExpr(pc.Expr, rename)})
			}
		}
		return out
	default:
		return []Stmt{renameStmt(it, rename)}
	}
}

func identName(e Expr) string {
	if id, ok := e.(*Identifier); ok {
		return id.Name
	}
	return ""
}

func portDirectionOf(e Expr) PortDirection {
	if id, ok := e.(*Identifier); ok {
		if pd, ok := id.decl.(*PortDeclaration); ok {
			return pd.Direction
		}
	}
	return PortInput
}

func newLocalRef(name string) *Identifier { return &Identifier{Name: name} }

func mustIdentifier(e Expr) *Identifier {
	if id, ok := e.(*Identifier); ok {
		return id
	}
	return &Identifier{Name: "__invalid"}
}

// renameStmt/renameExpr deep-copy a subtree, substituting any Identifier
// whose resolved declaration is a key in rename with a fresh reference to
// the mangled replacement (by name; the isolated module re-resolves from
// scratch via its own Resolver once construction completes).
func renameStmt(s Stmt, rename map[Decl]Decl) Stmt {
	if s == nil {
		return nil
	}
	switch v := s.(type) {
	case *BlockingAssign:
		return &BlockingAssign{Lhs: mustIdentifier(renameExpr(v.Lhs, rename)), Rhs: renameExpr(v.Rhs, rename)}
	case *NonblockingAssign:
		return &NonblockingAssign{Lhs: mustIdentifier(renameExpr(v.Lhs, rename)), Rhs: renameExpr(v.Rhs, rename)}
	case *ContinuousAssign:
		return &ContinuousAssign{Lhs: mustIdentifier(renameExpr(v.Lhs, rename)), Rhs: renameExpr(v.Rhs, rename)}
	case *IfStatement:
		return &IfStatement{Cond: renameExpr(v.Cond, rename), Then: renameStmt(v.Then, rename), Else: renameStmt(v.Else, rename)}
	case *ForStatement:
		return &ForStatement{
			InitVar: mustIdentifier(renameExpr(v.InitVar, rename)), InitVal: renameExpr(v.InitVal, rename),
			Cond: renameExpr(v.Cond, rename),
			StepVar: mustIdentifier(renameExpr(v.StepVar, rename)), StepVal: renameExpr(v.StepVal, rename),
			Body: renameStmt(v.Body, rename),
		}
	case *WhileStatement:
		return &WhileStatement{Cond: renameExpr(v.Cond, rename), Body: renameStmt(v.Body, rename)}
	case *RepeatStatement:
		return &RepeatStatement{Count: renameExpr(v.Count, rename), Body: renameStmt(v.Body, rename)}
	case *Block:
		nb := &Block{}
		for _, d := range v.Decls {
			if nd, ok := rename[d]; ok {
				nb.Decls = append(nb.Decls, nd)
			} else {
				nb.Decls = append(nb.Decls, d)
			}
		}
		for _, it := range v.Items {
			nb.Items = append(nb.Items, renameStmt(it, rename))
		}
		return nb
	case *AlwaysConstruct:
		na := &AlwaysConstruct{Star: v.Star}
		for _, e := range v.Sensitivity {
			na.Sensitivity = append(na.Sensitivity, EventEdge2(e.Edge, renameExpr(e.Expr, rename)))
		}
		na.Body = renameStmt(v.Body, rename)
		return na
	case *InitialConstruct:
		return &InitialConstruct{Body: renameStmt(v.Body, rename), Ignore: v.Ignore}
	case *SystemTaskEnable:
		nt := &SystemTaskEnable{Name: v.Name}
		for _, a := range v.Args {
			nt.Args = append(nt.Args, renameExpr(a, rename))
		}
		return nt
	case *TaskEnable:
		nt := &TaskEnable{Name: v.Name}
		for _, a := range v.Args {
			nt.Args = append(nt.Args, renameExpr(a, rename))
		}
		return nt
	case *DeclStmt:
		if nd, ok := rename[v.D]; ok {
			return &DeclStmt{D: nd}
		}
		return v
	default:
		return s
	}
}

func EventEdge2(edge EventEdge, e Expr) EventExpr { return EventExpr{Edge: edge, Expr: e} }

func renameExpr(e Expr, rename map[Decl]Decl) Expr {
	if e == nil {
		return nil
	}
	switch v := e.(type) {
	case *Number:
		return &Number{Value: v.Value}
	case *StringLit:
		return &StringLit{Value: v.Value}
	case *Identifier:
		ni := &Identifier{Name: v.Name, Path: v.Path, RangeIsPlus: v.RangeIsPlus, RangeIsMinus: v.RangeIsMinus}
		if v.decl != nil {
			if nd, ok := rename[v.decl]; ok {
				ni.Name = nd.DeclName()
			}
		}
		for _, ix := range v.Index {
			ni.Index = append(ni.Index, renameExpr(ix, rename))
		}
		ni.RangeMSB = renameExpr(v.RangeMSB, rename)
		ni.RangeLSB = renameExpr(v.RangeLSB, rename)
		ni.RangeWidth = renameExpr(v.RangeWidth, rename)
		return ni
	case *BinaryExpr:
		return &BinaryExpr{Op: v.Op, Lhs: renameExpr(v.Lhs, rename), Rhs: renameExpr(v.Rhs, rename)}
	case *UnaryExpr:
		return &UnaryExpr{Op: v.Op, Arg: renameExpr(v.Arg, rename)}
	case *ConditionalExpr:
		return &ConditionalExpr{Cond: renameExpr(v.Cond, rename), Then: renameExpr(v.Then, rename), Else: renameExpr(v.Else, rename)}
	case *Concatenation:
		nc := &Concatenation{}
		for _, p := range v.Parts {
			nc.Parts = append(nc.Parts, renameExpr(p, rename))
		}
		return nc
	case *MultipleConcatenation:
		return &MultipleConcatenation{Count: renameExpr(v.Count, rename), Part: renameExpr(v.Part, rename)}
	case *SystemFuncCall:
		nf := &SystemFuncCall{Name: v.Name}
		for _, a := range v.Args {
			nf.Args = append(nf.Args, renameExpr(a, rename))
		}
		return nf
	default:
		return e
	}
}
