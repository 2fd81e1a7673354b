package cascade

// Evaluator computes width/type/value for expressions per §4.1 and keeps
// those results in sync with writes to the variables they depend on. One
// Evaluator serves one ModuleDeclaration (and the Program composes many).
type Evaluator struct {
	md       *ModuleDeclaration
	resolver *Resolver

	// FeofHandler/FopenHandler are the externally-injected handlers for
	// $feof/$fopen (§4.1 special expressions). Defaults match the spec:
	// feof always returns true, fopen always returns stream 0.
	FeofHandler  func(fd Bits) bool
	FopenHandler func(path, mode string) uint32
}

func NewEvaluator(md *ModuleDeclaration) *Evaluator {
	return &Evaluator{
		md:           md,
		resolver:     NewResolver(md),
		FeofHandler:  func(Bits) bool { return true },
		FopenHandler: func(string, string) uint32 { return 0 },
	}
}

// --- Self-determination (bottom-up width/type inference, §4.1) ---

func (ev *Evaluator) selfDetermine(e Expr) (width int, typ ValueType) {
	switch v := e.(type) {
	case *Number:
		return v.Value.Width(), v.Value.Type()
	case *StringLit:
		return len(v.Value) * 8, Unsigned
	case *Identifier:
		return ev.identifierWidthType(v)
	case *BinaryExpr:
		lw, lt := ev.selfDetermine(v.Lhs)
		rw, rt := ev.selfDetermine(v.Rhs)
		switch v.Op {
		case OpAdd, OpSub, OpMul, OpDiv, OpMod:
			return max(lw, rw), combineArithType(lt, rt)
		case OpAnd, OpOr, OpXor, OpXnor:
			return max(lw, rw), Unsigned
		case OpEq, OpNeq, OpLt, OpLte, OpGt, OpGte, OpLogicalAnd, OpLogicalOr:
			return 1, Unsigned
		case OpShl, OpShr, OpAshr:
			return lw, lt
		case OpPow:
			return lw, lt
		default:
			return max(lw, rw), Unsigned
		}
	case *UnaryExpr:
		aw, at := ev.selfDetermine(v.Arg)
		switch v.Op {
		case OpUnaryPlus, OpUnaryMinus:
			return aw, at
		case OpUnaryNot:
			return aw, Unsigned
		case OpLogicalNot, OpReduceAnd, OpReduceOr, OpReduceXor, OpReduceNand, OpReduceNor, OpReduceXnor:
			return 1, Unsigned
		default:
			return aw, at
		}
	case *ConditionalExpr:
		tw, tt := ev.selfDetermine(v.Then)
		ew, et := ev.selfDetermine(v.Else)
		return max(tw, ew), combineArithType(tt, et)
	case *Concatenation:
		total := 0
		for _, p := range v.Parts {
			pw, _ := ev.selfDetermine(p)
			total += pw
		}
		return total, Unsigned
	case *MultipleConcatenation:
		n := ev.constEvalInt(v.Count)
		pw, _ := ev.selfDetermine(v.Part)
		return n * pw, Unsigned
	case *SystemFuncCall:
		switch v.Name {
		case "$feof":
			return 1, Unsigned
		case "$fopen":
			return 32, Unsigned
		default:
			return 32, Unsigned
		}
	default:
		return 1, Unsigned
	}
}

// combineArithType is the Unsigned/Signed/Real promotion rule shared by
// every operator position that combines two self-determined operand types
// into one result type (§4.1): Real dominates, Signed requires both sides
// signed, otherwise Unsigned.
func combineArithType(lt, rt ValueType) ValueType {
	switch {
	case lt == Real || rt == Real:
		return Real
	case lt == Signed && rt == Signed:
		return Signed
	default:
		return Unsigned
	}
}

func (ev *Evaluator) identifierWidthType(id *Identifier) (int, ValueType) {
	d := ev.resolver.Resolve(id)
	if d == nil {
		return 1, Unsigned
	}
	w := d.Width()
	if id.RangeMSB != nil {
		if id.RangeIsPlus || id.RangeIsMinus {
			return ev.constEvalInt(id.RangeWidth), Unsigned
		}
		return ev.constEvalInt(id.RangeMSB) - ev.constEvalInt(id.RangeLSB) + 1, Unsigned
	}
	return w, d.Type()
}

// constEvalInt evaluates e as a constant int (used for range bounds, genvar
// bounds, repetition counts). It does not check that e is constant: a
// non-constant leaf is read at its current value. Callers only use this
// on positions the HDL subset requires to be statically evaluable (§4.1
// ranges, §4.4 LoopUnroll preconditions).
func (ev *Evaluator) constEvalInt(e Expr) int {
	if e == nil {
		return 0
	}
	return int(ev.GetValue(e).ToInt64())
}

// --- Context-determination (top-down widening, §4.1) ---

// context evaluates e widened to (width, typ): for an operator position
// that propagates context (arithmetic/bitwise), the operands are widened
// to (width, typ) *before* the operator applies, so a carry or high bit
// that a narrower self-determined computation would truncate survives
// into the result. Shift/power RHS, the ternary condition, and any
// non-propagating operator are exempt — they are evaluated at their own
// self-determined width via GetValue and only the final result is
// widened/retyped for the caller, matching §4.1 and the §8 "Value
// freshness" invariant (self-determine ∘ context-determine)(e).
func (ev *Evaluator) context(e Expr, width int, typ ValueType) Bits {
	switch v := e.(type) {
	case *BinaryExpr:
		switch v.Op {
		case OpAdd, OpSub, OpMul, OpDiv, OpMod, OpAnd, OpOr, OpXor, OpXnor:
			l := ev.context(v.Lhs, width, typ)
			r := ev.context(v.Rhs, width, typ)
			return ev.applyBinaryOp(v.Op, l, r)
		}
	case *ConditionalExpr:
		if !ev.GetValue(v.Cond).IsZero() {
			return ev.context(v.Then, width, typ)
		}
		return ev.context(v.Else, width, typ)
	}
	return retype(ev.GetValue(e), width, typ)
}

// --- Value cache (§3/§4.1) ---

// GetValue returns e's cached value, recomputing the subtree if dirty.
func (ev *Evaluator) GetValue(e Expr) Bits {
	d := e.exprDecoration()
	if d.valid && e.Flags()&FlagDirty == 0 {
		return d.bitVal[0]
	}
	v := ev.compute(e)
	d.bitVal = []Bits{v}
	d.valid = true
	e.ClearFlags(FlagDirty)
	return v
}

func (ev *Evaluator) compute(e Expr) Bits {
	switch v := e.(type) {
	case *Number:
		return v.Value
	case *StringLit:
		parts := make([]Bits, len(v.Value))
		for i := 0; i < len(v.Value); i++ {
			parts[i] = NewBits(8, uint64(v.Value[i]))
		}
		return Concat(parts...)
	case *Identifier:
		return ev.evalIdentifier(v)
	case *BinaryExpr:
		return ev.evalBinary(v)
	case *UnaryExpr:
		return ev.evalUnary(v)
	case *ConditionalExpr:
		c := ev.GetValue(v.Cond)
		if !c.IsZero() {
			return ev.GetValue(v.Then)
		}
		return ev.GetValue(v.Else)
	case *Concatenation:
		parts := make([]Bits, len(v.Parts))
		for i, p := range v.Parts {
			parts[i] = ev.GetValue(p)
		}
		return Concat(parts...)
	case *MultipleConcatenation:
		n := ev.constEvalInt(v.Count)
		return Repeat(n, ev.GetValue(v.Part))
	case *SystemFuncCall:
		return ev.evalSystemFunc(v)
	default:
		return NewBits(1, 0)
	}
}

// evalBinary computes a BinaryExpr's value. Arithmetic/bitwise and
// relational operators first determine the common (width, typ) their
// operands must be widened to (relational operators size themselves
// independently of any outer context, since a comparison's result is
// always 1 bit regardless of what uses it), then evaluate both operands
// through context so a propagating sub-expression is computed at the wider
// width instead of truncating at its own self-determined size (§4.1).
// Shift/power/logical operators are exempt from context propagation and
// use the plain self-determined operand values.
func (ev *Evaluator) evalBinary(v *BinaryExpr) Bits {
	switch v.Op {
	case OpAdd, OpSub, OpMul, OpDiv, OpMod, OpAnd, OpOr, OpXor, OpXnor,
		OpEq, OpNeq, OpLt, OpLte, OpGt, OpGte:
		lw, lt := ev.selfDetermine(v.Lhs)
		rw, rt := ev.selfDetermine(v.Rhs)
		w, t := max(lw, rw), combineArithType(lt, rt)
		l := ev.context(v.Lhs, w, t)
		r := ev.context(v.Rhs, w, t)
		return ev.applyBinaryOp(v.Op, l, r)
	default:
		l, r := ev.GetValue(v.Lhs), ev.GetValue(v.Rhs)
		return ev.applyBinaryOp(v.Op, l, r)
	}
}

func (ev *Evaluator) applyBinaryOp(op BinaryOp, l, r Bits) Bits {
	switch op {
	case OpAdd:
		return l.Add(r)
	case OpSub:
		return l.Sub(r)
	case OpMul:
		return l.Mul(r)
	case OpDiv:
		return l.Div(r)
	case OpMod:
		return l.Mod(r)
	case OpAnd:
		return l.And(r)
	case OpOr:
		return l.Or(r)
	case OpXor:
		return l.Xor(r)
	case OpXnor:
		return l.Xnor(r)
	case OpEq:
		return l.Eq(r)
	case OpNeq:
		return l.Neq(r)
	case OpLt:
		return l.Lt(r)
	case OpLte:
		return l.Lte(r)
	case OpGt:
		return l.Gt(r)
	case OpGte:
		return l.Gte(r)
	case OpLogicalAnd:
		return l.LogicalAnd(r)
	case OpLogicalOr:
		return l.LogicalOr(r)
	case OpShl:
		return l.Shl(int(r.ToInt64()))
	case OpShr:
		return l.Shr(int(r.ToInt64()))
	case OpAshr:
		return l.Ashr(int(r.ToInt64()))
	case OpPow:
		return l.Pow(r)
	default:
		return NewBits(1, 0)
	}
}

func (ev *Evaluator) evalUnary(v *UnaryExpr) Bits {
	a := ev.GetValue(v.Arg)
	switch v.Op {
	case OpUnaryPlus:
		return a
	case OpUnaryMinus:
		return a.Neg()
	case OpUnaryNot:
		return a.Not()
	case OpLogicalNot:
		return a.LogicalNot()
	case OpReduceAnd:
		return a.ReduceAnd()
	case OpReduceOr:
		return a.ReduceOr()
	case OpReduceXor:
		return a.ReduceXor()
	case OpReduceNand:
		return a.ReduceNand()
	case OpReduceNor:
		return a.ReduceNor()
	case OpReduceXnor:
		return a.ReduceXnor()
	default:
		return a
	}
}

func (ev *Evaluator) evalSystemFunc(v *SystemFuncCall) Bits {
	switch v.Name {
	case "$feof":
		fd := NewBits(32, 0)
		if len(v.Args) > 0 {
			fd = ev.GetValue(v.Args[0])
		}
		if ev.FeofHandler(fd) {
			return NewBits(1, 1)
		}
		return NewBits(1, 0)
	case "$fopen":
		path, mode := "", "r"
		if len(v.Args) > 0 {
			if s, ok := v.Args[0].(*StringLit); ok {
				path = s.Value
			}
		}
		if len(v.Args) > 1 {
			if s, ok := v.Args[1].(*StringLit); ok {
				mode = s.Value
			}
		}
		return NewBits(32, uint64(ev.FopenHandler(path, mode)))
	default:
		return NewBits(1, 0)
	}
}

// dereference linearises a possibly multi-dimensional array index into a
// single array-index i (row-major: outermost dimension most significant)
// plus an optional (msb,lsb) bit-slice, per §4.1. ok is false if any index
// is out of the declared rank at typecheck time (a static error); an
// in-range rank but out-of-bounds runtime index yields i=-1 (caller treats
// reads as zero, writes as a no-op, per §7).
func dereference(d Decl, id *Identifier, ev *Evaluator) (i int, msb, lsb int, haveSlice bool, ok bool) {
	dims := d.Dims()
	if len(id.Index) > len(dims) {
		return 0, 0, 0, false, false // rank exceeded: typecheck error
	}
	idx := 0
	outOfBounds := false
	for k, ixExpr := range id.Index {
		v := ev.constEvalInt(ixExpr)
		if v < 0 || v >= dims[k] {
			outOfBounds = true
		}
		idx = idx*dims[k] + v
	}
	for k := len(id.Index); k < len(dims); k++ {
		idx *= dims[k]
	}
	if outOfBounds {
		return -1, 0, 0, false, true
	}
	if id.RangeMSB != nil {
		if id.RangeIsPlus {
			b := ev.constEvalInt(id.RangeMSB)
			n := ev.constEvalInt(id.RangeWidth)
			return idx, b + n - 1, b, true, true
		}
		if id.RangeIsMinus {
			b := ev.constEvalInt(id.RangeMSB)
			n := ev.constEvalInt(id.RangeWidth)
			return idx, b, b - n + 1, true, true
		}
		return idx, ev.constEvalInt(id.RangeMSB), ev.constEvalInt(id.RangeLSB), true, true
	}
	return idx, 0, 0, false, true
}

// evalIdentifier reads the current value of an identifier occurrence,
// applying array dereference and bit-slicing as needed. Out-of-range
// reads return zero (§7).
func (ev *Evaluator) evalIdentifier(id *Identifier) Bits {
	d := ev.resolver.Resolve(id)
	if d == nil {
		return NewBits(1, 0)
	}
	i, msb, lsb, haveSlice, ok := dereference(d, id, ev)
	if !ok || i < 0 {
		w := d.Width()
		if haveSlice {
			w = msb - lsb + 1
		}
		return ZeroBits(w, Unsigned)
	}
	values := d.Values()
	if i >= len(values) {
		return ZeroBits(d.Width(), Unsigned)
	}
	v := values[i]
	if haveSlice {
		return v.Slice(msb, lsb)
	}
	return v
}

// AssignValue implements the write path of §4.1: updates the decl's cache
// in place (honoring array index/slice), then walks the decl's use-list
// setting the dirty flag on every use and each ancestor expression. A
// write that does not change any bit does not propagate (the Equal guard
// below).
func (ev *Evaluator) AssignValue(id *Identifier, val Bits) {
	d := ev.resolver.Resolve(id)
	if d == nil {
		return
	}
	i, msb, lsb, haveSlice, ok := dereference(d, id, ev)
	if !ok || i < 0 {
		return // out-of-range write: silently dropped (§7)
	}
	values := d.Values()
	if i >= len(values) {
		return
	}
	old := values[i]
	var next Bits
	if haveSlice {
		next = old.SetSlice(msb, lsb, val)
	} else {
		next = val
		next = retype(next, d.Width(), d.Type())
	}
	if next.Equal(old) {
		return
	}
	values[i] = next
	d.SetValues(values)
	ev.propagateDirty(d)
}

func retype(v Bits, width int, typ ValueType) Bits {
	switch typ {
	case Real:
		return NewRealBits(v.ToFloat64())
	case Signed:
		return NewSignedBits(width, v.ToInt64())
	default:
		return NewBits(width, v.ToUint64())
	}
}

// propagateDirty marks every use of d, and every ancestor expression of
// each use, dirty. It does not set FlagScheduled; that bookkeeping is
// left to callers.
func (ev *Evaluator) propagateDirty(d Decl) {
	for _, id := range d.Uses() {
		id.SetFlags(FlagDirty)
		id.exprDecoration().valid = false
		for p := id.Parent(); p != nil; p = p.Parent() {
			if expr, ok := p.(Expr); ok {
				expr.SetFlags(FlagDirty)
				expr.exprDecoration().valid = false
				continue
			}
			break
		}
	}
}
