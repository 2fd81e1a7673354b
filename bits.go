package cascade

import (
	"fmt"
	"math/big"
	"math/bits"
	"strings"
)

// ValueType classifies the interpretation of a [Bits] value, per §3 of the
// data model: the high bits above width are zero for unsigned values and
// sign-extended for signed ones; real values live in a fixed 64-bit slot.
type ValueType int

const (
	Unsigned ValueType = iota
	Signed
	Real
)

func (t ValueType) String() string {
	switch t {
	case Unsigned:
		return "unsigned"
	case Signed:
		return "signed"
	case Real:
		return "real"
	default:
		return "invalid"
	}
}

// Bits is a variable-width integer or real value. The zero value
// (Bits{}) has width 0 and is not produced by any constructor; use
// NewBits(1, 0) for the width-1 scalar default used by
// undeclared/unconstrained expressions.
//
// Invariants (enforced by every constructor and mutator in this file):
//   - width is always >= 1.
//   - for Unsigned, bits above width are zero.
//   - for Signed, bits above width are the sign-extension of bit (width-1).
//   - for Real, width is ignored for storage purposes (value lives in val
//     as a 64-bit float bit pattern) but is still tracked for type-rule
//     propagation, per §4.1.
//
// Bits is not safe for concurrent mutation; callers (the evaluator, engine
// read/write paths) serialize access per-value.
type Bits struct {
	typ   ValueType
	width int
	val   big.Int // two's-complement magnitude within the masked/extended width
	real  float64
}

// NewBits constructs an unsigned Bits of the given width from an integer
// value, masking to width.
func NewBits(width int, v uint64) Bits {
	b := Bits{typ: Unsigned, width: max(1, width)}
	b.val.SetUint64(v)
	b.mask()
	return b
}

// NewSignedBits constructs a signed Bits of the given width.
func NewSignedBits(width int, v int64) Bits {
	b := Bits{typ: Signed, width: max(1, width)}
	b.val.SetInt64(v)
	b.mask()
	return b
}

// NewRealBits constructs a real-typed Bits.
func NewRealBits(v float64) Bits {
	return Bits{typ: Real, width: 64, real: v}
}

// ZeroBits returns the zero value of the given width/type, the default
// used whenever a declaration or array slot has no initializer.
func ZeroBits(width int, typ ValueType) Bits {
	switch typ {
	case Real:
		return NewRealBits(0)
	case Signed:
		return NewSignedBits(width, 0)
	default:
		return NewBits(width, 0)
	}
}

func (b Bits) Width() int      { return b.width }
func (b Bits) Type() ValueType { return b.typ }
func (b Bits) IsReal() bool    { return b.typ == Real }
func (b Bits) IsSigned() bool  { return b.typ == Signed }

// mask normalizes val to the current width/type: unsigned values are
// truncated above width, signed values are sign-extended from bit
// (width-1). Real values are untouched.
func (b *Bits) mask() {
	if b.typ == Real {
		return
	}
	var m big.Int
	m.Lsh(big.NewInt(1), uint(b.width))
	m.Sub(&m, big.NewInt(1))
	b.val.And(&b.val, &m)
	if b.typ == Signed && b.val.Bit(b.width-1) == 1 {
		// sign extend into negative big.Int representation
		var full big.Int
		full.Lsh(big.NewInt(1), uint(b.width))
		b.val.Sub(&b.val, &full)
	}
}

// ToUint64 returns the low 64 bits of the value, unsigned-truncated. Used
// by engines and the data plane for word-level transfer.
func (b Bits) ToUint64() uint64 {
	if b.typ == Real {
		return uint64(int64(b.real))
	}
	var u big.Int
	if b.val.Sign() < 0 {
		var full big.Int
		full.Lsh(big.NewInt(1), uint(b.width))
		u.Add(&b.val, &full)
	} else {
		u.Set(&b.val)
	}
	return u.Uint64()
}

// ToFloat64 returns the value as a float64 (for Real values, exact; for
// integer values, a numeric conversion).
func (b Bits) ToFloat64() float64 {
	if b.typ == Real {
		return b.real
	}
	f := new(big.Float).SetInt(&b.val)
	v, _ := f.Float64()
	return v
}

// ToInt64 returns the value as a signed int64 (two's-complement semantics
// preserved for Signed Bits; for Unsigned it is the raw magnitude).
func (b Bits) ToInt64() int64 {
	if b.typ == Real {
		return int64(b.real)
	}
	return b.val.Int64()
}

// IsZero reports whether every bit of the value (within width) is zero.
// Used for conditions (`if`, `?:`, reduction truth tests).
func (b Bits) IsZero() bool {
	if b.typ == Real {
		return b.real == 0
	}
	return b.val.Sign() == 0
}

// Equal compares two Bits values over the first min(width(lhs),
// width(rhs)) bits, per the §3 equality invariant ("Equality compares only
// the first width bits"). Differing widths are equalized by truncating the
// wider operand before compare; callers that want context-determined
// comparison should widen both operands (e.g. via Evaluator.context) first.
func (b Bits) Equal(o Bits) bool {
	if b.typ == Real || o.typ == Real {
		return b.ToFloat64() == o.ToFloat64()
	}
	w := min(b.width, o.width)
	var mb, mo big.Int
	mask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), uint(w)), big.NewInt(1))
	mb.And(&b.val, mask)
	mo.And(&o.val, mask)
	return mb.Cmp(&mo) == 0
}

// --- Slicing ---

// Slice returns bits [msb:lsb] (inclusive, msb >= lsb), unsigned, per §4.1
// range semantics; the restricted subset (§9) requires lsb==0 for
// declaration ranges, but expression-level part-selects may have any
// lsb <= msb.
func (b Bits) Slice(msb, lsb int) Bits {
	if b.typ == Real {
		panic("cascade: cannot bit-slice a real value")
	}
	w := msb - lsb + 1
	if w < 1 {
		panic("cascade: slice range lo > hi")
	}
	var shifted big.Int
	full := b.unsignedVal()
	shifted.Rsh(&full, uint(lsb))
	out := Bits{typ: Unsigned, width: w}
	out.val.Set(&shifted)
	out.mask()
	return out
}

// SetSlice returns a copy of b with bits [msb:lsb] replaced by the low
// (msb-lsb+1) bits of v. Out-of-range writes (msb/lsb beyond b.width) are
// silently dropped for the portion outside width, matching §7's permissive
// runtime semantics for partial writes that straddle a declared width.
func (b Bits) SetSlice(msb, lsb int, v Bits) Bits {
	if b.typ == Real {
		panic("cascade: cannot bit-slice a real value")
	}
	w := msb - lsb + 1
	if w < 1 {
		panic("cascade: slice range lo > hi")
	}
	if lsb >= b.width {
		return b // entirely out of range: drop
	}
	if msb >= b.width {
		msb = b.width - 1
		w = msb - lsb + 1
	}
	full := b.unsignedVal()
	var clearMask, setMask, vmask big.Int
	clearMask.Lsh(big.NewInt(1), uint(w))
	clearMask.Sub(&clearMask, big.NewInt(1))
	clearMask.Lsh(&clearMask, uint(lsb))
	clearMask.Not(&clearMask)

	vmask.Lsh(big.NewInt(1), uint(w))
	vmask.Sub(&vmask, big.NewInt(1))
	setMask.And(&v.val, &vmask)
	setMask.Lsh(&setMask, uint(lsb))

	var result big.Int
	result.And(&full, &clearMask)
	result.Or(&result, &setMask)

	out := b
	out.val.Set(&result)
	out.mask()
	return out
}

// Word returns 32-bit word i (0 = least-significant) of the raw storage,
// for the engine contract's word-level raw access and the save-file format.
func (b Bits) Word(i int) uint32 {
	full := b.unsignedVal()
	var shifted big.Int
	shifted.Rsh(&full, uint(i*32))
	var mask big.Int
	mask.SetUint64(0xFFFFFFFF)
	shifted.And(&shifted, &mask)
	return uint32(shifted.Uint64())
}

// NumWords returns ceil(width/32), the word count used by the save-file
// serialization format.
func (b Bits) NumWords() int {
	if b.width == 0 {
		return 0
	}
	return (b.width + 31) / 32
}

func (b Bits) unsignedVal() big.Int {
	if b.val.Sign() >= 0 {
		return b.val
	}
	var full, out big.Int
	full.Lsh(big.NewInt(1), uint(b.width))
	out.Add(&b.val, &full)
	return out
}

// --- Arithmetic (§4.1 self-determination rules already applied to width
// by the caller; these operators assume operands are already
// width/type-matched per context-determination) ---

func promote(a, b Bits) ValueType {
	if a.typ == Real || b.typ == Real {
		return Real
	}
	if a.typ == Signed && b.typ == Signed {
		return Signed
	}
	return Unsigned
}

func (b Bits) Add(o Bits) Bits { return arith(b, o, func(x, y *big.Int, z *big.Int) { z.Add(x, y) }) }
func (b Bits) Sub(o Bits) Bits { return arith(b, o, func(x, y *big.Int, z *big.Int) { z.Sub(x, y) }) }
func (b Bits) Mul(o Bits) Bits { return arith(b, o, func(x, y *big.Int, z *big.Int) { z.Mul(x, y) }) }

func (b Bits) Div(o Bits) Bits {
	if promote(b, o) == Real {
		return NewRealBits(b.ToFloat64() / o.ToFloat64())
	}
	return arith(b, o, func(x, y *big.Int, z *big.Int) {
		if y.Sign() == 0 {
			z.SetInt64(0)
			return
		}
		z.Quo(x, y)
	})
}

func (b Bits) Mod(o Bits) Bits {
	if promote(b, o) == Real {
		panic("cascade: modulo of real operands is not defined")
	}
	return arith(b, o, func(x, y *big.Int, z *big.Int) {
		if y.Sign() == 0 {
			z.SetInt64(0)
			return
		}
		z.Rem(x, y)
	})
}

func arith(a, o Bits, op func(x, y, z *big.Int)) Bits {
	t := promote(a, o)
	if t == Real {
		panic("cascade: arith() must not be used for real-typed operands")
	}
	w := max(a.width, o.width)
	var x, y, z big.Int
	x.Set(&a.val)
	y.Set(&o.val)
	op(&x, &y, &z)
	out := Bits{typ: t, width: w}
	out.val.Set(&z)
	out.mask()
	return out
}

// Bitwise operators: max operand width, unsigned, per §4.1.
func (b Bits) And(o Bits) Bits { return bitwise(b, o, (*big.Int).And) }
func (b Bits) Or(o Bits) Bits  { return bitwise(b, o, (*big.Int).Or) }
func (b Bits) Xor(o Bits) Bits { return bitwise(b, o, (*big.Int).Xor) }
func (b Bits) Xnor(o Bits) Bits {
	r := bitwise(b, o, (*big.Int).Xor)
	return r.Not()
}

func bitwise(a, o Bits, op func(z, x, y *big.Int) *big.Int) Bits {
	w := max(a.width, o.width)
	x, y := a.unsignedVal(), o.unsignedVal()
	var z big.Int
	op(&z, &x, &y)
	out := Bits{typ: Unsigned, width: w}
	out.val.Set(&z)
	out.mask()
	return out
}

// Not returns the bitwise complement, same width, unsigned (the HDL's
// unary ~ "propagates width but drops sign" per §4.1).
func (b Bits) Not() Bits {
	full := b.unsignedVal()
	var mask, z big.Int
	mask.Lsh(big.NewInt(1), uint(b.width))
	mask.Sub(&mask, big.NewInt(1))
	z.Xor(&full, &mask)
	out := Bits{typ: Unsigned, width: b.width}
	out.val.Set(&z)
	out.mask()
	return out
}

// Neg returns the arithmetic negation, propagating type/width per unary -.
func (b Bits) Neg() Bits {
	if b.typ == Real {
		return NewRealBits(-b.real)
	}
	out := Bits{typ: b.typ, width: b.width}
	out.val.Neg(&b.val)
	out.mask()
	return out
}

// Comparison/logical operators: width 1, unsigned, per §4.1.
func one(v bool) Bits {
	if v {
		return NewBits(1, 1)
	}
	return NewBits(1, 0)
}

func (b Bits) Eq(o Bits) Bits  { return one(b.compare(o) == 0) }
func (b Bits) Neq(o Bits) Bits { return one(b.compare(o) != 0) }
func (b Bits) Lt(o Bits) Bits  { return one(b.compare(o) < 0) }
func (b Bits) Lte(o Bits) Bits { return one(b.compare(o) <= 0) }
func (b Bits) Gt(o Bits) Bits  { return one(b.compare(o) > 0) }
func (b Bits) Gte(o Bits) Bits { return one(b.compare(o) >= 0) }

func (b Bits) compare(o Bits) int {
	if b.typ == Real || o.typ == Real {
		bf, of := b.ToFloat64(), o.ToFloat64()
		switch {
		case bf < of:
			return -1
		case bf > of:
			return 1
		default:
			return 0
		}
	}
	if b.typ == Signed && o.typ == Signed {
		return b.val.Cmp(&o.val)
	}
	bv, ov := b.unsignedVal(), o.unsignedVal()
	return bv.Cmp(&ov)
}

func (b Bits) LogicalAnd(o Bits) Bits { return one(!b.IsZero() && !o.IsZero()) }
func (b Bits) LogicalOr(o Bits) Bits  { return one(!b.IsZero() || !o.IsZero()) }
func (b Bits) LogicalNot() Bits       { return one(b.IsZero()) }

// --- Shifts: result width/sign = left operand's, per §4.1. ---

func (b Bits) Shl(amount int) Bits {
	if amount < 0 {
		return b.lshr(-amount, false)
	}
	full := b.unsignedVal()
	var z big.Int
	z.Lsh(&full, uint(amount))
	out := Bits{typ: b.typ, width: b.width}
	out.val.Set(&z)
	out.mask()
	return out
}

// Shr is the logical (>>) shift: zero-filled regardless of sign.
func (b Bits) Shr(amount int) Bits { return b.lshr(amount, false) }

// Ashr is the arithmetic (>>>) shift: sign-extends for Signed operands,
// behaves like Shr for Unsigned (HDL semantics: >>> on unsigned == >>).
func (b Bits) Ashr(amount int) Bits { return b.lshr(amount, b.typ == Signed) }

func (b Bits) lshr(amount int, arithmetic bool) Bits {
	if amount < 0 {
		return b.Shl(-amount)
	}
	out := Bits{typ: b.typ, width: b.width}
	if arithmetic {
		out.val.Rsh(&b.val, uint(amount)) // big.Int.Rsh is arithmetic for negative values
	} else {
		full := b.unsignedVal()
		full.Rsh(&full, uint(amount))
		out.val.Set(&full)
	}
	out.mask()
	return out
}

// Pow raises b to the exponent e (an int), result width = left operand's
// width per §4.1.
func (b Bits) Pow(e Bits) Bits {
	if b.typ == Real || e.typ == Real {
		return NewRealBits(powFloat(b.ToFloat64(), e.ToFloat64()))
	}
	exp := e.val
	if exp.Sign() < 0 {
		return ZeroBits(b.width, b.typ)
	}
	out := Bits{typ: b.typ, width: b.width}
	var mod big.Int
	mod.Lsh(big.NewInt(1), uint(b.width))
	out.val.Exp(&b.val, &exp, &mod)
	out.mask()
	return out
}

func powFloat(base, exp float64) float64 {
	if exp == 0 {
		return 1
	}
	r := 1.0
	neg := exp < 0
	n := int(exp)
	if neg {
		n = -n
	}
	for i := 0; i < n; i++ {
		r *= base
	}
	if neg {
		return 1 / r
	}
	return r
}

// --- Reductions: width 1 unsigned, per §4.1. ---

func (b Bits) ReduceAnd() Bits {
	full := b.unsignedVal()
	for i := 0; i < b.width; i++ {
		if full.Bit(i) == 0 {
			return one(false)
		}
	}
	return one(true)
}

func (b Bits) ReduceOr() Bits {
	full := b.unsignedVal()
	return one(full.Sign() != 0)
}

func (b Bits) ReduceXor() Bits {
	full := b.unsignedVal()
	parity := 0
	for i := 0; i < b.width; i++ {
		parity ^= int(full.Bit(i))
	}
	return one(parity == 1)
}

func (b Bits) ReduceNand() Bits { return b.ReduceAnd().Not().Slice(0, 0) }
func (b Bits) ReduceNor() Bits  { return b.ReduceOr().Not().Slice(0, 0) }
func (b Bits) ReduceXnor() Bits { return b.ReduceXor().Not().Slice(0, 0) }

// --- Concatenation ---

// Concat implements `{a, b, c, ...}`: sum of widths, unsigned, MSB-first
// ordering (parts[0] occupies the high bits).
func Concat(parts ...Bits) Bits {
	total := 0
	for _, p := range parts {
		total += p.width
	}
	out := Bits{typ: Unsigned, width: max(1, total)}
	acc := big.NewInt(0)
	for _, p := range parts {
		pu := p.unsignedVal()
		acc.Lsh(acc, uint(p.width))
		acc.Or(acc, &pu)
	}
	out.val.Set(acc)
	out.mask()
	return out
}

// Repeat implements `{N{x}}`: N*width(x), unsigned.
func Repeat(n int, x Bits) Bits {
	if n <= 0 {
		return NewBits(1, 0)
	}
	parts := make([]Bits, n)
	for i := range parts {
		parts[i] = x
	}
	return Concat(parts...)
}

// --- Formatting ---

// Format renders the value per a Verilog-style `$write`/`$display`
// directive: 'd' decimal, 'b' binary, 'h'/'x' hex, 'o' octal, 's' as an
// ASCII string (each 8-bit group is one character, MSB-first).
func (b Bits) Format(directive byte) string {
	switch directive {
	case 'd', 'D':
		if b.typ == Real {
			return fmt.Sprintf("%d", int64(b.real))
		}
		return b.val.String()
	case 'b', 'B':
		full := b.unsignedVal()
		s := full.Text(2)
		return strings.Repeat("0", max(0, b.width-len(s))) + s
	case 'h', 'H', 'x', 'X':
		full := b.unsignedVal()
		s := full.Text(16)
		want := (b.width + 3) / 4
		return strings.Repeat("0", max(0, want-len(s))) + s
	case 'o', 'O':
		full := b.unsignedVal()
		return full.Text(8)
	case 's', 'S':
		full := b.unsignedVal()
		n := b.width / 8
		out := make([]byte, 0, n)
		for i := n - 1; i >= 0; i-- {
			out = append(out, byte(new(big.Int).Rsh(&full, uint(i*8)).Uint64()&0xFF))
		}
		return string(out)
	case 'f', 'F', 'g', 'G', 'e', 'E':
		return fmt.Sprintf("%g", b.ToFloat64())
	default:
		return b.val.String()
	}
}

func (b Bits) String() string {
	if b.typ == Real {
		return fmt.Sprintf("%g", b.real)
	}
	return fmt.Sprintf("%d'%s%s", b.width, map[bool]string{true: "s", false: ""}[b.typ == Signed], b.Format('h'))
}

// popcount counts the set bits of one raw word. Nothing in this package
// calls it; the reduction operators work on the big.Int value instead.
func popcount(w uint32) int { return bits.OnesCount32(w) }
