package cascade

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestRegDecl(name string, width int, typ ValueType, val Bits) *RegDeclaration {
	return &RegDeclaration{declBase: declBase{name: name, width: width, typ: typ, values: []Bits{val}}}
}

func newTestModule(decls ...Decl) *ModuleDeclaration {
	md := newModuleDeclaration(SourceLoc{}, "test")
	md.Decls = decls
	return md
}

func refID(d Decl) *Identifier {
	return &Identifier{Name: d.DeclName()}
}

// TestContextDeterminationPreservesCarryAcrossRelational is the exact
// scenario from §4.1/§8's value-freshness invariant: a+b computed at its
// own self-determined width would drop the carry that a wider relational
// context needs to see.
func TestContextDeterminationPreservesCarryAcrossRelational(t *testing.T) {
	a := newTestRegDecl("a", 4, Unsigned, NewBits(4, 15))
	b := newTestRegDecl("b", 4, Unsigned, NewBits(4, 1))
	c := newTestRegDecl("c", 8, Unsigned, NewBits(8, 16))
	md := newTestModule(a, b, c)
	r := NewResolver(md)
	ev := NewEvaluator(md)
	ev.resolver = r

	sum := &BinaryExpr{Op: OpAdd, Lhs: refID(a), Rhs: refID(b)}
	eq := &BinaryExpr{Op: OpEq, Lhs: sum, Rhs: refID(c)}

	r.Resolve(sum.Lhs.(*Identifier))
	r.Resolve(sum.Rhs.(*Identifier))
	r.Resolve(eq.Rhs.(*Identifier))

	require.False(t, ev.GetValue(eq).IsZero(), "(a+b)==c must see the widened sum, not the truncated 4-bit one")
}

// TestSelfDeterminedWidthIsUnaffectedByOuterContext checks the width
// contract in isolation: evaluating a+b with no wider context still sizes
// the result at max(width(a),width(b)), per §4.1 self-determination.
func TestSelfDeterminedWidthIsUnaffectedByOuterContext(t *testing.T) {
	a := newTestRegDecl("a", 4, Unsigned, NewBits(4, 15))
	b := newTestRegDecl("b", 4, Unsigned, NewBits(4, 1))
	md := newTestModule(a, b)
	r := NewResolver(md)
	ev := NewEvaluator(md)
	ev.resolver = r

	sum := &BinaryExpr{Op: OpAdd, Lhs: refID(a), Rhs: refID(b)}
	r.Resolve(sum.Lhs.(*Identifier))
	r.Resolve(sum.Rhs.(*Identifier))

	v := ev.GetValue(sum)
	require.Equal(t, 4, v.Width())
	require.Equal(t, uint64(0), v.ToUint64()) // 15+1 wraps at 4 bits
}

// TestAssignValuePropagatesDirtyThroughAncestors exercises §4.1's write
// path: AssignValue must invalidate every use of the written decl and every
// ancestor expression, so a later GetValue recomputes instead of returning
// a stale cached value.
func TestAssignValuePropagatesDirtyThroughAncestors(t *testing.T) {
	a := newTestRegDecl("a", 4, Unsigned, NewBits(4, 1))
	b := newTestRegDecl("b", 4, Unsigned, NewBits(4, 2))
	md := newTestModule(a, b)
	r := NewResolver(md)
	ev := NewEvaluator(md)
	ev.resolver = r

	aID := refID(a)
	sum := &BinaryExpr{Op: OpAdd, Lhs: aID, Rhs: refID(b)}
	setParentsRecursive(sum, nil)
	r.Resolve(aID)
	r.Resolve(sum.Rhs.(*Identifier))

	require.Equal(t, uint64(3), ev.GetValue(sum).ToUint64())

	ev.AssignValue(aID, NewBits(4, 5))
	require.Equal(t, uint64(7), ev.GetValue(sum).ToUint64())
}

// TestConditionalExprContextWidensChosenBranchOnly verifies that context()
// only recurses into the branch actually selected by Cond, per the ternary
// exemption documented on context's doc comment.
func TestConditionalExprContextWidensChosenBranchOnly(t *testing.T) {
	sel := newTestRegDecl("sel", 1, Unsigned, NewBits(1, 1))
	a := newTestRegDecl("a", 4, Unsigned, NewBits(4, 15))
	b := newTestRegDecl("b", 4, Unsigned, NewBits(4, 1))
	c := newTestRegDecl("c", 8, Unsigned, NewBits(8, 16))
	md := newTestModule(sel, a, b, c)
	r := NewResolver(md)
	ev := NewEvaluator(md)
	ev.resolver = r

	cond := &ConditionalExpr{Cond: refID(sel), Then: refID(a), Else: refID(b)}
	eq := &BinaryExpr{Op: OpEq, Lhs: cond, Rhs: refID(c)}

	r.Resolve(cond.Cond.(*Identifier))
	r.Resolve(cond.Then.(*Identifier))
	r.Resolve(cond.Else.(*Identifier))
	r.Resolve(eq.Rhs.(*Identifier))

	// sel picks a (=15), widened to 8 bits it is 15, not equal to c (=16).
	require.True(t, ev.GetValue(eq).IsZero())
}
