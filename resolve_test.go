package cascade

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestResolverLexicalShadowing covers §4.2's scope walk: a block-local
// declaration of the same name shadows the module-level one for identifiers
// parented inside that block, but not for identifiers outside it.
func TestResolverLexicalShadowing(t *testing.T) {
	outer := newTestRegDecl("x", 8, Unsigned, NewBits(8, 1))
	md := newTestModule(outer)

	inner := newTestRegDecl("x", 2, Unsigned, NewBits(2, 3))
	blk := &Block{Decls: []Decl{inner}}

	idOuter := &Identifier{Name: "x"}
	idInner := &Identifier{nodeBase: nodeBase{parent: blk}, Name: "x"}

	r := NewResolver(md)
	require.Equal(t, Decl(outer), r.Resolve(idOuter))
	require.Equal(t, Decl(inner), r.Resolve(idInner))
}

// TestResolverResolveIsIdempotentOnUseList ensures re-resolving an
// already-resolved identifier doesn't add a duplicate use-list entry.
func TestResolverResolveIsIdempotentOnUseList(t *testing.T) {
	d := newTestRegDecl("x", 4, Unsigned, NewBits(4, 0))
	md := newTestModule(d)
	r := NewResolver(md)
	id := &Identifier{Name: "x"}

	r.Resolve(id)
	r.Resolve(id)

	require.Len(t, d.Uses(), 1)
}

// TestResolverResolveUndeclaredNameReturnsNil covers the "name is
// undeclared" path (§7): Resolve returns nil and records nothing.
func TestResolverResolveUndeclaredNameReturnsNil(t *testing.T) {
	md := newTestModule()
	r := NewResolver(md)
	id := &Identifier{Name: "missing"}

	require.Nil(t, r.Resolve(id))
	require.False(t, id.resolved)
}

// TestResolverInvalidateClearsResolutionBelowNode is §8's "Resolution
// stability" property: after Invalidate(n), every identifier strictly below
// n has resolution = nil, and is removed from its former decl's use-list.
func TestResolverInvalidateClearsResolutionBelowNode(t *testing.T) {
	d := newTestRegDecl("x", 4, Unsigned, NewBits(4, 0))
	md := newTestModule(d)
	r := NewResolver(md)

	id := &Identifier{Name: "x"}
	expr := &UnaryExpr{Op: OpUnaryNot, Arg: id}
	setParentsRecursive(expr, nil)

	r.Resolve(id)
	require.NotNil(t, md.resolution[id])
	require.Len(t, d.Uses(), 1)

	r.Invalidate(expr)

	require.Nil(t, md.resolution[id])
	require.False(t, id.resolved)
	require.Empty(t, d.Uses())
}

// TestResolverResolveAllWalksModuleItems confirms ResolveAll reaches
// identifiers nested inside a top-level statement, not just bare top-level
// expressions.
func TestResolverResolveAllWalksModuleItems(t *testing.T) {
	d := newTestRegDecl("x", 4, Unsigned, NewBits(4, 0))
	md := newTestModule(d)

	lhs := &Identifier{Name: "x"}
	rhs := &Identifier{Name: "x"}
	assign := &ContinuousAssign{Lhs: lhs, Rhs: rhs}
	md.Items = []Stmt{assign}

	r := NewResolver(md)
	r.ResolveAll()

	require.Len(t, d.Uses(), 2)
}
