package cascade

// EventExpand rewrites `always @(*)` into `always @(v1, v2, ...)` with an
// explicit sensitivity list derived from the identifiers in the body, per
// §4.4 — required for back-end compatibility, since only the software
// interpreter's fast path tolerates an implicit "any input changed"
// sensitivity; compiled back-ends need an explicit list.
//
// The derived list is level-sensitive (EdgeNone) for every distinct
// identifier named in the body, mirroring `@(*)`'s semantics (react to any
// change, not just clock edges) rather than inventing edges that were
// never specified. Assignment targets are included along with the
// identifiers the body reads.
func EventExpand(a *AlwaysConstruct) *AlwaysConstruct {
	if !a.Star {
		return a
	}
	seen := map[string]bool{}
	var sens []EventExpr
	walkIdentifiers(a.Body, func(id *Identifier) {
		if seen[id.Name] {
			return
		}
		seen[id.Name] = true
		sens = append(sens, EventExpr{Edge: EdgeNone, Expr: &Identifier{Name: id.Name, decl: id.decl}})
	})
	return &AlwaysConstruct{Star: false, Sensitivity: sens, Body: a.Body}
}
