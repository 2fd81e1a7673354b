package cascade

// BlockFlatten collapses a nested `begin...end` block with no declarations
// of its own into its parent block, per §4.4 — purely cosmetic, but it
// keeps the IR a back-end sees free of the scope nesting a human author's
// formatting left behind after LoopUnroll/AssignUnpack introduced their
// own wrapper blocks.
func BlockFlatten(s Stmt) Stmt {
	switch v := s.(type) {
	case *Block:
		nb := &Block{Decls: v.Decls}
		for _, it := range v.Items {
			flat := BlockFlatten(it)
			if inner, ok := flat.(*Block); ok && len(inner.Decls) == 0 {
				nb.Items = append(nb.Items, inner.Items...)
			} else {
				nb.Items = append(nb.Items, flat)
			}
		}
		return nb
	case *IfStatement:
		return &IfStatement{Cond: v.Cond, Then: BlockFlatten(v.Then), Else: BlockFlatten(v.Else)}
	case *AlwaysConstruct:
		return &AlwaysConstruct{Star: v.Star, Sensitivity: v.Sensitivity, Body: BlockFlatten(v.Body)}
	case *InitialConstruct:
		return &InitialConstruct{Body: BlockFlatten(v.Body), Ignore: v.Ignore}
	default:
		return s
	}
}
