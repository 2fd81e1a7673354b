package cascade

import (
	"fmt"
	"sort"

	"golang.org/x/exp/maps"
)

// undoMap is a map that records insertions for bulk rollback, per the
// "UndoMap" redesign note: implemented as (base, delta) — Commit clears
// delta, Undo removes every key in delta from base. Program keeps its
// module map in one. Program.Eval's rollback of a failed batch does not
// go through it, and nothing in this package calls Undo.
type undoMap struct {
	base  map[string]*ModuleDeclaration
	delta map[string]struct{}
}

func newUndoMap() *undoMap {
	return &undoMap{base: map[string]*ModuleDeclaration{}, delta: map[string]struct{}{}}
}

func (m *undoMap) Get(id string) (*ModuleDeclaration, bool) {
	md, ok := m.base[id]
	return md, ok
}

func (m *undoMap) Insert(id string, md *ModuleDeclaration) {
	m.base[id] = md
	m.delta[id] = struct{}{}
}

// Commit clears the delta set, making the current insertions permanent
// (no longer subject to Undo).
func (m *undoMap) Commit() {
	m.delta = map[string]struct{}{}
}

// Undo reverts every insertion since the last Commit.
func (m *undoMap) Undo() {
	for id := range m.delta {
		delete(m.base, id)
	}
	m.delta = map[string]struct{}{}
}

// SortedKeys returns the map's keys in deterministic (lexical) order, used
// by Program.Modules to list every declaration in a stable sequence.
// Grounded on golang.org/x/exp/maps, pulled in by
// the example pack's own indirect dependency graph (go-catrate/eventloop).
func (m *undoMap) SortedKeys() []string {
	keys := maps.Keys(m.base)
	sort.Strings(keys)
	return keys
}

// RootModuleName is the fully-qualified id of the implicit top-level
// module every REPL item is appended to.
const RootModuleName = "__root"

// Program is an undoable mapping fully-qualified-id -> ModuleDeclaration
// plus one designated root entry (§3). Eval expands generate constructs
// in the root's item list in place, so Program keeps only the elaborated
// root; the pre-elaboration source is not kept, and there is no separate
// root-elaboration entry.
type Program struct {
	modules *undoMap
	root    *ModuleDeclaration
}

func NewProgram() *Program {
	p := &Program{modules: newUndoMap()}
	root := newModuleDeclaration(SourceLoc{}, RootModuleName)
	p.modules.Insert(RootModuleName, root)
	p.modules.Commit()
	p.root = root
	return p
}

// Root returns the root module declaration (the implicit top-level scope
// every REPL item lands in).
func (p *Program) Root() *ModuleDeclaration { return p.root }

// Lookup returns the module declaration registered under a fully-qualified
// id, such as a user-declared module type name.
func (p *Program) Lookup(id string) (*ModuleDeclaration, bool) {
	return p.modules.Get(id)
}

// Declare registers md under id, e.g. when the parser hands the Program a
// new top-level `module foo(...); ... endmodule` declaration.
func (p *Program) Declare(id string, md *ModuleDeclaration) {
	p.modules.Insert(id, md)
}

// Modules returns every declared module id in deterministic order.
func (p *Program) Modules() []string { return p.modules.SortedKeys() }

// Eval appends newly-parsed top-level items to the root module, resolves
// every identifier they introduce, elaborates any generate constructs
// among them, and returns the count of items actually appended (used by
// Module.synchronize's `ignore` parameter, §4.5). On any typecheck error
// the entire batch is rolled back by truncating the root's item and
// declaration lists (the UndoMap is not involved) and zero is returned
// along with an aggregated error (§L.7).
func (p *Program) Eval(items []Stmt) (appended int, err error) {
	start := len(p.root.Items)
	var errs []error
	for _, it := range items {
		setParentsRecursive(it, p.root)
		p.root.Items = append(p.root.Items, it)
		if d, ok := it.(*DeclStmt); ok {
			p.root.Decls = append(p.root.Decls, d.D)
		}
	}
	resolver := NewResolver(p.root)
	for _, it := range p.root.Items[start:] {
		resolver.resolveStmt(it)
	}
	if errs2 := typecheckItems(p.root, p.root.Items[start:]); len(errs2) > 0 {
		errs = append(errs, errs2...)
	}
	if len(errs) > 0 {
		// roll back: drop the appended items/decls entirely
		p.root.Items = p.root.Items[:start]
		newDecls := p.root.Decls[:0:0]
		for _, d := range p.root.Decls {
			keep := true
			for _, it := range items {
				if ds, ok := it.(*DeclStmt); ok && ds.D == d {
					keep = false
				}
			}
			if keep {
				newDecls = append(newDecls, d)
			}
		}
		p.root.Decls = newDecls
		return 0, joinErrors(errs)
	}
	if _, elabErr := elaborateGenerates(p.root, p.root.Items[start:]); elabErr != nil {
		return 0, elabErr
	}
	return len(p.root.Items) - start, nil
}

// typecheckItems performs the declaration-level and full checks of §7:
// unresolvable references emit a warning at declaration-check time
// ("may become an error at instantiation") and an error at full-check
// time. Cascade's REPL only ever performs a full check (there is no
// separate "declare, defer instantiation" phase for top-level items), so
// every unresolved non-hierarchical identifier is an error here.
func typecheckItems(md *ModuleDeclaration, items []Stmt) []error {
	var errs []error
	for _, it := range items {
		walkIdentifiers(it, func(id *Identifier) {
			if len(id.Path) > 0 {
				return // hierarchical refs are not checked (nothing resolves them)
			}
			if !id.resolved {
				errs = append(errs, &TypecheckError{
					Loc:     id.Loc(),
					Message: fmt.Sprintf("unresolved identifier %q", id.Name),
				})
			}
		})
	}
	return errs
}

// elaborateGenerates expands `for-generate`/`if-generate`/`case-generate`
// constructs among items into ordinary module items, recursively (a
// generate body may itself contain further generates). Returns a count of
// the items produced by expansion (items of a nested generate are counted
// at every level they pass through; Program.Eval does not use the count)
// and a RecursiveInstantiation error if elaboration nests deeper than a
// sane bound.
func elaborateGenerates(md *ModuleDeclaration, items []Stmt) (int, error) {
	const maxDepth = 64
	added := 0
	var walk func(parent *[]Stmt, depth int) error
	walk = func(parent *[]Stmt, depth int) error {
		if depth > maxDepth {
			return &RecursiveInstantiationError{Loc: md.Loc(), Name: md.Name}
		}
		out := make([]Stmt, 0, len(*parent))
		for _, it := range *parent {
			switch v := it.(type) {
			case *IfGenerate:
				ev := NewEvaluator(md)
				branch := v.Else
				if !ev.GetValue(v.Cond).IsZero() {
					branch = v.Then
				}
				if b, ok := branch.(*Block); ok {
					sub := append([]Stmt{}, b.Items...)
					if err := walk(&sub, depth+1); err != nil {
						return err
					}
					out = append(out, sub...)
					added += len(sub)
				} else if branch != nil {
					out = append(out, branch)
					added++
				}
			case *CaseGenerate:
				ev := NewEvaluator(md)
				sel := ev.GetValue(v.Sel)
				var chosen Stmt
				for _, arm := range v.Arms {
					for _, val := range arm.Values {
						if ev.GetValue(val).Equal(sel) {
							chosen = arm.Body
						}
					}
				}
				if b, ok := chosen.(*Block); ok {
					sub := append([]Stmt{}, b.Items...)
					if err := walk(&sub, depth+1); err != nil {
						return err
					}
					out = append(out, sub...)
					added += len(sub)
				} else if chosen != nil {
					out = append(out, chosen)
					added++
				}
			case *ForGenerate:
				ev := NewEvaluator(md)
				genvar := &GenvarDeclaration{declBase: declBase{name: v.Genvar, width: 32, typ: Signed}}
				md.Decls = append(md.Decls, genvar)
				genvar.values = []Bits{ev.GetValue(v.InitVal)}
				for iter := 0; iter < 1<<20; iter++ {
					cond := ev.GetValue(v.Cond)
					if cond.IsZero() {
						break
					}
					if b, ok := v.Body.(*Block); ok {
						sub := append([]Stmt{}, b.Items...)
						if err := walk(&sub, depth+1); err != nil {
							return err
						}
						out = append(out, sub...)
						added += len(sub)
					}
					genvar.values[0] = ev.GetValue(v.StepVal)
				}
			default:
				out = append(out, it)
			}
		}
		*parent = out
		return nil
	}
	cp := append([]Stmt{}, items...)
	if err := walk(&cp, 0); err != nil {
		return 0, err
	}
	// splice the elaborated replacement back into md.Items where the
	// original batch lived.
	idx := len(md.Items) - len(items)
	if idx < 0 {
		idx = 0
	}
	md.Items = append(md.Items[:idx], append(cp, md.Items[idx+len(items):]...)...)
	setParentsRecursive(md, md.Parent())
	return added, nil
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	return &AggregateError{Errors: errs}
}
