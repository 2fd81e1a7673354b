package cascade

// Module is one node in Cascade's elaborated instance tree (§4.5 "Module
// Hierarchy"): a pointer to its parsed source in the Program (`psrc`), an
// IR-transformed source held only transiently during compile (`src`), a
// current Engine, a monotonically-increasing version counter, and an
// ordered child list — exactly the fields spec.md §4.5 names.
type Module struct {
	InstancePath string // "" for root, else dotted instance path
	Name         string // instance name (last path component), "" for root

	psrc *ModuleDeclaration // this instance's declaration as parsed/elaborated
	src  *ModuleDeclaration // IR-transformed source; nil outside a compile

	Engine  Engine
	Version uint64

	Children []*Module

	iso *IsolateResult

	IsClock        bool
	IsLogic        bool
	IsInlinedLogic bool

	March      string            // name of the march last applied by Retarget, "" before the first Retarget
	Attributes map[string]string // back-end attributes the current march supplies (§6 "Marches")
}

// NewRootModule creates the implicit root instance backed by a stub
// engine; Synchronize replaces the stub once the first batch compiles.
func NewRootModule(root *ModuleDeclaration) *Module {
	return &Module{psrc: root, Engine: &StubEngine{}}
}

// SyncContext bundles the collaborators Module.Synchronize needs: the
// Program (to resolve a child's module-type declaration), the shared
// Isolator (for deterministic VarID assignment across the whole tree), the
// IR pipeline to run after isolation, the Compiler that turns IR into a
// live Engine, and the DataPlane every engine subscribes through.
type SyncContext struct {
	Program   *Program
	Isolator  *Isolator
	Pipeline  Pipeline
	Compiler  Compiler
	DataPlane *DataPlane
	Logger    Logger
}

// Synchronize implements §4.5's Module.synchronize(n): walk newly-added
// root items instantiating child Modules for every non-inlined
// ModuleInstantiation, then recompile the whole tree depth-first, then
// resubscribe every engine on the data plane.
func (m *Module) Synchronize(ctx *SyncContext, n int) error {
	m.instantiateChildren(ctx, n)
	if err := m.recompileTree(ctx, n); err != nil {
		return err
	}
	m.resubscribeTree(ctx)
	return nil
}

// instantiateChildren walks the last n items appended to m.psrc, creating
// a child Module for every non-inlined ModuleInstantiation. Only the root
// module ever receives freshly-appended items directly (nested
// instantiations are frozen the moment their enclosing module is first
// isolated), so a new child has its own instantiations built from its
// full item list, recursively, while existing children keep their own
// (already-built) subtrees untouched.
func (m *Module) instantiateChildren(ctx *SyncContext, n int) {
	items := m.psrc.Items
	start := len(items) - n
	if start < 0 {
		start = 0
	}
	for _, it := range items[start:] {
		mi, ok := it.(*ModuleInstantiation)
		if !ok || mi.Inline {
			continue
		}
		childDecl, ok := ctx.Program.Lookup(mi.ModuleType)
		if !ok {
			continue
		}
		path := mi.InstName
		if m.InstancePath != "" {
			path = m.InstancePath + "." + mi.InstName
		}
		child := &Module{
			InstancePath: path,
			Name:         mi.InstName,
			psrc:         childDecl,
			Engine:       &StubEngine{},
		}
		m.Children = append(m.Children, child)
		child.instantiateChildren(ctx, len(childDecl.Items))
	}
}

// Retarget applies march to this module and every descendant, then forces
// a full recompile of the whole subtree regardless of whether psrc
// changed (§L.6 "retarget rewrites attributes without tearing down engine
// state"): unlike Synchronize — which only visits newly-appended root
// items — every module in the tree recompiles, but the same
// recompileTree/handOff machinery preserves its state and pending input
// across the resulting engine swap.
func (m *Module) Retarget(ctx *SyncContext, march March) error {
	m.Walk(func(mod *Module) {
		mod.March = march.Name
		mod.Attributes = march.Attributes
	})
	if err := m.recompileTree(ctx, 0); err != nil {
		return err
	}
	m.resubscribeTree(ctx)
	return nil
}

// recompileTree regenerates IR and hands off a new engine for every module
// in the tree, depth-first, deterministic (append) order. ignoreRoot is the
// `ignore` threshold the root passes its own Isolate call (every other
// module isolates with ignore=0, per §4.5 step 1: "ignore = (this is root
// ? n : 0)").
func (m *Module) recompileTree(ctx *SyncContext, ignoreRoot int) error {
	ignore := 0
	if m.InstancePath == "" {
		ignore = ignoreRoot
	}
	m.iso = ctx.Isolator.Isolate(m.InstancePath, m.psrc, ignore)
	m.src = ctx.Pipeline.Run(NewEvaluator(m.iso.Module), m.iso.Module)

	oldEngine := m.Engine
	newEngine, err := ctx.Compiler.CompileAndReplace(m, m.Version)
	if err != nil {
		return err
	}
	m.handOff(oldEngine, newEngine)
	m.src = nil // compiler owns the IR from here; module only keeps the Engine
	if oldEngine != nil && oldEngine != newEngine {
		ctx.DataPlane.RemoveEngine(oldEngine)
	}

	for _, c := range m.Children {
		if err := c.recompileTree(ctx, ignoreRoot); err != nil {
			return err
		}
	}
	return nil
}

// handOff implements §4.5's "Engine swap atomicity": extract E_old's
// input/state, install E_new, inject the saved values, and bump the
// version. Logical time does not advance across this call — it is the
// caller's responsibility to run it only inside an interrupt (§4.6).
func (m *Module) handOff(oldEngine, newEngine Engine) {
	var state EngineState
	var input EngineInput
	if oldEngine != nil && !oldEngine.IsStub() {
		state = CloneEngineState(oldEngine.GetState())
		input = CloneEngineInput(oldEngine.GetInput())
	}
	newEngine.SetState(state)
	newEngine.SetInput(input)
	m.Engine = newEngine
	m.Version++
}

// resubscribeTree walks the tree subscribing each engine on the data plane
// for every variable it reads (§4.5 step "After compilation, walk the tree
// again subscribing each engine... using IDs from §4.3"). Writers are not
// registered on the data plane; Scheduler.propagateWrites publishes each
// engine's Writes() directly.
// Any previous subscriptions belonging to a superseded engine were already
// dropped by recompileTree's RemoveEngine call right after the hand-off,
// so this call only needs to add the current engine's.
func (m *Module) resubscribeTree(ctx *SyncContext) {
	for _, vid := range m.Engine.Reads() {
		ctx.DataPlane.Subscribe(vid, m.Engine)
	}
	for _, c := range m.Children {
		c.resubscribeTree(ctx)
	}
}

// Walk calls fn for this module and every descendant, depth-first.
func (m *Module) Walk(fn func(*Module)) {
	fn(m)
	for _, c := range m.Children {
		c.Walk(fn)
	}
}

// Find returns the module at instancePath, or nil.
func (m *Module) Find(instancePath string) *Module {
	if m.InstancePath == instancePath {
		return m
	}
	for _, c := range m.Children {
		if found := c.Find(instancePath); found != nil {
			return found
		}
	}
	return nil
}
