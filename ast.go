package cascade

import "fmt"

// SourceLoc is a source location recorded at parse time and never mutated
// thereafter (§3).
type SourceLoc struct {
	File string
	Line int
}

func (l SourceLoc) String() string {
	if l.File == "" {
		return "<generated>"
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// NodeFlags models the two-bit flag set carried by every AST node: bit 0
// "value dirty", bit 1 "already scheduled". Kept as a distinct bitset type
// (rather than two bools) to mirror the source's packed representation
// while staying a plain Go value, per the "intrusive AST decorations"
// redesign note — decoration lives on the node struct itself (a sum-type
// variant), not a side table, since every concrete node type is already a
// distinct Go struct.
type NodeFlags uint8

const (
	FlagDirty     NodeFlags = 1 << 0
	FlagScheduled NodeFlags = 1 << 1
)

// Node is implemented by every AST node. Traversal is done by type switch
// (see Children) rather than a Visitor/Editor inheritance hierarchy: the
// node-kind dispatch the redesign note calls for, expressed as Go's native
// pattern matching.
type Node interface {
	Loc() SourceLoc
	Parent() Node
	setParent(Node)
	Flags() NodeFlags
	SetFlags(NodeFlags)
	ClearFlags(NodeFlags)
}

// nodeBase is embedded by every concrete node type and supplies the parent
// link, flags and source location common to all nodes.
type nodeBase struct {
	loc    SourceLoc
	parent Node // weak/non-owning: never traversed for ownership, only lookup
	flags  NodeFlags
}

func (n *nodeBase) Loc() SourceLoc         { return n.loc }
func (n *nodeBase) Parent() Node           { return n.parent }
func (n *nodeBase) setParent(p Node)       { n.parent = p }
func (n *nodeBase) Flags() NodeFlags       { return n.flags }
func (n *nodeBase) SetFlags(f NodeFlags)   { n.flags |= f }
func (n *nodeBase) ClearFlags(f NodeFlags) { n.flags &^= f }

// Expr is implemented by every expression node. Expression nodes carry a
// lazily-initialized bitVal cache (length 1 for scalars; length =
// product of declared dimensions for identifier declarations referenced
// as whole arrays) plus the dirty flag in nodeBase.
type Expr interface {
	Node
	exprDecoration() *exprDecor
}

// exprDecor is the value cache described in §3/§4.1: each expression node
// embeds one of these, giving it a cached Bits and the invalidation hook.
type exprDecor struct {
	bitVal []Bits
	valid  bool
}

func (d *exprDecor) exprDecoration() *exprDecor { return d }

// --- Expressions ---

// Number is an integer or real literal.
type Number struct {
	nodeBase
	exprDecor
	Value Bits // width/type as written, e.g. 8'hFF, 3'b101, 1 (unsized = 32-bit default)
}

func NewNumber(loc SourceLoc, v Bits) *Number {
	return &Number{nodeBase: nodeBase{loc: loc}, Value: v}
}

// StringLit is a "..." literal; the HDL subset treats it as a packed byte
// vector (8 bits per character, MSB-first), as consumed by $write/$display.
type StringLit struct {
	nodeBase
	exprDecor
	Value string
}

// Identifier is a reference to a declaration, possibly indexed/sliced.
// Select is nil for a bare reference to a scalar/whole-array declaration.
type Identifier struct {
	nodeBase
	exprDecor
	Name         string
	Path         []string // hierarchical prefix (a.b.c) for cross-instance refs; empty for plain refs
	Index        []Expr   // multi-dimensional array index expressions, outermost first
	RangeMSB     Expr     // non-nil for [msb:lsb], [b +: n], [b -: n] selects
	RangeLSB     Expr
	RangeIsPlus  bool // [b +: n] form
	RangeIsMinus bool // [b -: n] form
	RangeWidth   Expr // n, for +:/-: forms

	decl     Decl     // resolution cache (§4.2)
	resolved bool
}

// Decl is implemented by every declaration node: it carries the use-list
// cache and the storage for the declared value(s).
type Decl interface {
	Node
	DeclName() string
	Dims() []int   // declared array dimensions, outermost first; nil for scalars
	Width() int    // per-element bit width
	Type() ValueType
	addUse(*Identifier)
	removeUse(*Identifier)
	Uses() []*Identifier
	Values() []Bits // length = product(Dims()), or 1 for scalars
	SetValues([]Bits)
}

// declBase is embedded by every declaration node.
type declBase struct {
	nodeBase
	name   string
	dims   []int
	width  int
	typ    ValueType
	values []Bits
	uses   []*Identifier
}

func (d *declBase) DeclName() string { return d.name }
func (d *declBase) Dims() []int      { return d.dims }
func (d *declBase) Width() int       { return d.width }
func (d *declBase) Type() ValueType  { return d.typ }
func (d *declBase) Values() []Bits   { return d.values }
func (d *declBase) SetValues(v []Bits) {
	d.values = v
}

func (d *declBase) addUse(id *Identifier) {
	d.uses = append(d.uses, id)
}

func (d *declBase) removeUse(id *Identifier) {
	for i, u := range d.uses {
		if u == id {
			d.uses = append(d.uses[:i], d.uses[i+1:]...)
			return
		}
	}
}

func (d *declBase) Uses() []*Identifier { return d.uses }

func declSize(dims []int) int {
	n := 1
	for _, dd := range dims {
		n *= dd
	}
	return n
}

// RegDeclaration, WireDeclaration, IntegerDeclaration, ParameterDeclaration,
// LocalparamDeclaration, GenvarDeclaration and PortDeclaration are the
// restricted subset's declaration kinds (§9 narrows the full HDL grammar
// to these).
type (
	RegDeclaration struct {
		declBase
		Init Expr // may be nil
	}
	WireDeclaration struct {
		declBase
		Assign Expr // continuous-assign source if declared `wire x = expr`; may be nil
	}
	IntegerDeclaration struct {
		declBase
		Init Expr
	}
	ParameterDeclaration struct {
		declBase
		Value Expr
	}
	LocalparamDeclaration struct {
		declBase
		Value Expr
	}
	GenvarDeclaration struct {
		declBase
	}
	// PortDeclaration is a module port; Direction classifies it.
	PortDeclaration struct {
		declBase
		Direction PortDirection
	}
)

type PortDirection int

const (
	PortInput PortDirection = iota
	PortOutput
	PortInout
)

// --- Operators ---

type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpAnd
	OpOr
	OpXor
	OpXnor
	OpEq
	OpNeq
	OpLt
	OpLte
	OpGt
	OpGte
	OpLogicalAnd
	OpLogicalOr
	OpShl
	OpShr
	OpAshr
	OpPow
)

type UnaryOp int

const (
	OpUnaryPlus UnaryOp = iota
	OpUnaryMinus
	OpUnaryNot   // ~
	OpLogicalNot // !
	OpReduceAnd
	OpReduceOr
	OpReduceXor
	OpReduceNand
	OpReduceNor
	OpReduceXnor
)

type BinaryExpr struct {
	nodeBase
	exprDecor
	Op          BinaryOp
	Lhs, Rhs    Expr
}

type UnaryExpr struct {
	nodeBase
	exprDecor
	Op  UnaryOp
	Arg Expr
}

type ConditionalExpr struct {
	nodeBase
	exprDecor
	Cond, Then, Else Expr
}

type Concatenation struct {
	nodeBase
	exprDecor
	Parts []Expr
}

type MultipleConcatenation struct {
	nodeBase
	exprDecor
	Count Expr
	Part  Expr
}

// SystemFuncCall covers $feof/$fopen/etc (§4.1 special expressions).
type SystemFuncCall struct {
	nodeBase
	exprDecor
	Name string
	Args []Expr
}

// --- Statements / module items ---

type Stmt interface {
	Node
	stmtTag()
}

type stmtBase struct{ nodeBase }

func (stmtBase) stmtTag() {}

type BlockingAssign struct {
	stmtBase
	Lhs *Identifier
	Rhs Expr
}

type NonblockingAssign struct {
	stmtBase
	Lhs *Identifier
	Rhs Expr
}

// ContinuousAssign implements `assign lhs = rhs;`.
type ContinuousAssign struct {
	stmtBase
	Lhs *Identifier
	Rhs Expr
}

// PackedAssign implements `{a,b,c} = expr;` (a concatenation target).
// AssignUnpack (§4.4) lowers this into a temporary plus one assignment per
// field ahead of back-ends that require a single declaration on every
// left-hand side.
type PackedAssign struct {
	stmtBase
	Fields     []*Identifier // left to right, MSB-first per concat ordering
	Rhs        Expr
	Blocking   bool
}

type IfStatement struct {
	stmtBase
	Cond       Expr
	Then, Else Stmt // Else may be nil
}

// ForStatement: `for (init; cond; step) body`. LoopUnroll requires init,
// cond and step to be statically evaluable (§4.4).
type ForStatement struct {
	stmtBase
	InitVar  *Identifier
	InitVal  Expr
	Cond     Expr
	StepVar  *Identifier
	StepVal  Expr
	Body     Stmt
}

// WhileStatement/RepeatStatement are the other bounded-loop forms LoopUnroll
// consumes.
type WhileStatement struct {
	stmtBase
	Cond Expr
	Body Stmt
}

type RepeatStatement struct {
	stmtBase
	Count Expr
	Body  Stmt
}

// Block is `begin ... end`, optionally declaring locals (generate blocks
// and ordinary procedural blocks both use this node; BlockFlatten removes
// the ones with no declarations).
type Block struct {
	stmtBase
	Decls []Decl
	Items []Stmt
}

// EventEdge is the edge kind of an EventExpr sensitivity term: `posedge x`,
// `negedge x` or a bare level-sensitive `x` (only valid inside `@(*)`
// expansion inputs).
type EventEdge int

const (
	EdgeNone EventEdge = iota
	EdgePos
	EdgeNeg
)

type EventExpr struct {
	Edge EventEdge
	Expr Expr
}

// AlwaysConstruct: `always @(sensitivity) body`. Sensitivity is empty for
// `always @(*)` prior to EventExpand.
type AlwaysConstruct struct {
	stmtBase
	Star        bool
	Sensitivity []EventExpr
	Body        Stmt
}

// InitialConstruct: `initial body`. Ignore marks constructs beyond the
// isolator's ignore threshold (§4.3), so the backend does not re-fire them
// after an engine hand-off.
type InitialConstruct struct {
	stmtBase
	Body   Stmt
	Ignore bool
}

// SystemTaskEnable covers $write, $display, $finish, $monitor (§L.1/§6).
type SystemTaskEnable struct {
	stmtBase
	Name string
	Args []Expr
}

// TaskEnable models a user task call; Machinify turns these into explicit
// states inside a tasked always-block (§4.4, §L.5).
type TaskEnable struct {
	stmtBase
	Name string
	Args []Expr
}

// StateMachineConstruct is Machinify's (§4.4, §L.5) output: an
// edge-triggered always-block containing task calls, converted into a
// case-statement state machine where each task call becomes a state that
// transfers control to the runtime, plus one implicit terminal StateDone
// state signalling completion back to the scheduler.
type StateMachineConstruct struct {
	stmtBase
	Sensitivity []EventExpr
	StateVar    *Identifier // the reg holding the current state index
	States      []MachineState
}

// StateDone is the index of the implicit terminal state every
// StateMachineConstruct gets in addition to its task-call states (§L.5).
const StateDone = -1

type MachineState struct {
	Index int // StateDone for the implicit terminal state
	Body  Stmt
	// TaskCall is the name of the task this state's segment ends by
	// calling; empty for StateDone and for a final segment that calls no
	// task.
	TaskCall string
}

// ModuleInstantiation: `modtype name(.port(expr), ...)`.
type PortConnection struct {
	Port Expr // formal port reference (resolved against the instantiated module)
	Expr Expr
}

type ModuleInstantiation struct {
	stmtBase
	ModuleType string
	InstName   string
	Params     map[string]Expr
	Ports      []PortConnection
	Inline     bool // set by inline analysis; true => body spliced by Isolate
}

// Generate constructs. ForGenerate/IfGenerate/CaseGenerate are all
// elaborated away by Isolate (§4.3); they still appear pre-elaboration in
// Program so resync can re-elaborate them if a genvar-affecting edit lands.
type ForGenerate struct {
	stmtBase
	Genvar   string
	InitVal  Expr
	Cond     Expr
	StepVal  Expr
	Body     Stmt
}

type IfGenerate struct {
	stmtBase
	Cond       Expr
	Then, Else Stmt
}

type CaseGenerateArm struct {
	Values []Expr
	Body   Stmt
}

type CaseGenerate struct {
	stmtBase
	Sel  Expr
	Arms []CaseGenerateArm
}

// ModuleDeclaration is the textual declaration of a module — the unit the
// Program maps fully-qualified IDs to, and the unit Isolate transforms.
type ModuleDeclaration struct {
	nodeBase
	Name   string
	Ports  []*PortDeclaration
	Items  []Stmt // top-level module items (decls wrapped as Stmt via DeclStmt, instantiations, always/initial/assign, generates)
	Decls  []Decl

	// resolver/navigator caches, rebuilt lazily on invalidation (§4.2)
	resolution map[*Identifier]Decl
	scopeIndex map[string]Decl
}

// DeclStmt wraps a Decl so declarations can appear in the Items sequence
// (module item order matters for elaboration and IR passes).
type DeclStmt struct {
	stmtBase
	D Decl
}

func newModuleDeclaration(loc SourceLoc, name string) *ModuleDeclaration {
	return &ModuleDeclaration{
		nodeBase:   nodeBase{loc: loc},
		Name:       name,
		resolution: map[*Identifier]Decl{},
		scopeIndex: map[string]Decl{},
	}
}

// setParentsRecursive wires parent links for a freshly-built subtree; IR
// passes call this on the new AST they produce, since they build nodes
// directly rather than via a parser that tracks parents incrementally.
func setParentsRecursive(n Node, parent Node) {
	if n == nil {
		return
	}
	n.setParent(parent)
	switch v := n.(type) {
	case *BinaryExpr:
		setParentsRecursive(v.Lhs, n)
		setParentsRecursive(v.Rhs, n)
	case *UnaryExpr:
		setParentsRecursive(v.Arg, n)
	case *ConditionalExpr:
		setParentsRecursive(v.Cond, n)
		setParentsRecursive(v.Then, n)
		setParentsRecursive(v.Else, n)
	case *Concatenation:
		for _, p := range v.Parts {
			setParentsRecursive(p, n)
		}
	case *MultipleConcatenation:
		setParentsRecursive(v.Count, n)
		setParentsRecursive(v.Part, n)
	case *SystemFuncCall:
		for _, a := range v.Args {
			setParentsRecursive(a, n)
		}
	case *Identifier:
		for _, ix := range v.Index {
			setParentsRecursive(ix, n)
		}
		setParentsRecursive(v.RangeMSB, n)
		setParentsRecursive(v.RangeLSB, n)
		setParentsRecursive(v.RangeWidth, n)
	case *BlockingAssign:
		setParentsRecursive(v.Lhs, n)
		setParentsRecursive(v.Rhs, n)
	case *NonblockingAssign:
		setParentsRecursive(v.Lhs, n)
		setParentsRecursive(v.Rhs, n)
	case *ContinuousAssign:
		setParentsRecursive(v.Lhs, n)
		setParentsRecursive(v.Rhs, n)
	case *PackedAssign:
		for _, f := range v.Fields {
			setParentsRecursive(f, n)
		}
		setParentsRecursive(v.Rhs, n)
	case *IfStatement:
		setParentsRecursive(v.Cond, n)
		setParentsRecursive(v.Then, n)
		setParentsRecursive(v.Else, n)
	case *ForStatement:
		setParentsRecursive(v.InitVar, n)
		setParentsRecursive(v.InitVal, n)
		setParentsRecursive(v.Cond, n)
		setParentsRecursive(v.StepVar, n)
		setParentsRecursive(v.StepVal, n)
		setParentsRecursive(v.Body, n)
	case *WhileStatement:
		setParentsRecursive(v.Cond, n)
		setParentsRecursive(v.Body, n)
	case *RepeatStatement:
		setParentsRecursive(v.Count, n)
		setParentsRecursive(v.Body, n)
	case *Block:
		for _, d := range v.Decls {
			setParentsRecursive(d, n)
		}
		for _, it := range v.Items {
			setParentsRecursive(it, n)
		}
	case *AlwaysConstruct:
		for _, e := range v.Sensitivity {
			setParentsRecursive(e.Expr, n)
		}
		setParentsRecursive(v.Body, n)
	case *InitialConstruct:
		setParentsRecursive(v.Body, n)
	case *SystemTaskEnable:
		for _, a := range v.Args {
			setParentsRecursive(a, n)
		}
	case *TaskEnable:
		for _, a := range v.Args {
			setParentsRecursive(a, n)
		}
	case *ModuleInstantiation:
		for _, pv := range v.Params {
			setParentsRecursive(pv, n)
		}
		for _, pc := range v.Ports {
			setParentsRecursive(pc.Expr, n)
		}
	case *ForGenerate:
		setParentsRecursive(v.InitVal, n)
		setParentsRecursive(v.Cond, n)
		setParentsRecursive(v.StepVal, n)
		setParentsRecursive(v.Body, n)
	case *IfGenerate:
		setParentsRecursive(v.Cond, n)
		setParentsRecursive(v.Then, n)
		setParentsRecursive(v.Else, n)
	case *CaseGenerate:
		setParentsRecursive(v.Sel, n)
		for _, arm := range v.Arms {
			for _, val := range arm.Values {
				setParentsRecursive(val, n)
			}
			setParentsRecursive(arm.Body, n)
		}
	case *DeclStmt:
		setParentsRecursive(v.D, n)
	case *StateMachineConstruct:
		setParentsRecursive(v.StateVar, n)
		for _, st := range v.States {
			setParentsRecursive(st.Body, n)
		}
	case *RegDeclaration:
		setParentsRecursive(v.Init, n)
	case *WireDeclaration:
		setParentsRecursive(v.Assign, n)
	case *IntegerDeclaration:
		setParentsRecursive(v.Init, n)
	case *ParameterDeclaration:
		setParentsRecursive(v.Value, n)
	case *LocalparamDeclaration:
		setParentsRecursive(v.Value, n)
	case *ModuleDeclaration:
		for _, p := range v.Ports {
			setParentsRecursive(p, n)
		}
		for _, d := range v.Decls {
			setParentsRecursive(d, n)
		}
		for _, it := range v.Items {
			setParentsRecursive(it, n)
		}
	}
}
