package cascade

import "strconv"

// Pipeline composes the IR passes of §4.4 into the sequence a particular
// back-end requires. Each pass is a pure rewrite; Pipeline.Run invalidates
// the target module's resolver/navigator caches on exit, per the pass
// contract ("invalidates resolution/navigation/module-info caches for
// affected subtrees on exit").
type Pipeline struct {
	// Machinify enables the FPGA-only task-call-to-state-machine
	// conversion; StateVarPrefix names the synthesized state register
	// when it does.
	Machinify      bool
	StateVarPrefix string
	// IndexNormalize enables the IndexNormalize pass.
	IndexNormalize bool
}

// SoftwarePipeline is the software interpreter's pass list: index
// normalization on, Machinify off. Run applies every other pass (loop
// unrolling, de-aliasing, constant propagation, dead-code elimination,
// event expansion, assignment unpacking, block flattening) to every
// pipeline, so the software path runs all of them too.
func SoftwarePipeline() Pipeline { return Pipeline{IndexNormalize: true} }

// FPGAPipeline is the full pass list FPGA back-ends require, including
// Machinify.
func FPGAPipeline() Pipeline {
	return Pipeline{Machinify: true, StateVarPrefix: "__state", IndexNormalize: true}
}

// Run executes the pipeline against md (already Isolated), mutating it in
// place and returning it for convenience. ev must be an Evaluator bound to
// md so constant-folding passes see current declaration values.
func (p Pipeline) Run(ev *Evaluator, md *ModuleDeclaration) *ModuleDeclaration {
	for i, it := range md.Items {
		md.Items[i] = LoopUnroll(ev, it)
	}
	NewResolver(md).ResolveAll()

	DeAlias(md)
	ConstantProp(ev, md)
	DeadCodeEliminate(md)

	if p.IndexNormalize {
		for _, it := range md.Items {
			IndexNormalize(ev, it)
		}
	}

	for i, it := range md.Items {
		if a, ok := it.(*AlwaysConstruct); ok {
			md.Items[i] = EventExpand(a)
		}
	}

	AssignUnpack(md)

	if p.Machinify {
		counter := 0
		for i, it := range md.Items {
			a, ok := it.(*AlwaysConstruct)
			if !ok || !hasTaskCall(a.Body) {
				continue
			}
			counter++
			md.Items[i] = Machinify(a, stateVarName(p.StateVarPrefix, counter))
		}
	}

	for i, it := range md.Items {
		md.Items[i] = BlockFlatten(it)
	}

	NewResolver(md).ResolveAll()
	return md
}

func stateVarName(prefix string, n int) string {
	if prefix == "" {
		prefix = "__state"
	}
	return prefix + "_" + strconv.Itoa(n)
}

func hasTaskCall(s Stmt) bool {
	found := false
	var walk func(Stmt)
	walk = func(s Stmt) {
		if found || s == nil {
			return
		}
		switch v := s.(type) {
		case *TaskEnable:
			found = true
		case *Block:
			for _, it := range v.Items {
				walk(it)
			}
		case *IfStatement:
			walk(v.Then)
			walk(v.Else)
		}
	}
	walk(s)
	return found
}
