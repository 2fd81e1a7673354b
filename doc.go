// Package cascade implements the just-in-time simulation and compilation
// core of Cascade: a scheduler, module hierarchy, isolation/IR pipeline and
// expression evaluator for a synthesizable subset of an HDL.
//
// # Architecture
//
// A [Runtime] owns the simulation loop, the interrupt queue, the compiler
// worker pool, and the virtual clock. User edits arrive via [Runtime.Eval],
// which appends items to the [Program] and schedules a blocking interrupt;
// the next resync regenerates IR for affected modules (see the IR passes in
// ir_*.go), isolates them ([Isolator.Isolate]), hands them to a [Compiler], and
// installs the resulting [Engine] on the [Module] tree, resubscribing it on
// the [DataPlane].
//
// # Execution model
//
// The scheduler supports two paths:
//   - The reference scheduler: active/update/done-step phases, advancing
//     logical time by one tick per pass.
//   - The open-loop fast path: when exactly one clock module and one
//     inlined-logic module exist, the logic engine self-clocks for many
//     ticks before returning control to the scheduler.
//
// Hand-off between engines (software interpreter, native, FPGA) is
// transparent at the source level: state and pending input are carried
// across the swap atomically, inside an interrupt, with logical time held
// still.
//
// # Thread safety
//
// Exactly one goroutine (the scheduler goroutine, started by [Runtime.Run])
// mutates the module hierarchy, the engine set and the data plane. All
// other goroutines — callers of [Runtime.Eval], [Runtime.Save],
// [Runtime.Restart], [Runtime.Retarget] — communicate exclusively by
// posting interrupts; compiler worker goroutines only settle a
// [CompileFuture].
//
// # Usage
//
//	rt, err := cascade.NewRuntime(cascade.WithWorkerPoolSize(4))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer rt.Finish(0)
//
//	go rt.Run(context.Background())
//
//	// items is produced by a front-end's parser (§1: the lexer/parser is
//	// an external collaborator) — e.g. the items for
//	// `initial $write("Hello World");`.
//	if err := rt.Eval(items); err != nil {
//		log.Fatal(err)
//	}
package cascade
