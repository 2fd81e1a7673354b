package cascade

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Scheduler is Cascade's Runtime Scheduler (§4.6): a single-writer-thread
// event-driven kernel with a reference scheduler (active/update/done-step
// phases) and an open-loop fast path, an interrupt queue serializing
// asynchronous events against simulation ticks, and the
// eval → resync → recompile → engine-hand-off lifecycle.
type Scheduler struct {
	program   *Program
	root      *Module
	sync      *SyncContext
	compiler  *SoftwareCompiler
	dataplane *DataPlane
	streams   *StreamTable
	logger    Logger
	metrics   *SchedulerMetrics
	lifecycle *RuntimeLifecycle
	ints      *InterruptQueue

	openLoopTarget time.Duration
	openLoopIters  int

	mu                 sync.Mutex // guards the fields below; only ever touched on the scheduler goroutine except via interrupts
	logic              []*Module
	doneLogic          []*Module
	clockModule        *Module
	inlinedLogicModule *Module
	openLoopEnabled    bool
	scheduleAll        bool
	logicalTime        uint64
	evaledSinceResync  bool
	finishArg          int
	finishRequested    bool
}

// NewScheduler wires a Scheduler around a fresh Program, an Isolator
// shared for the lifetime of the Runtime, a SoftwareCompiler, and the
// stream table that is both the IOHost for every SoftwareEngine and the
// destination of $write/$display output.
func NewScheduler(opts *runtimeOptions) *Scheduler {
	program := NewProgram()
	streams := NewStreamTable(opts.logger)
	dataplane := NewDataPlane()
	root := NewRootModule(program.Root())

	s := &Scheduler{
		program:        program,
		root:           root,
		dataplane:      dataplane,
		streams:        streams,
		logger:         opts.logger,
		metrics:        NewSchedulerMetrics(),
		lifecycle:      NewRuntimeLifecycle(),
		ints:           NewInterruptQueue(),
		openLoopTarget: opts.openLoopTarget,
		openLoopIters:  defaultOpenLoopIters,
	}
	s.compiler = NewSoftwareCompiler(s, opts.workerPoolSize)
	s.sync = &SyncContext{
		Program:   program,
		Isolator:  NewIsolator(),
		Pipeline:  SoftwarePipeline(),
		Compiler:  s.compiler,
		DataPlane: dataplane,
		Logger:    opts.logger,
	}
	return s
}

// WriteStream and RequestFinish implement IOHost, so every SoftwareEngine
// routes its $write/$display/$finish through the scheduler rather than
// the bare StreamTable, letting $finish reach the scheduler's lifecycle.
func (s *Scheduler) WriteStream(fid FID, str string) { s.streams.WriteStream(fid, str) }

func (s *Scheduler) RequestFinish(arg int, loc SourceLoc) {
	s.streams.RequestFinish(arg, loc)
	s.mu.Lock()
	if !s.finishRequested {
		s.finishRequested = true
		s.finishArg = arg
	}
	s.mu.Unlock()
}

// Eval schedules a blocking interrupt applying items to the Program, per
// §6's "schedule_blocking_interrupt — used for synchronous eval calls".
// It must not be called from the scheduler goroutine itself (§5).
func (s *Scheduler) Eval(items []Stmt) error {
	if s.lifecycle.IsTerminating() {
		return ErrRuntimeTerminated
	}
	var appended int
	var err error
	s.ints.ScheduleBlockingInterrupt(func() {
		appended, err = s.program.Eval(items)
		if err == nil {
			s.mu.Lock()
			s.evaledSinceResync = true
			s.mu.Unlock()
		}
	})
	_ = appended
	return err
}

// Retarget implements §6's retarget(name): rewrite every module's march
// attributes and force a full recompile, preserving all state/input across
// the resulting engine hand-offs (§L.6). It runs as a
// schedule_state_safe_interrupt (§4.6) so it never races a batch of
// item-evals that haven't resynced yet — §8 scenario 6 ("Retarget
// mid-simulation") depends on this ordering, not just on state survival.
func (s *Scheduler) Retarget(name string) error {
	if s.lifecycle.IsTerminating() {
		return ErrRuntimeTerminated
	}
	m, ok := LookupMarch(name)
	if !ok {
		return &CompilerError{Message: "unknown march " + name}
	}
	done := make(chan struct{})
	var err error
	s.ints.ScheduleStateSafeInterrupt(func() {
		defer close(done)
		err = s.root.Retarget(s.sync, m)
	}, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.evaledSinceResync
	})
	<-done
	return err
}

// Save implements §4.5's save(path): walk the module tree writing
// (instance-id, input, state) tuples to w in the §6 save-file format. Run
// as a schedule_state_safe_interrupt so the dump is a consistent snapshot
// with respect to any in-flight eval batch.
func (s *Scheduler) Save(w io.Writer) error {
	if s.lifecycle.IsTerminating() {
		return ErrRuntimeTerminated
	}
	done := make(chan struct{})
	var err error
	s.ints.ScheduleStateSafeInterrupt(func() {
		defer close(done)
		err = SaveModuleTree(w, s.root)
	}, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.evaledSinceResync
	})
	<-done
	return err
}

// Restart implements §4.5's restart(path): read a save file and inject its
// records into every matching live instance, again as a
// schedule_state_safe_interrupt.
func (s *Scheduler) Restart(r io.Reader) error {
	if s.lifecycle.IsTerminating() {
		return ErrRuntimeTerminated
	}
	done := make(chan struct{})
	var err error
	s.ints.ScheduleStateSafeInterrupt(func() {
		defer close(done)
		err = RestartModuleTree(r, s.root)
	}, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.evaledSinceResync
	})
	<-done
	return err
}

// Run executes the main loop (§4.6) until Finish completes teardown. It
// is meant to run on its own dedicated goroutine — the scheduler thread.
func (s *Scheduler) Run() {
	s.lifecycle.TryTransition(StateAwake, StateRunning)
	for {
		s.mu.Lock()
		finishReq := s.finishRequested
		s.mu.Unlock()
		if finishReq {
			s.lifecycle.Store(StateTerminating)
			s.teardown()
			s.lifecycle.Store(StateTerminated)
			return
		}

		s.mu.Lock()
		openLoop := s.openLoopEnabled && !s.scheduleAll
		s.mu.Unlock()

		if openLoop {
			s.lifecycle.Store(StateOpenLoop)
			s.runOpenLoopBatch()
		} else {
			s.lifecycle.Store(StateRunning)
			s.runReferenceScheduler()
		}
	}
}

// runOpenLoopBatch is §4.6's "Clock & open-loop" fast path: the
// inlined-logic engine runs its own active/update/done-step cycle against
// a local copy of the clock variable for up to openLoopIters ticks before
// returning control.
func (s *Scheduler) runOpenLoopBatch() {
	s.mu.Lock()
	clk, logic, iters := s.clockModule, s.inlinedLogicModule, s.openLoopIters
	s.mu.Unlock()
	if clk == nil || logic == nil {
		s.runReferenceScheduler()
		return
	}

	id := clk.Engine.GetClockID()
	val := clk.Engine.GetClockVal()
	start := time.Now()
	completed := logic.Engine.OpenLoop(id, val, iters)
	elapsed := time.Since(start)

	if completed%2 == 1 {
		clk.Engine.SetClockVal(val.LogicalNot())
	}
	s.drainInterrupts()
	s.mu.Lock()
	s.logicalTime += uint64(completed)
	s.mu.Unlock()
	s.metrics.RecordOpenLoopBatch(completed)

	switch {
	case elapsed < s.openLoopTarget && completed == iters:
		s.openLoopIters *= 2
	case elapsed > s.openLoopTarget:
		s.openLoopIters = max(1, s.openLoopIters/2)
	}
}

// runReferenceScheduler is §4.6's active/update/done-step loop.
func (s *Scheduler) runReferenceScheduler() {
	s.mu.Lock()
	scheduleAll := s.scheduleAll
	logic := append([]*Module(nil), s.logic...)
	doneLogic := append([]*Module(nil), s.doneLogic...)
	s.mu.Unlock()

	for {
		s.drainActive(logic, scheduleAll)
		if !s.drainUpdates(logic) && !scheduleAll {
			break
		}
	}
	for _, m := range doneLogic {
		if m.Engine.OverridesDoneStep() {
			m.Engine.DoneStep()
		}
	}
	s.drainInterrupts()
	s.mu.Lock()
	s.logicalTime++
	s.mu.Unlock()
	s.metrics.RecordTick()
}

// drainActive iterates calling Evaluate on every engine with reads
// pending (or unconditionally in schedule-all mode), stopping once a full
// pass does no work. Every Evaluate that actually ran has its output ports
// pushed through the data plane so dependent engines observe the new
// values on the next pass (§1/§4.5 "the data-plane that routes bit-vector
// values between engines").
func (s *Scheduler) drainActive(logic []*Module, scheduleAll bool) {
	for {
		didWork := false
		for _, m := range logic {
			if scheduleAll {
				m.Engine.Evaluate()
				s.propagateWrites(m)
				didWork = true
			} else if m.Engine.ThereAreReads() {
				m.Engine.Evaluate()
				s.propagateWrites(m)
				didWork = true
			}
		}
		if !didWork {
			return
		}
	}
}

// drainUpdates calls ConditionalUpdate on every engine, then (if any
// update happened) ConditionalEvaluate on each, returning whether any
// update happened at all. Each ConditionalUpdate/ConditionalEvaluate that
// actually did work propagates that engine's outputs through the data
// plane, same as drainActive.
func (s *Scheduler) drainUpdates(logic []*Module) bool {
	any := false
	for _, m := range logic {
		if m.Engine.ConditionalUpdate() {
			any = true
			s.propagateWrites(m)
		}
	}
	if any {
		for _, m := range logic {
			if m.Engine.ConditionalEvaluate() {
				s.propagateWrites(m)
			}
		}
	}
	return any
}

// propagateWrites pushes m's current value for every VarID it writes
// through the data plane, fanning it out to every other engine subscribed
// as a reader of that VarID (§4.5's "subscribe each engine... using IDs
// from §4.3" only wires the subscriber side; this is the publish side a
// non-inlined module instantiation's continuous-assignment pair depends on,
// per isolate.go's doc comment on why that pair exists).
func (s *Scheduler) propagateWrites(m *Module) {
	writes := m.Engine.Writes()
	if len(writes) == 0 {
		return
	}
	st := m.Engine.GetState()
	for _, vid := range writes {
		if v, ok := st.Values[vid]; ok {
			s.dataplane.Write(vid, v)
		}
	}
}

// drainInterrupts implements §4.6's "Interrupt drain": append a trailing
// resync interrupt, then dispatch every queued interrupt FIFO.
func (s *Scheduler) drainInterrupts() {
	s.ints.ScheduleInterrupt(s.resync)
	s.ints.DrainAll()
}

// resync checks whether any items were eval'ed since the last resync; if
// so it (re)synchronizes the module tree and rebuilds the scheduler's
// derived sets, recomputing whether open-loop is enabled.
func (s *Scheduler) resync() {
	s.mu.Lock()
	dirty := s.evaledSinceResync
	s.mu.Unlock()
	if !dirty {
		return
	}

	n := len(s.program.Root().Items)
	if err := s.root.Synchronize(s.sync, n); err != nil {
		if ce, ok := err.(*CompilerError); ok && ce.Fatal {
			s.logger.Log(LogEntry{Level: LevelError, Category: CategoryCompile, Message: ce.Error()})
			s.RequestFinish(0, SourceLoc{})
			return
		}
		s.logger.Log(LogEntry{Level: LevelWarn, Category: CategoryCompile, Message: err.Error()})
	}

	var logic []*Module
	var doneLogic []*Module
	var clk, inlinedLogic *Module
	s.root.Walk(func(m *Module) {
		logic = append(logic, m)
		if m.Engine.OverridesDoneStep() {
			doneLogic = append(doneLogic, m)
		}
		if m.IsClock {
			clk = m
		}
		if m.IsLogic {
			inlinedLogic = m
		}
	})

	openLoop := len(logic) == 2 && clk != nil && inlinedLogic != nil &&
		!clk.Engine.IsStub() && !inlinedLogic.Engine.IsStub()

	s.mu.Lock()
	s.logic, s.doneLogic = logic, doneLogic
	s.clockModule, s.inlinedLogicModule = clk, inlinedLogic
	s.openLoopEnabled = openLoop
	s.evaledSinceResync = false
	s.mu.Unlock()
}

// teardown implements §4.6 Finish's ordered shutdown: stop the compiler's
// worker pool, close the interrupt queue, report statistics when the
// finish argument is at least 1 (§L.3), then call every engine's
// DoneSimulation and drop its data-plane subscriptions.
func (s *Scheduler) teardown() {
	s.compiler.Shutdown()
	s.ints.Finish()

	s.mu.Lock()
	arg := s.finishArg
	elapsed := s.metrics.Snapshot()
	s.mu.Unlock()

	switch {
	case arg >= 1:
		s.streams.WriteStream(StdlogFID, fmt.Sprintf("$finish called at %d\n", elapsed.Ticks))
		fallthrough
	case arg >= 2:
		s.streams.WriteStream(StdlogFID, fmt.Sprintf("%d ticks, %s wall, %.2f Hz average\n",
			elapsed.Ticks, elapsed.WallTime, elapsed.AverageVirtualFrequencyHz))
	}

	s.root.Walk(func(m *Module) {
		m.Engine.DoneSimulation()
		s.dataplane.RemoveEngine(m.Engine)
	})
}

// LogicalTime returns the current simulation tick count.
func (s *Scheduler) LogicalTime() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logicalTime
}

// Metrics returns a snapshot of scheduler statistics.
func (s *Scheduler) Metrics() MetricsSnapshot { return s.metrics.Snapshot() }
