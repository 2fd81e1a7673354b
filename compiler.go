package cascade

import (
	"fmt"
	"time"

	catrate "github.com/joeycumines/go-catrate"
)

// Compiler is §3's compile_and_replace contract: given a Module already
// carrying its isolated + IR-lowered source (m.src), produce a new Engine
// implementing the engine contract. Compile may fail; a failure's
// Fatal-ness is carried on the returned *CompilerError (§7).
type Compiler interface {
	CompileAndReplace(m *Module, version uint64) (Engine, error)
}

// SoftwareCompiler is Cascade's default Compiler: it builds a
// SoftwareEngine directly (no native codegen, no FPGA bitstream — the
// interpretation back-end spec.md's §1 keeps in scope). Everything else
// (native-code compiler, FPGA bitstream builder) is an external
// collaborator per spec.md's Non-goals.
type SoftwareCompiler struct {
	Host IOHost

	pool    *workerPool
	limiter *catrate.Limiter
}

// NewSoftwareCompiler builds a compiler with a worker pool of poolSize
// goroutines (§5 "Worker pool — fixed-size (4 by default)") and a
// go-catrate limiter allowing at most poolSize*4 asynchronous compiles per
// instance path per second, so a pathological edit loop can't flood the
// pool. The limiter counts admissions over time; it does not track how
// many compiles are still in flight.
func NewSoftwareCompiler(host IOHost, poolSize int) *SoftwareCompiler {
	return &SoftwareCompiler{
		Host:    host,
		pool:    newWorkerPool(poolSize),
		limiter: catrate.NewLimiter(map[time.Duration]int{time.Second: poolSize * 4}),
	}
}

// CompileAndReplace builds a SoftwareEngine from m.src synchronously. The
// "replace" half of compile_and_replace (atomic engine hand-off) is
// Module.recompileTree's responsibility; this method only ever produces
// the new engine.
func (c *SoftwareCompiler) CompileAndReplace(m *Module, version uint64) (Engine, error) {
	if m.src == nil {
		return nil, &CompilerError{Fatal: true, Message: fmt.Sprintf("module %q has no IR source to compile", m.InstancePath)}
	}
	clockName, isClock, isLogic := classifyModule(m.src)
	m.IsClock = isClock
	m.IsLogic = isLogic
	engine := NewSoftwareEngine(m.src, m.iso, c.Host, isClock, isLogic, clockName)
	return engine, nil
}

// CompileAsync dispatches the same compile to the worker pool, admission
// controlled by the catrate limiter keyed on instance path: if the path
// has used up its per-second compile budget, the future rejects
// immediately with a recoverable CompilerError instead of queuing
// unboundedly.
func (c *SoftwareCompiler) CompileAsync(m *Module, version uint64) *CompileFuture {
	future := NewCompileFuture()
	if _, ok := c.limiter.Allow(m.InstancePath); !ok {
		future.Reject(&CompilerError{Message: fmt.Sprintf("compile rate limit exceeded for %q", m.InstancePath)})
		return future
	}
	c.pool.submit(func() {
		engine, err := c.CompileAndReplace(m, version)
		if err != nil {
			future.Reject(err)
			return
		}
		future.Resolve(engine)
	})
	return future
}

// Shutdown signals the worker pool's goroutines to exit. It does not wait
// for them or for a running job, and jobs still queued in the pool may
// never run.
func (c *SoftwareCompiler) Shutdown() { c.pool.shutdown() }

// classifyModule determines the is_clock/is_logic scheduler hints of §3
// from port counts alone: a module is a clock driver if it has no input
// ports and exactly one output port, and that output is one bit wide;
// otherwise, if it has at least one input port, it's treated as logic.
// The module's body is not inspected.
func classifyModule(md *ModuleDeclaration) (clockDeclName string, isClock, isLogic bool) {
	var inputs, outputs int
	for _, d := range md.Decls {
		pd, ok := d.(*PortDeclaration)
		if !ok {
			continue
		}
		switch pd.Direction {
		case PortInput:
			inputs++
		case PortOutput:
			outputs++
			if pd.Width() == 1 {
				clockDeclName = pd.DeclName()
			}
		}
	}
	isClock = inputs == 0 && outputs == 1 && clockDeclName != ""
	isLogic = inputs >= 1 && !isClock
	return clockDeclName, isClock, isLogic
}

// workerPool is the fixed-size goroutine pool §5 specifies for
// compilation jobs. Workers never touch scheduler state directly: callers
// submit a closure that reports its own result (CompileAsync's closure
// above settles a CompileFuture, whose subscribers receive the result on
// a channel); no interrupt is posted.
type workerPool struct {
	jobs chan func()
	done chan struct{}
}

func newWorkerPool(size int) *workerPool {
	if size <= 0 {
		size = defaultWorkerPoolSize
	}
	p := &workerPool{jobs: make(chan func(), size*4), done: make(chan struct{})}
	for i := 0; i < size; i++ {
		go p.worker()
	}
	return p
}

func (p *workerPool) worker() {
	for {
		select {
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			job()
		case <-p.done:
			return
		}
	}
}

func (p *workerPool) submit(job func()) { p.jobs <- job }

func (p *workerPool) shutdown() { close(p.done) }
