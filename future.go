package cascade

import "sync"

// CompileResult carries a CompileFuture's eventual outcome: either a ready
// Engine or a CompilerError (§7).
type CompileResult struct {
	Engine Engine
	Err    error
}

// CompileFutureState mirrors the teacher's PromiseState; compile jobs are
// one-shot and never chain, so Cascade needs only the plain promise.go
// shape (State/Result/ToChannel/Resolve/Reject/fanOut), not the
// Then/Catch/Finally ChainedPromise machinery the teacher also offers.
type CompileFutureState int

const (
	CompilePending CompileFutureState = iota
	CompileResolved
	CompileRejected
)

// CompileFuture is the handle SoftwareCompiler.CompileAsync returns for a
// worker-pool compile job (§6 `schedule_asynchronous`): callers block on
// ToChannel() or poll State(). The scheduler's own resync path compiles
// synchronously through CompileAndReplace and does not use it.
type CompileFuture struct {
	mu          sync.Mutex
	state       CompileFutureState
	result      CompileResult
	subscribers []chan CompileResult
}

// NewCompileFuture returns a pending future.
func NewCompileFuture() *CompileFuture {
	return &CompileFuture{}
}

func (f *CompileFuture) State() CompileFutureState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *CompileFuture) Result() CompileResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result
}

// ToChannel returns a buffered, single-value channel delivering the result
// once settled; already-settled futures return a pre-filled channel.
func (f *CompileFuture) ToChannel() <-chan CompileResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != CompilePending {
		ch := make(chan CompileResult, 1)
		ch <- f.result
		close(ch)
		return ch
	}
	ch := make(chan CompileResult, 1)
	f.subscribers = append(f.subscribers, ch)
	return ch
}

// Resolve settles the future successfully. No-op if already settled.
func (f *CompileFuture) Resolve(engine Engine) {
	f.settle(CompileResolved, CompileResult{Engine: engine})
}

// Reject settles the future with a failure. No-op if already settled.
func (f *CompileFuture) Reject(err error) {
	f.settle(CompileRejected, CompileResult{Err: err})
}

func (f *CompileFuture) settle(state CompileFutureState, result CompileResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != CompilePending {
		return
	}
	f.state = state
	f.result = result
	f.fanOut()
}

func (f *CompileFuture) fanOut() {
	for _, ch := range f.subscribers {
		select {
		case ch <- f.result:
		default:
		}
		close(ch)
	}
	f.subscribers = nil
}
