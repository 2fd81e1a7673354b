package cascade

import "time"

// runtimeOptions holds the resolved configuration a Runtime is built with,
// matching the teacher's loopOptions shape.
type runtimeOptions struct {
	workerPoolSize  int
	openLoopTarget  time.Duration
	logger          Logger
	metricsEnabled  bool
	includeDirs     []string
}

// RuntimeOption configures a Runtime instance, following the teacher's
// LoopOption interface + functional-closure implementation (options.go).
type RuntimeOption interface {
	applyRuntime(*runtimeOptions) error
}

type runtimeOptionImpl struct {
	apply func(*runtimeOptions) error
}

func (o *runtimeOptionImpl) applyRuntime(opts *runtimeOptions) error { return o.apply(opts) }

// WithWorkerPoolSize sets the fixed size of the compiler worker pool
// (§5's "Worker pool — fixed-size (4 by default)").
func WithWorkerPoolSize(n int) RuntimeOption {
	return &runtimeOptionImpl{func(opts *runtimeOptions) error {
		opts.workerPoolSize = n
		return nil
	}}
}

// WithOpenLoopTarget sets the wall-clock duration the scheduler's
// open-loop mode targets per batch before doubling/halving its iteration
// budget (§4.6 "Clock & open-loop").
func WithOpenLoopTarget(d time.Duration) RuntimeOption {
	return &runtimeOptionImpl{func(opts *runtimeOptions) error {
		opts.openLoopTarget = d
		return nil
	}}
}

// WithStructuredLogger installs a Logger for every ambient subsystem
// (§J Ambient Stack).
func WithStructuredLogger(l Logger) RuntimeOption {
	return &runtimeOptionImpl{func(opts *runtimeOptions) error {
		opts.logger = l
		return nil
	}}
}

// WithMetrics records whether statistics collection was requested. The
// scheduler collects tick/timing statistics, readable via
// Runtime.Metrics(), whether or not this is set.
func WithMetrics(enabled bool) RuntimeOption {
	return &runtimeOptionImpl{func(opts *runtimeOptions) error {
		opts.metricsEnabled = enabled
		return nil
	}}
}

// WithIncludeDirs records an include path search list (§1 "Input").
// Nothing in this package reads it; `$fopen` paths are not resolved
// against it.
func WithIncludeDirs(dirs ...string) RuntimeOption {
	return &runtimeOptionImpl{func(opts *runtimeOptions) error {
		opts.includeDirs = append([]string(nil), dirs...)
		return nil
	}}
}

const defaultWorkerPoolSize = 4
const defaultOpenLoopTarget = 16 * time.Millisecond
const defaultOpenLoopIters = 1 << 10

func resolveRuntimeOptions(opts []RuntimeOption) (*runtimeOptions, error) {
	cfg := &runtimeOptions{
		workerPoolSize: defaultWorkerPoolSize,
		openLoopTarget: defaultOpenLoopTarget,
		logger:         NoOpLogger{},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyRuntime(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
