package cascade

import (
	"errors"
	"fmt"
)

// Sentinel errors for terminal/lifecycle conditions (§5, §7), following the
// teacher's sentinel-error-plus-typed-struct split: cheap-to-compare
// sentinels for conditions callers branch on, typed structs below for
// conditions that carry a source location or a cause.
var (
	// ErrRuntimeTerminated is returned when an operation is attempted on a
	// Runtime that has already finished (§4.6 "Finish").
	ErrRuntimeTerminated = errors.New("cascade: runtime has terminated")

	// ErrRuntimeNotRunning names an operation attempted before Run has
	// been called. No operation in this package returns it.
	ErrRuntimeNotRunning = errors.New("cascade: runtime is not running")

	// ErrReentrantEval is returned when Eval is called from the scheduler
	// goroutine itself (eval must be posted as an interrupt from another
	// thread, §5).
	ErrReentrantEval = errors.New("cascade: cannot call Eval from the scheduler goroutine")

	// ErrCompileCanceled is the default CancelSignal reason when a compile
	// job or async worker task is canceled without an explicit cause.
	ErrCompileCanceled = errors.New("cascade: compile canceled")
)

// ParseError reports a lexer/parser failure. Cascade's core never
// constructs these itself (the parser is an external collaborator, §1);
// the type exists so a front-end can report failures through the same
// error taxonomy as the rest of the package.
type ParseError struct {
	Loc     SourceLoc
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: parse error: %s", e.Loc, e.Message)
}

// TypecheckError reports a reference to an undefined label, module or
// variable, or any other static check failure (§7). Typecheck errors
// cause the current Eval to fail and roll back (§L.7).
type TypecheckError struct {
	Loc     SourceLoc
	Message string
}

func (e *TypecheckError) Error() string {
	return fmt.Sprintf("%s: error: %s", e.Loc, e.Message)
}

// TypecheckWarning is the declaration-check-time counterpart of
// TypecheckError: an unresolvable reference that could still be defined
// later is a warning, not a failure (§7). It does not implement error's
// failure semantics on its own — it is collected and logged, not
// returned from Eval.
type TypecheckWarning struct {
	Loc     SourceLoc
	Message string
}

func (w TypecheckWarning) String() string {
	return fmt.Sprintf("%s: warning: may become an error at instantiation: %s", w.Loc, w.Message)
}

// RecursiveInstantiationError is raised when elaboration detects a module
// (directly or transitively) instantiating itself (§4.2/§7).
type RecursiveInstantiationError struct {
	Loc  SourceLoc
	Name string
}

func (e *RecursiveInstantiationError) Error() string {
	return fmt.Sprintf("%s: error: recursive instantiation of %q", e.Loc, e.Name)
}

// CompilerError models both recoverable and fatal compiler failures
// (§7). A recoverable error leaves the previous engine in control and is
// merely logged; a Fatal one crashes the JIT hand-off itself and triggers
// Runtime.Finish(0).
type CompilerError struct {
	Fatal   bool
	Cause   error
	Message string
}

func (e *CompilerError) Error() string {
	kind := "Compiler Error"
	if e.Fatal {
		kind = "Fatal Compiler Error"
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", kind, e.Message)
	}
	return kind
}

func (e *CompilerError) Unwrap() error { return e.Cause }

// AggregateError bundles multiple errors raised by a single Eval batch,
// following the teacher's AggregateError (ES2022 AggregateError /
// errors.Join-compatible multi-cause aggregation).
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 0 {
		return "cascade: aggregate error (empty)"
	}
	s := e.Errors[0].Error()
	for _, sub := range e.Errors[1:] {
		s += "; " + sub.Error()
	}
	return s
}

// Unwrap exposes every contained error for errors.Is/errors.As, Go
// 1.20+-compatible multi-error unwrapping (mirrors the teacher's
// AggregateError.Unwrap).
func (e *AggregateError) Unwrap() []error { return e.Errors }

func (e *AggregateError) Is(target error) bool {
	var aggTarget *AggregateError
	return errors.As(target, &aggTarget)
}
