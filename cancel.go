package cascade

import "sync"

// CancelSignal is the teacher's AbortSignal (abort.go) adapted for the
// scheduler's `stop_compile`/`stop_async` mechanism (§6): a compile job or
// an async worker task observes it to know when to give up early.
type CancelSignal struct {
	mu       sync.RWMutex
	handlers []func(reason error)
	reason   error
	canceled bool
}

func newCancelSignal() *CancelSignal {
	return &CancelSignal{}
}

// Canceled reports whether the signal has fired.
func (s *CancelSignal) Canceled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.canceled
}

// Reason returns the cancellation reason, nil if not canceled.
func (s *CancelSignal) Reason() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reason
}

// OnCancel registers a callback invoked when the signal fires; it fires
// immediately if the signal is already canceled.
func (s *CancelSignal) OnCancel(handler func(reason error)) {
	if handler == nil {
		return
	}
	s.mu.Lock()
	if s.canceled {
		reason := s.reason
		s.mu.Unlock()
		handler(reason)
		return
	}
	s.handlers = append(s.handlers, handler)
	s.mu.Unlock()
}

func (s *CancelSignal) cancel(reason error) {
	s.mu.Lock()
	if s.canceled {
		s.mu.Unlock()
		return
	}
	s.canceled = true
	if reason == nil {
		reason = ErrCompileCanceled
	}
	s.reason = reason
	handlers := append([]func(error)(nil), s.handlers...)
	s.mu.Unlock()
	for _, h := range handlers {
		h(reason)
	}
}

// CancelController is the write side paired with a CancelSignal, mirroring
// AbortController's split of "the thing that can be canceled" from "the
// thing that cancels it".
type CancelController struct {
	signal *CancelSignal
}

// NewCancelController creates a controller with a fresh signal.
func NewCancelController() *CancelController {
	return &CancelController{signal: newCancelSignal()}
}

// Signal returns the controller's signal.
func (c *CancelController) Signal() *CancelSignal { return c.signal }

// Cancel fires the signal with the given reason (ErrCompileCanceled if
// nil). Idempotent.
func (c *CancelController) Cancel(reason error) { c.signal.cancel(reason) }
