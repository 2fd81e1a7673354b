package cascade

import "sync"

// interruptChunkSize matches the teacher's ChunkedIngress chunk size: large
// enough to amortize allocation, small enough to keep a chunk within a few
// cache lines.
const interruptChunkSize = 128

var interruptChunkPool = sync.Pool{New: func() any { return &interruptChunk{} }}

type interruptChunk struct {
	tasks   [interruptChunkSize]func()
	next    *interruptChunk
	readPos int
	pos     int
}

func newInterruptChunk() *interruptChunk {
	c := interruptChunkPool.Get().(*interruptChunk)
	c.pos, c.readPos, c.next = 0, 0, nil
	return c
}

func returnInterruptChunk(c *interruptChunk) {
	for i := 0; i < c.pos; i++ {
		c.tasks[i] = nil
	}
	c.pos, c.readPos, c.next = 0, 0, nil
	interruptChunkPool.Put(c)
}

// interruptChunkList is the teacher's ChunkedIngress (ingress.go), renamed
// for its one use in Cascade: the scheduler's FIFO interrupt queue. Not
// safe for concurrent use on its own — InterruptQueue wraps it with the
// mutex/condition-variable pair §4.6 specifies.
type interruptChunkList struct {
	head, tail *interruptChunk
	length     int
}

func (q *interruptChunkList) push(task func()) {
	if q.tail == nil {
		q.tail = newInterruptChunk()
		q.head = q.tail
	}
	if q.tail.pos == len(q.tail.tasks) {
		nt := newInterruptChunk()
		q.tail.next = nt
		q.tail = nt
	}
	q.tail.tasks[q.tail.pos] = task
	q.tail.pos++
	q.length++
}

func (q *interruptChunkList) pop() (func(), bool) {
	if q.head == nil {
		return nil, false
	}
	if q.head.readPos >= q.head.pos {
		if q.head == q.tail {
			q.head.pos, q.head.readPos = 0, 0
			return nil, false
		}
		old := q.head
		q.head = q.head.next
		returnInterruptChunk(old)
		return q.pop()
	}
	t := q.head.tasks[q.head.readPos]
	q.head.tasks[q.head.readPos] = nil
	q.head.readPos++
	q.length--
	return t, true
}

// InterruptQueue is Cascade's scheduler-visible mutation channel (§5, §6):
// "an interrupt is a closure... Interrupts are the only way external
// threads mutate scheduler-visible state." It is a queue guarded by a
// plain (non-recursive) sync.Mutex, with a condition variable for
// blocking interrupts, per §4.6's "Interrupt API". DrainAll releases the
// mutex while each interrupt runs, which is what lets a running interrupt
// schedule further interrupts.
type InterruptQueue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	list     interruptChunkList
	finished bool
	draining sync.WaitGroup
}

// NewInterruptQueue creates an empty, running queue.
func NewInterruptQueue() *InterruptQueue {
	q := &InterruptQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// ScheduleInterrupt appends f to the queue. Returns false if the runtime
// has finished, in which case f is never run.
func (q *InterruptQueue) ScheduleInterrupt(f func()) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.finished {
		return false
	}
	q.list.push(f)
	q.cond.Broadcast()
	return true
}

// ScheduleInterruptOr schedules f, or calls alt immediately if the runtime
// has already finished.
func (q *InterruptQueue) ScheduleInterruptOr(f, alt func()) {
	if !q.ScheduleInterrupt(f) {
		alt()
	}
}

// ScheduleBlockingInterrupt schedules f and blocks the calling goroutine
// until the queue has been drained past this point — used for synchronous
// Eval calls (§6).
func (q *InterruptQueue) ScheduleBlockingInterrupt(f func()) {
	done := make(chan struct{})
	wrapped := func() {
		f()
		close(done)
	}
	if !q.ScheduleInterrupt(wrapped) {
		return
	}
	<-done
}

// ScheduleStateSafeInterrupt implements §4.6's
// schedule_state_safe_interrupt: f only runs once dirty() reports that no
// pending item-eval would be disrupted by it; until then the interrupt
// re-schedules itself. Termination is guaranteed because item-evals are
// bounded (§5) — dirty() can only report true finitely many times before
// the backlog it reflects is drained by an intervening resync. The caller
// supplies dirty rather than the queue tracking it itself, since "pending
// item-evals" is scheduler state the queue has no notion of.
func (q *InterruptQueue) ScheduleStateSafeInterrupt(f func(), dirty func() bool) bool {
	var again func()
	again = func() {
		if dirty() {
			q.ScheduleInterrupt(again)
			return
		}
		f()
	}
	return q.ScheduleInterrupt(again)
}

// Finish marks the queue finished: further ScheduleInterrupt calls fail,
// matching "schedule_interrupt... returns false if the runtime has
// finished".
func (q *InterruptQueue) Finish() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.finished = true
	q.cond.Broadcast()
}

// DrainAll pops and runs every currently-queued interrupt in FIFO order,
// per §4.6's "Interrupt drain": the caller is expected to have already
// appended a trailing resync interrupt before calling this.
func (q *InterruptQueue) DrainAll() {
	for {
		q.mu.Lock()
		f, ok := q.list.pop()
		q.mu.Unlock()
		if !ok {
			return
		}
		f()
	}
}

// Len reports the number of interrupts currently queued.
func (q *InterruptQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.list.length
}
