package cascade

import (
	"bytes"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
)

// FID is the runtime's 31-bit stream handle (§6 "FId streams"). The top
// bit is reserved for "owned by runtime" vs "borrowed" per spec.md, though
// the software engine never needs to set it directly — fopen always
// allocates an owned buffer.
type FID uint32

const fidOwnedBit FID = 1 << 30

// Standard stream bindings, fixed at construction exactly as
// runtime.cc binds stdin_=0, stdout_=1, stderr_=2, stdwarn_=3,
// stdinfo_=4, stdlog_=5 (§L.2) — the data-plane and save-file formats key
// off these small integers remaining stable.
const (
	StdinFID  FID = 0
	StdoutFID FID = 1
	StderrFID FID = 2
	StdwarnFID FID = 3
	StdinfoFID FID = 4
	StdlogFID  FID = 5
)

// streamBuffer is one entry in the FId table: an in-memory sink (tests and
// the default runtime both read finished output back out of it) plus an
// optional mirror writer (a terminal, a log file) and the structured
// logger category `$write`/`$display` output to that stream gets mirrored
// at (§J: "stderr/stdwarn FId stream writes are mirrored through this
// logger").
type streamBuffer struct {
	buf      bytes.Buffer
	mirror   io.Writer
	category LogCategory
	level    LogLevel
	closed   bool
}

// StreamTable owns every FId buffer a running simulation can write
// through: the software engine's `$write`/`$display` output lands here
// (on stdout), and Fopen allocates a fresh stream. The software engine
// implements no `$fdisplay`, and `$fopen` in an expression goes through
// the Evaluator's FopenHandler, not this table. Writes after Finish are silently
// squelched per spec.md's "writes after finish are silently squelched".
type StreamTable struct {
	mu      sync.Mutex
	streams map[FID]*streamBuffer
	next    FID
	logger  Logger
	finished bool
}

// NewStreamTable builds a table with the six standard streams (0–5)
// bound, mirroring stdout and stdinfo to os.Stdout and stderr/stdwarn to
// os.Stderr, and logging stderr/stdwarn/stdinfo/stdlog writes through
// logger at LevelError/LevelWarn/LevelInfo/LevelDebug in addition to
// their own buffers. No colorizing is done here.
func NewStreamTable(logger Logger) *StreamTable {
	if logger == nil {
		logger = NoOpLogger{}
	}
	st := &StreamTable{streams: map[FID]*streamBuffer{}, next: 6, logger: logger}
	st.streams[StdinFID] = &streamBuffer{}
	st.streams[StdoutFID] = &streamBuffer{mirror: os.Stdout}
	st.streams[StderrFID] = &streamBuffer{mirror: os.Stderr, category: CategoryStream, level: LevelError}
	st.streams[StdwarnFID] = &streamBuffer{mirror: os.Stderr, category: CategoryStream, level: LevelWarn}
	st.streams[StdinfoFID] = &streamBuffer{mirror: os.Stdout, category: CategoryStream, level: LevelInfo}
	st.streams[StdlogFID] = &streamBuffer{category: CategoryStream, level: LevelDebug}
	return st
}

// IsTerminal reports whether fd's mirror writer is a terminal, used by
// callers (e.g. a host deciding whether to request colorized formatting
// of its own).
func (st *StreamTable) IsTerminal(fd FID) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	sb, ok := st.streams[fd]
	if !ok {
		return false
	}
	f, ok := sb.mirror.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

// WriteStream implements IOHost for SoftwareEngine: it routes a formatted
// `$write`/`$display` string to fd's buffer, its mirror writer if any, and
// the structured logger if the stream carries a log category.
func (st *StreamTable) WriteStream(fd FID, s string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.finished {
		return
	}
	sb, ok := st.streams[fd]
	if !ok || sb.closed {
		return
	}
	sb.buf.WriteString(s)
	if sb.mirror != nil {
		io.WriteString(sb.mirror, s)
	}
	if sb.category != "" {
		st.logger.Log(LogEntry{Level: sb.level, Category: sb.category, Message: s})
	}
}

// RequestFinish marks the table finished: subsequent WriteStream calls are
// squelched, matching spec.md's `$finish` semantics. The verbosity tiers
// themselves (§L.3) are the Runtime's responsibility since they need
// virtual time and simulation statistics this table doesn't own.
func (st *StreamTable) RequestFinish(arg int, loc SourceLoc) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.finished = true
}

// Fopen allocates a new owned stream buffer and returns its FId, the
// software model of spec.md's "fopen allocates a new buffer".
func (st *StreamTable) Fopen(mirror io.Writer) FID {
	st.mu.Lock()
	defer st.mu.Unlock()
	fd := st.next | fidOwnedBit
	st.next++
	st.streams[fd] = &streamBuffer{mirror: mirror}
	return fd
}

// Rdbuf installs an existing buffer's mirror writer, or retrieves the
// current one if w is nil — spec.md's `rdbuf(id, ...)`.
func (st *StreamTable) Rdbuf(fd FID, w io.Writer) io.Writer {
	st.mu.Lock()
	defer st.mu.Unlock()
	sb, ok := st.streams[fd]
	if !ok {
		return nil
	}
	if w != nil {
		sb.mirror = w
	}
	return sb.mirror
}

// Contents returns everything buffered for fd so far, for tests and for a
// log-view style front-end to read back.
func (st *StreamTable) Contents(fd FID) string {
	st.mu.Lock()
	defer st.mu.Unlock()
	sb, ok := st.streams[fd]
	if !ok {
		return ""
	}
	return sb.buf.String()
}

// Close marks fd as no longer accepting writes (`$fclose`).
func (st *StreamTable) Close(fd FID) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if sb, ok := st.streams[fd]; ok {
		sb.closed = true
	}
}
