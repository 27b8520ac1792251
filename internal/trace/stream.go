package trace

import (
	"bufio"
	"io"
	"sync"
)

// StreamTracer formats each event as it arrives. Writes go through a
// buffer that Flush and Close drain.
type StreamTracer struct {
	level  Level
	format Format

	mu     sync.Mutex
	buf    *bufio.Writer
	closer io.Closer // nil for writers the tracer does not own
}

// NewStreamTracer writes to w, which the tracer does not close.
func NewStreamTracer(w io.Writer, level Level, format Format) *StreamTracer {
	return &StreamTracer{level: level, format: format, buf: bufio.NewWriter(w)}
}

// newOwnedStreamTracer also closes wc on Close.
func newOwnedStreamTracer(wc io.WriteCloser, level Level, format Format) *StreamTracer {
	t := NewStreamTracer(wc, level, format)
	t.closer = wc
	return t
}

// Emit writes ev. Trace write errors never fail a build; they surface on
// Flush.
func (t *StreamTracer) Emit(ev *Event) {
	if !ev.passes(t.level) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	ev.Seq = NextSeq()
	_, _ = t.buf.Write(FormatEvent(ev, t.format))
	// ошибки и heartbeat видны сразу, даже если процесс завис
	if ev.Kind == KindError || ev.Kind == KindHeartbeat {
		_ = t.buf.Flush()
	}
}

func (t *StreamTracer) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf.Flush()
}

// Close flushes and closes an owned output.
func (t *StreamTracer) Close() error {
	if err := t.Flush(); err != nil {
		return err
	}
	if t.closer != nil {
		return t.closer.Close()
	}
	return nil
}

func (t *StreamTracer) Level() Level  { return t.level }
func (t *StreamTracer) Enabled() bool { return t.level > LevelOff }
