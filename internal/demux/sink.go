package demux

import (
	"bytes"
	"io"
	"sync"
	"sync/atomic"

	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

// Flusher is implemented by sinks that buffer data, they will be flushed once
// their channel completes.
type Flusher interface {
	Flush() error
}

// Discard is a sink that drops everything.
var Discard io.Writer = io.Discard

// SinkFunc is a helper to create sinks from functions.
type SinkFunc func(p []byte) error

func (s SinkFunc) Write(p []byte) (int, error) {
	if err := s(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// LineSink calls a function for every complete line it receives, the line is passed
// without the line break.
type LineSink struct {
	fn  func(line string) error
	buf bytes.Buffer
}

// NewLineSink returns a new LineSink.
func NewLineSink(fn func(line string) error) *LineSink {
	return &LineSink{fn: fn}
}

func (l *LineSink) Write(p []byte) (int, error) {
	l.buf.Write(p)
	for {
		i := bytes.IndexByte(l.buf.Bytes(), '\n')
		if i < 0 {
			return len(p), nil
		}

		line := string(l.buf.Next(i + 1))
		if err := l.fn(line[:len(line)-1]); err != nil {
			return 0, err
		}
	}
}

// Flush sends the pending data that doesn't end with a line break, if any.
func (l *LineSink) Flush() error {
	if l.buf.Len() == 0 {
		return nil
	}
	line := l.buf.String()
	l.buf.Reset()
	return l.fn(line)
}

// TextSink decodes the received bytes from a charset into UTF-8 before writing them.
type TextSink struct {
	w *transform.Writer
}

// NewTextSink returns a TextSink that decodes data encoded with enc.
func NewTextSink(w io.Writer, enc encoding.Encoding) *TextSink {
	return &TextSink{w: transform.NewWriter(w, enc.NewDecoder())}
}

func (t *TextSink) Write(p []byte) (int, error) { return t.w.Write(p) }

// Flush writes any partially decoded data.
func (t *TextSink) Flush() error { return t.w.Close() }

// syncSink serializes writes from multiple loops into a single sink, every write is
// delivered whole. The wrapped sink is flushed once, when the last of its writers flushes.
type syncSink struct {
	mu      sync.Mutex
	w       io.Writer
	writers atomic.Int32
}

func newSyncSink(w io.Writer, writers int) *syncSink {
	s := &syncSink{w: w}
	s.writers.Store(int32(writers))
	return s
}

func (s *syncSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func (s *syncSink) Flush() error {
	if s.writers.Add(-1) > 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return flushSink(s.w)
}

func flushSink(w io.Writer) error {
	if f, ok := w.(Flusher); ok {
		return f.Flush()
	}
	return nil
}
