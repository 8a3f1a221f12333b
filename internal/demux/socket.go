package demux

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"sync"

	"github.com/slok/mobydemux/internal/model"
)

const (
	// ContentTypeRaw is the content type the daemon sets on hijacked TTY streams.
	ContentTypeRaw = "application/vnd.docker.raw-stream"
	// ContentTypeMultiplexed is the content type the daemon sets on hijacked stdio framed streams.
	ContentTypeMultiplexed = "application/vnd.docker.multiplexed-stream"
)

// Kind is the framing of a socket.
type Kind int

const (
	// KindRaw sockets carry opaque bytes, stdout and stderr combined.
	KindRaw Kind = iota + 1
	// KindMultiplexed sockets carry 8 byte header framed stdio data.
	KindMultiplexed
)

func (k Kind) String() string {
	switch k {
	case KindRaw:
		return "raw"
	case KindMultiplexed:
		return "multiplexed"
	default:
		return "unknown"
	}
}

// StreamKind returns the model representation of the kind.
func (k Kind) StreamKind() model.StreamKind {
	if k == KindMultiplexed {
		return model.StreamKindMultiplexed
	}
	return model.StreamKindRaw
}

// Direction tells if a socket can be written.
type Direction int

const (
	// Bidirectional sockets can be read and written.
	Bidirectional Direction = iota
	// Unidirectional sockets are only read (e.g websocket attached stdout).
	Unidirectional
)

func (d Direction) String() string {
	if d == Unidirectional {
		return "unidirectional"
	}
	return "bidirectional"
}

// Conn is the duplex connection obtained after hijacking an HTTP connection.
// If it implements `CloseWrite() error` it will be used to signal the end of the local input.
type Conn interface {
	io.ReadWriteCloser
}

type writeHalfCloser interface {
	CloseWrite() error
}

type bufferedConn struct {
	io.Reader
	conn io.ReadWriteCloser
}

// NewBufferedConn returns a Conn that reads from r and writes and closes using c.
// Hijacked HTTP clients normally return a buffered reader that may already hold
// bytes of the stream, in that case those reads must not bypass it.
func NewBufferedConn(r io.Reader, c io.ReadWriteCloser) Conn {
	return bufferedConn{Reader: r, conn: c}
}

func (b bufferedConn) Write(p []byte) (int, error) { return b.conn.Write(p) }
func (b bufferedConn) Close() error                { return b.conn.Close() }
func (b bufferedConn) CloseWrite() error {
	if hc, ok := b.conn.(writeHalfCloser); ok {
		return hc.CloseWrite()
	}
	return nil
}

// Socket is a classified hijacked connection. Its kind is set once by the classifier
// and can't change.
type Socket struct {
	kind      Kind
	direction Direction
	conn      Conn

	closeOnce  sync.Once
	closeErr   error
	closed     chan struct{}
	writeOnce  sync.Once
	closeWrErr error
}

// Classify tags a bidirectional connection based on the hijack response content type.
func Classify(contentType string, conn Conn) (*Socket, error) {
	return ClassifyDirected(contentType, conn, Bidirectional)
}

// ClassifyHeader tags a bidirectional connection based on the hijack response headers.
func ClassifyHeader(h http.Header, conn Conn) (*Socket, error) {
	return Classify(h.Get("Content-Type"), conn)
}

// ClassifyDirected tags a connection based on the hijack response content type.
func ClassifyDirected(contentType string, conn Conn, dir Direction) (*Socket, error) {
	if conn == nil {
		return nil, fmt.Errorf("connection is required: %w", model.ErrNotValid)
	}

	kind, err := kindFromContentType(contentType)
	if err != nil {
		return nil, err
	}

	return &Socket{
		kind:      kind,
		direction: dir,
		conn:      conn,
		closed:    make(chan struct{}),
	}, nil
}

func kindFromContentType(contentType string) (Kind, error) {
	if contentType == "" {
		return 0, fmt.Errorf("missing content type: %w", model.ErrClassification)
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return 0, fmt.Errorf("invalid content type %q: %w: %w", contentType, err, model.ErrClassification)
	}

	switch mediaType {
	case ContentTypeRaw:
		return KindRaw, nil
	case ContentTypeMultiplexed:
		return KindMultiplexed, nil
	default:
		return 0, fmt.Errorf("content type %q: %w", contentType, model.ErrClassification)
	}
}

// Kind returns the socket framing.
func (s *Socket) Kind() Kind { return s.kind }

// Direction returns if the socket can be written.
func (s *Socket) Direction() Direction { return s.direction }

func (s *Socket) Read(p []byte) (int, error) {
	n, err := s.conn.Read(p)
	if err != nil && !errors.Is(err, io.EOF) && s.Closed() {
		return n, fmt.Errorf("socket closed: %w: %w", err, model.ErrCancelled)
	}
	return n, err
}

func (s *Socket) Write(p []byte) (int, error) {
	if s.direction == Unidirectional {
		return 0, fmt.Errorf("write on unidirectional socket: %w", model.ErrNotValid)
	}

	n, err := s.conn.Write(p)
	if err != nil && s.Closed() {
		return n, fmt.Errorf("socket closed: %w: %w", err, model.ErrCancelled)
	}
	return n, err
}

// CloseWrite signals the remote that no more input will be sent, reads keep working.
// Connections without half close support are left untouched.
func (s *Socket) CloseWrite() error {
	s.writeOnce.Do(func() {
		if hc, ok := s.conn.(writeHalfCloser); ok {
			s.closeWrErr = hc.CloseWrite()
		}
	})
	return s.closeWrErr
}

// Close closes the underlying connection once, next calls return the same result.
// Pending reads and writes are unblocked.
func (s *Socket) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

// Closed returns true if the socket has been closed.
func (s *Socket) Closed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}
