package demux_test

import (
	"bytes"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/slok/mobydemux/internal/demux"
)

// testConn is a connection that reads a fixed stream and records what is written.
type testConn struct {
	r        io.Reader
	writeErr error

	mu          sync.Mutex
	written     bytes.Buffer
	closes      int
	closeWrites int
}

func newTestConn(data []byte) *testConn {
	return &testConn{r: bytes.NewReader(data)}
}

func (c *testConn) Read(p []byte) (int, error) { return c.r.Read(p) }

func (c *testConn) Write(p []byte) (int, error) {
	if c.writeErr != nil {
		return 0, c.writeErr
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.written.Write(p)
}

func (c *testConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	if rc, ok := c.r.(io.Closer); ok {
		return rc.Close()
	}
	return nil
}

func (c *testConn) CloseWrite() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeWrites++
	return nil
}

func (c *testConn) Written() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.written.String()
}

func (c *testConn) Closes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

func (c *testConn) CloseWrites() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeWrites
}

// countingConn counts the closes of a real connection and signals its write side close.
type countingConn struct {
	net.Conn
	closes      atomic.Int32
	writeOnce   sync.Once
	writeClosed chan struct{}
}

func (c *countingConn) Close() error {
	c.closes.Add(1)
	return c.Conn.Close()
}

func (c *countingConn) CloseWrite() error {
	c.writeOnce.Do(func() { close(c.writeClosed) })
	return nil
}

// newPipeSocket returns a socket of the kind and the remote end of the connection.
func newPipeSocket(t *testing.T, contentType string) (*demux.Socket, *countingConn, net.Conn) {
	t.Helper()

	local, remote := net.Pipe()
	conn := &countingConn{Conn: local, writeClosed: make(chan struct{})}
	sock, err := demux.Classify(contentType, conn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = remote.Close() })

	return sock, conn, remote
}

func newSocket(t *testing.T, contentType string, conn demux.Conn) *demux.Socket {
	t.Helper()

	sock, err := demux.Classify(contentType, conn)
	require.NoError(t, err)
	return sock
}

// syncBuffer is a bytes.Buffer safe for concurrent use.
type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func stringsReader(s string) io.Reader { return bytes.NewReader([]byte(s)) }
