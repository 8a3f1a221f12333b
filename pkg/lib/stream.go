package lib

import (
	"context"
	"io"
	"net/http"
	"os"

	"golang.org/x/text/encoding"

	"github.com/slok/mobydemux/internal/demux"
)

// Classify tags a hijacked connection by its response content type.
//
// Returns [ErrClassification] if the content type is not a raw or multiplexed stream.
func Classify(contentType string, conn Conn) (*Socket, error) {
	s, err := demux.Classify(contentType, conn)
	return s, mapError(err)
}

// ClassifyHeader tags a hijacked connection by its response headers.
func ClassifyHeader(h http.Header, conn Conn) (*Socket, error) {
	s, err := demux.ClassifyHeader(h, conn)
	return s, mapError(err)
}

// ClassifyDirected tags a hijacked connection that may be read only ([Unidirectional]).
func ClassifyDirected(contentType string, conn Conn, dir Direction) (*Socket, error) {
	s, err := demux.ClassifyDirected(contentType, conn, dir)
	return s, mapError(err)
}

// NewBufferedConn returns a connection that reads from r (a reader that may already
// hold buffered bytes of the connection) and writes and closes through c.
func NewBufferedConn(r io.Reader, c io.ReadWriteCloser) Conn {
	return demux.NewBufferedConn(r, c)
}

// WriteFrame encodes a multiplexed frame into w.
func WriteFrame(w io.Writer, f Frame) error {
	return mapError(demux.WriteFrame(w, f))
}

// DecodeFrames decodes all the frames of a multiplexed stream.
func DecodeFrames(r io.Reader) ([]Frame, error) {
	frames, err := demux.DecodeAll(r)
	return frames, mapError(err)
}

// NewLineSink returns a sink that calls fn once per output line.
func NewLineSink(fn func(line string) error) io.Writer { return demux.NewLineSink(fn) }

// NewTextSink returns a sink that decodes the output from enc into UTF-8 before writing it to w.
func NewTextSink(w io.Writer, enc encoding.Encoding) io.Writer { return demux.NewTextSink(w, enc) }

// NewChanSource returns a source that reads the chunks sent on ch until it's closed.
func NewChanSource(ch <-chan []byte) io.Reader { return demux.NewChanSource(ch) }

// NewContextSource returns a source that stops reading r when ctx is done.
func NewContextSource(ctx context.Context, r io.Reader) io.Reader {
	return demux.NewContextSource(ctx, r)
}

// DemuxToSingleSink demuxes a raw or multiplexed socket into a single sink. The source
// (optional) is written into the socket. The socket is closed when the call returns.
func (c *Client) DemuxToSingleSink(ctx context.Context, sock *Socket, source io.Reader, sink io.Writer) (*Result, error) {
	res, err := c.engine.DemuxToSingleSink(ctx, sock, source, sink)
	return fromInternalResult(res), mapError(err)
}

// DemuxToSeparateSinks demuxes a multiplexed socket into stdout and stderr sinks.
//
// Returns [ErrNotValid] for raw sockets, they can't be separated.
func (c *Client) DemuxToSeparateSinks(ctx context.Context, sock *Socket, source io.Reader, stdout, stderr io.Writer) (*Result, error) {
	res, err := c.engine.DemuxToSeparateSinks(ctx, sock, source, stdout, stderr)
	return fromInternalResult(res), mapError(err)
}

// DemuxSplitToSingleSink demuxes independent sockets, interleaving stdout and stderr
// into the same sink.
func (c *Client) DemuxSplitToSingleSink(ctx context.Context, socks SplitSockets, source io.Reader, sink io.Writer) (*Result, error) {
	res, err := c.engine.DemuxSplitToSingleSink(ctx, socks, source, sink)
	return fromInternalResult(res), mapError(err)
}

// DemuxSplitToSeparateSinks demuxes independent sockets, each output socket into its own sink.
func (c *Client) DemuxSplitToSeparateSinks(ctx context.Context, socks SplitSockets, source io.Reader, stdout, stderr io.Writer) (*Result, error) {
	res, err := c.engine.DemuxSplitToSeparateSinks(ctx, socks, source, stdout, stderr)
	return fromInternalResult(res), mapError(err)
}

// Fan exposes the channels of a multiplexed socket as independent pipes.
// Use [FanOut.Wait] to get the session outcome.
func (c *Client) Fan(ctx context.Context, sock *Socket) (*FanOut, error) {
	f, err := c.engine.Fan(ctx, sock)
	return f, mapError(err)
}

// StdioOpts are the process standard streams used by [Client.DemuxStdio].
// Nil files default to the process ones.
type StdioOpts struct {
	Stdin   *os.File
	Stdout  *os.File
	Stderr  *os.File
	NoStdin bool
}

func (o *StdioOpts) toInternal() demux.StdioConfig {
	if o == nil {
		return demux.StdioConfig{}
	}
	return demux.StdioConfig{Stdin: o.Stdin, Stdout: o.Stdout, Stderr: o.Stderr, NoStdin: o.NoStdin}
}

// DemuxStdio wires a socket to the process standard streams, raw sockets are written
// to stdout and multiplexed ones separated into stdout and stderr.
func (c *Client) DemuxStdio(ctx context.Context, sock *Socket, opts *StdioOpts) (*Result, error) {
	res, err := c.engine.DemuxStdio(ctx, sock, opts.toInternal())
	return fromInternalResult(res), mapError(err)
}

// DemuxStdioSplit wires independent sockets to the process standard streams.
func (c *Client) DemuxStdioSplit(ctx context.Context, socks SplitSockets, opts *StdioOpts) (*Result, error) {
	res, err := c.engine.DemuxStdioSplit(ctx, socks, opts.toInternal())
	return fromInternalResult(res), mapError(err)
}
