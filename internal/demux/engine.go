package demux

import (
	"context"
	"fmt"
	"io"

	"github.com/slok/mobydemux/internal/log"
	"github.com/slok/mobydemux/internal/model"
)

const defaultBufferSize = 16

// EngineConfig is the configuration for the demux engine.
type EngineConfig struct {
	// Logger is optional, defaults to log.Noop.
	Logger log.Logger
	// BufferSize is the number of frames buffered per channel when the output is
	// delivered to separate sinks. Defaults to 16.
	BufferSize int
}

func (c *EngineConfig) defaults() error {
	if c.BufferSize < 0 {
		return fmt.Errorf("buffer size can't be negative")
	}
	if c.BufferSize == 0 {
		c.BufferSize = defaultBufferSize
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "demux.Engine"})
	return nil
}

// Engine wires classified sockets, a local input source and output sinks together.
// An Engine is safe for concurrent use, every demux call creates its own session.
type Engine struct {
	logger     log.Logger
	bufferSize int
}

// NewEngine returns a new demux engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Engine{
		logger:     cfg.Logger,
		bufferSize: cfg.BufferSize,
	}, nil
}

// DemuxToSingleSink demuxes a raw or multiplexed socket into a single sink, stdout and
// stderr combined. The source (optional) is written unframed into the socket.
func (e *Engine) DemuxToSingleSink(ctx context.Context, sock *Socket, source io.Reader, sink io.Writer) (*Result, error) {
	return e.run(ctx, SessionConfig{
		Target: Single(sock),
		Source: source,
		Stdout: sink,
	})
}

// DemuxToSeparateSinks demuxes a multiplexed socket sending stdout to one sink and stderr
// to the other. Raw sockets can't be separated.
func (e *Engine) DemuxToSeparateSinks(ctx context.Context, sock *Socket, source io.Reader, stdout, stderr io.Writer) (*Result, error) {
	if stderr == nil {
		return nil, fmt.Errorf("stderr sink is required: %w", model.ErrNotValid)
	}

	return e.run(ctx, SessionConfig{
		Target: Single(sock),
		Source: source,
		Stdout: stdout,
		Stderr: stderr,
	})
}

// DemuxSplitToSingleSink demuxes independent raw sockets, stdout and stderr sockets are
// interleaved into the same sink.
func (e *Engine) DemuxSplitToSingleSink(ctx context.Context, socks SplitSockets, source io.Reader, sink io.Writer) (*Result, error) {
	return e.run(ctx, SessionConfig{
		Target: Split(socks),
		Source: source,
		Stdout: sink,
	})
}

// DemuxSplitToSeparateSinks demuxes independent raw sockets, each output socket into its own sink.
func (e *Engine) DemuxSplitToSeparateSinks(ctx context.Context, socks SplitSockets, source io.Reader, stdout, stderr io.Writer) (*Result, error) {
	if stderr == nil {
		return nil, fmt.Errorf("stderr sink is required: %w", model.ErrNotValid)
	}

	return e.run(ctx, SessionConfig{
		Target: Split(socks),
		Source: source,
		Stdout: stdout,
		Stderr: stderr,
	})
}

func (e *Engine) run(ctx context.Context, cfg SessionConfig) (*Result, error) {
	s, err := e.NewSession(cfg)
	if err != nil {
		// The session owns the sockets even if it could not be created.
		cfg.Target.Close()
		return nil, err
	}

	return s.Run(ctx)
}
