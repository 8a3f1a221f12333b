package demux

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/slok/mobydemux/internal/model"
)

// StdioConfig are the process standard streams used by the stdio demux.
type StdioConfig struct {
	// Stdin defaults to os.Stdin.
	Stdin *os.File
	// Stdout defaults to os.Stdout.
	Stdout *os.File
	// Stderr defaults to os.Stderr.
	Stderr *os.File
	// NoStdin disables the input.
	NoStdin bool
}

func (c *StdioConfig) defaults() error {
	if c.Stdin == nil {
		c.Stdin = os.Stdin
	}
	if c.Stdout == nil {
		c.Stdout = os.Stdout
	}
	if c.Stderr == nil {
		c.Stderr = os.Stderr
	}

	if !c.NoStdin {
		if _, err := c.Stdin.Stat(); err != nil {
			return fmt.Errorf("%w: %w", model.ErrStdinUnavailable, err)
		}
	}
	if _, err := c.Stdout.Stat(); err != nil {
		return fmt.Errorf("%w: %w", model.ErrStdoutUnavailable, err)
	}
	if _, err := c.Stderr.Stat(); err != nil {
		return fmt.Errorf("%w: %w", model.ErrStderrUnavailable, err)
	}

	return nil
}

func (c StdioConfig) source() io.Reader {
	if c.NoStdin {
		return nil
	}
	return c.Stdin
}

// DemuxStdio demuxes a socket into the process standard streams. Raw sockets go to
// stdout, multiplexed sockets are separated into stdout and stderr.
func (e *Engine) DemuxStdio(ctx context.Context, sock *Socket, cfg StdioConfig) (*Result, error) {
	if sock == nil {
		return nil, fmt.Errorf("socket is required: %w", model.ErrNotValid)
	}
	if err := cfg.defaults(); err != nil {
		_ = sock.Close()
		return nil, err
	}

	if sock.Kind() == KindRaw {
		return e.DemuxToSingleSink(ctx, sock, cfg.source(), cfg.Stdout)
	}
	return e.DemuxToSeparateSinks(ctx, sock, cfg.source(), cfg.Stdout, cfg.Stderr)
}

// DemuxStdioSplit demuxes independent raw sockets into the process standard streams.
func (e *Engine) DemuxStdioSplit(ctx context.Context, socks SplitSockets, cfg StdioConfig) (*Result, error) {
	if err := cfg.defaults(); err != nil {
		Split(socks).Close()
		return nil, err
	}

	return e.DemuxSplitToSeparateSinks(ctx, socks, cfg.source(), cfg.Stdout, cfg.Stderr)
}
