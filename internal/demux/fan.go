package demux

import (
	"context"
	"fmt"
	"io"

	"github.com/slok/mobydemux/internal/model"
)

// FanOut exposes the channels of a multiplexed socket as independent streams.
//
// Stdout and Stderr must be consumed, a channel that is not read blocks the session.
// Closing one of them before its end makes the session fail with a sink error.
type FanOut struct {
	// Stdin is written into the socket, closing it ends the input.
	Stdin io.WriteCloser
	// Stdout are the demuxed stdout (and daemon stdin) frames.
	Stdout io.ReadCloser
	// Stderr are the demuxed stderr frames.
	Stderr io.ReadCloser

	done chan struct{}
	res  *Result
	err  error
}

// Wait waits until the session ends and returns its result.
func (f *FanOut) Wait() (*Result, error) {
	<-f.done
	return f.res, f.err
}

// Fan starts a background session over a multiplexed socket and returns its channels
// as pipes. The session ends with the socket or when the context is cancelled.
func (e *Engine) Fan(ctx context.Context, sock *Socket) (*FanOut, error) {
	if sock == nil {
		return nil, fmt.Errorf("socket is required: %w", model.ErrNotValid)
	}
	if sock.Kind() != KindMultiplexed {
		_ = sock.Close()
		return nil, fmt.Errorf("only multiplexed sockets can be fanned out, got %s: %w", sock.Kind(), model.ErrNotValid)
	}

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	errR, errW := io.Pipe()

	s, err := e.NewSession(SessionConfig{
		Target: Single(sock),
		Source: inR,
		Stdout: outW,
		Stderr: errW,
	})
	if err != nil {
		_ = sock.Close()
		return nil, err
	}

	f := &FanOut{
		Stdin:  inW,
		Stdout: outR,
		Stderr: errR,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(f.done)

		f.res, f.err = s.Run(ctx)

		// Nil errors end the readers with io.EOF.
		_ = outW.CloseWithError(f.err)
		_ = errW.CloseWithError(f.err)
		if f.err != nil {
			_ = inR.CloseWithError(f.err)
		} else {
			_ = inR.Close()
		}
	}()

	return f, nil
}
