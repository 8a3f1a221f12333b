package demux

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/run"
	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/slok/mobydemux/internal/log"
	"github.com/slok/mobydemux/internal/model"
)

// SplitSockets are independent raw sockets, one per standard stream. Any of them can be missing.
type SplitSockets struct {
	Stdin  *Socket
	Stdout *Socket
	Stderr *Socket
}

func (s SplitSockets) sockets() []*Socket {
	socks := []*Socket{}
	for _, sock := range []*Socket{s.Stdin, s.Stdout, s.Stderr} {
		if sock != nil {
			socks = append(socks, sock)
		}
	}
	return socks
}

// Target is what a session demuxes, create it with Single or Split.
type Target struct {
	single *Socket
	split  *SplitSockets
}

// Single targets one classified socket.
func Single(sock *Socket) Target { return Target{single: sock} }

// Split targets independent raw sockets.
func Split(socks SplitSockets) Target { return Target{split: &socks} }

func (t Target) sockets() []*Socket {
	switch {
	case t.single != nil:
		return []*Socket{t.single}
	case t.split != nil:
		return t.split.sockets()
	default:
		return nil
	}
}

// Close closes all the target sockets.
func (t Target) Close() {
	for _, sock := range t.sockets() {
		_ = sock.Close()
	}
}

func (t Target) streamKind() model.StreamKind {
	if t.single != nil {
		return t.single.Kind().StreamKind()
	}
	return model.StreamKindSplit
}

// SessionConfig is the configuration of a demux session.
type SessionConfig struct {
	// Target are the sockets the session owns. Required.
	Target Target
	// Source is the local input, nil means no input.
	Source io.Reader
	// Stdout is the first sink. Required.
	// When Stderr is missing all the output goes to this sink.
	Stdout io.Writer
	// Stderr is the second sink, optional.
	Stderr io.Writer
}

func (c SessionConfig) validate() error {
	socks := c.Target.sockets()
	if len(socks) == 0 {
		return fmt.Errorf("at least one socket is required: %w", model.ErrNotValid)
	}
	if c.Stdout == nil {
		return fmt.Errorf("stdout sink is required: %w", model.ErrNotValid)
	}

	if c.Target.single != nil && c.Target.single.Kind() == KindRaw && c.Stderr != nil {
		return fmt.Errorf("raw streams combine stdout and stderr, they can't be demuxed into separate sinks: %w", model.ErrNotValid)
	}

	if c.Target.split != nil {
		for _, sock := range socks {
			if sock.Kind() != KindRaw {
				return fmt.Errorf("split sockets must be raw, got %s: %w", sock.Kind(), model.ErrNotValid)
			}
		}
	}

	return nil
}

// ChannelStats are the counters of a wired channel.
type ChannelStats struct {
	Bytes int64
}

// Result is the outcome of a session, channels that were not wired are nil.
type Result struct {
	SessionID string
	Kind      model.StreamKind
	Mode      model.SessionMode
	// Stdin are the bytes written from the source into the socket.
	Stdin *ChannelStats
	// Stdout are the stdout bytes delivered. Raw sockets can't separate stdout from
	// stderr, all their data is accounted here.
	Stdout *ChannelStats
	// Stderr are the stderr bytes delivered.
	Stderr *ChannelStats
	// DroppedFrames are the frames with unknown channel ids that were discarded.
	DroppedFrames int64
}

// Session is a single demux execution over one target. A session can only run once
// and always closes its sockets when it ends.
type Session struct {
	id         string
	cfg        SessionConfig
	mode       model.SessionMode
	bufferSize int
	logger     log.Logger

	mu    sync.Mutex
	state model.SessionState
}

// NewSession creates a new idle session.
func (e *Engine) NewSession(cfg SessionConfig) (*Session, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid session config: %w", err)
	}

	mode := model.SessionModeSingleSink
	if cfg.Stderr != nil {
		mode = model.SessionModeSeparateSinks
	}

	id := ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()

	return &Session{
		id:         id,
		cfg:        cfg,
		mode:       mode,
		bufferSize: e.bufferSize,
		logger: e.logger.WithValues(log.Kv{
			"session-id": id,
			"kind":       cfg.Target.streamKind(),
			"mode":       mode,
		}),
		state: model.SessionStateIdle,
	}, nil
}

// ID returns the session ID.
func (s *Session) ID() string { return s.id }

// Kind returns the stream kind of the session target.
func (s *Session) Kind() model.StreamKind { return s.cfg.Target.streamKind() }

// Mode returns how the session delivers the output.
func (s *Session) Mode() model.SessionMode { return s.mode }

// State returns the current session state.
func (s *Session) State() model.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st model.SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
}

// Run runs the session until all the channels finish, an error aborts the session or
// the context is cancelled. The result is returned also on errors with the data moved
// until that moment.
func (s *Session) Run(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	if s.state != model.SessionStateIdle {
		s.mu.Unlock()
		return nil, fmt.Errorf("session %s already %s: %w", s.id, s.state, model.ErrNotValid)
	}
	s.state = model.SessionStateRunning
	s.mu.Unlock()

	defer s.cfg.Target.Close()

	s.logger.Debugf("Session running")
	start := time.Now()

	res := &Result{
		SessionID: s.id,
		Kind:      s.cfg.Target.streamKind(),
		Mode:      s.mode,
	}

	err := s.run(ctx, res)

	switch {
	case err == nil:
		s.setState(model.SessionStateCompleted)
	case errors.Is(err, model.ErrCancelled):
		s.setState(model.SessionStateCancelled)
	default:
		s.setState(model.SessionStateFailed)
	}

	s.logger.Debugf("Session %s after %s", s.State(), time.Since(start))

	return res, err
}

func (s *Session) run(ctx context.Context, res *Result) error {
	outputs := s.outputLoops(res)
	inputSock := s.inputSocket()

	var (
		g         run.Group
		sourceErr error
	)

	// Output.
	if len(outputs) > 0 {
		outCtx, outCancel := context.WithCancel(ctx)
		defer outCancel()

		g.Add(
			func() error {
				eg, egCtx := errgroup.WithContext(outCtx)

				// Closing the sockets is the only way of unblocking pending reads, the
				// first failing loop or an interruption stops all of them.
				stop := context.AfterFunc(egCtx, s.cfg.Target.Close)
				defer stop()

				for _, loop := range outputs {
					eg.Go(func() error { return loop(egCtx) })
				}
				return eg.Wait()
			},
			func(_ error) {
				outCancel()
			},
		)
	}

	// Input.
	if inputSock != nil {
		res.Stdin = &ChannelStats{}
		inCtx, inCancel := context.WithCancel(ctx)
		defer inCancel()

		inputOnly := len(outputs) == 0
		g.Add(
			func() error {
				err := s.pumpInput(inCtx, inputSock, res.Stdin)
				if err != nil {
					if !errors.Is(err, model.ErrSource) {
						// Transport errors abort the whole session.
						return err
					}
					// Source errors only stop the input, the output continues.
					sourceErr = err
				}

				if inputOnly {
					return err
				}

				// Input finished, wait until the output ends.
				<-inCtx.Done()
				return nil
			},
			func(_ error) {
				inCancel()
			},
		)
	}

	// Cancellation.
	{
		done := make(chan struct{})
		g.Add(
			func() error {
				select {
				case <-ctx.Done():
					return cancelledError(ctx)
				case <-done:
					return nil
				}
			},
			func(_ error) {
				close(done)
			},
		)
	}

	err := g.Run()
	if err == nil && ctx.Err() != nil {
		err = cancelledError(ctx)
	}
	if err == nil {
		err = sourceErr
	}

	return err
}

func cancelledError(ctx context.Context) error {
	return fmt.Errorf("session %w: %w", model.ErrCancelled, ctx.Err())
}

// inputSocket returns the socket that receives the source data, if any.
func (s *Session) inputSocket() *Socket {
	if s.cfg.Source == nil {
		return nil
	}

	var sock *Socket
	switch {
	case s.cfg.Target.single != nil:
		sock = s.cfg.Target.single
	case s.cfg.Target.split != nil:
		sock = s.cfg.Target.split.Stdin
	}
	if sock == nil {
		s.logger.Debugf("No stdin socket, source not wired")
		return nil
	}

	if sock.Direction() == Unidirectional {
		s.logger.Warningf("Stdin socket is unidirectional, source not wired")
		return nil
	}

	return sock
}

// pumpInput writes the source into the socket until the source ends, the context
// is cancelled or an error happens.
func (s *Session) pumpInput(ctx context.Context, sock *Socket, stats *ChannelStats) error {
	src := NewContextSource(ctx, s.cfg.Source)
	buf := make([]byte, 32*1024)
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := sock.Write(buf[:n]); werr != nil {
				return &ChannelError{Channel: channelNameStdin, Err: writeError(werr)}
			}
			stats.Bytes += int64(n)
		}

		if rerr != nil {
			switch {
			case errors.Is(rerr, io.EOF):
				s.logger.Debugf("Source ended, closing socket write side")
				if err := sock.CloseWrite(); err != nil && !sock.Closed() {
					return &ChannelError{Channel: channelNameStdin, Err: writeError(err)}
				}
				return nil
			case ctx.Err() != nil:
				return nil
			default:
				_ = sock.CloseWrite()
				return &ChannelError{Channel: channelNameStdin, Err: fmt.Errorf("%w: %w", model.ErrSource, rerr)}
			}
		}
	}
}

func writeError(err error) error {
	if errors.Is(err, model.ErrCancelled) || errors.Is(err, model.ErrNotValid) {
		return err
	}
	return fmt.Errorf("%w: %w", model.ErrTransport, err)
}

type outputLoop func(ctx context.Context) error

// outputLoops returns the concurrent loops that consume the session sockets.
func (s *Session) outputLoops(res *Result) []outputLoop {
	t := s.cfg.Target

	switch {
	case t.single != nil && t.single.Kind() == KindRaw:
		res.Stdout = &ChannelStats{}
		return []outputLoop{func(ctx context.Context) error {
			return copyChannel(s.cfg.Stdout, t.single, channelNameStdout, res.Stdout)
		}}

	case t.single != nil && s.cfg.Stderr == nil:
		res.Stdout, res.Stderr = &ChannelStats{}, &ChannelStats{}
		return []outputLoop{func(ctx context.Context) error {
			return s.demuxToSingleSink(t.single, res)
		}}

	case t.single != nil:
		res.Stdout, res.Stderr = &ChannelStats{}, &ChannelStats{}
		return s.demuxToSeparateSinks(t.single, res)

	default:
		return s.splitLoops(*t.split, res)
	}
}

// copyChannel copies a raw socket into a sink.
func copyChannel(dst io.Writer, src io.Reader, name string, stats *ChannelStats) error {
	buf := make([]byte, 32*1024)
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return &ChannelError{Channel: name, Err: fmt.Errorf("%w: %w", model.ErrSink, werr)}
			}
			stats.Bytes += int64(n)
		}

		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				return flushChannel(dst, name)
			}
			return &ChannelError{Channel: name, Err: readError(rerr)}
		}
	}
}

func flushChannel(w io.Writer, name string) error {
	if err := flushSink(w); err != nil {
		return &ChannelError{Channel: name, Err: fmt.Errorf("%w: could not flush: %w", model.ErrSink, err)}
	}
	return nil
}
