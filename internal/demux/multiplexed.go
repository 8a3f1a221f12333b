package demux

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/slok/mobydemux/internal/model"
)

// route returns the channel a frame is delivered to, stdin frames sent by the daemon
// are handled as stdout. Unknown channel frames are not delivered.
func route(f Frame) (model.Channel, bool) {
	switch f.Channel {
	case model.ChannelStdin, model.ChannelStdout:
		return model.ChannelStdout, true
	case model.ChannelStderr:
		return model.ChannelStderr, true
	default:
		return model.ChannelUnknown, false
	}
}

func channelStats(ch model.Channel, res *Result) *ChannelStats {
	if ch == model.ChannelStderr {
		return res.Stderr
	}
	return res.Stdout
}

// demuxToSingleSink decodes a multiplexed socket writing stdout and stderr payloads
// into the same sink in arrival order.
func (s *Session) demuxToSingleSink(sock *Socket, res *Result) error {
	sink := s.cfg.Stdout
	fr := NewFrameReader(sock)
	for {
		f, err := fr.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return flushChannel(sink, channelNameOutput)
			}
			return &ChannelError{Channel: channelNameOutput, Err: err}
		}

		ch, ok := route(f)
		if !ok {
			res.DroppedFrames++
			s.logger.Debugf("Dropped frame of unknown channel (%d bytes)", len(f.Payload))
			continue
		}
		if len(f.Payload) == 0 {
			continue
		}

		if _, err := sink.Write(f.Payload); err != nil {
			return &ChannelError{Channel: ch.String(), Err: fmt.Errorf("%w: %w", model.ErrSink, err)}
		}
		channelStats(ch, res).Bytes += int64(len(f.Payload))
	}
}

// demuxToSeparateSinks returns the loops that decode a multiplexed socket and fan out
// the frames by channel into two independent sink loops.
func (s *Session) demuxToSeparateSinks(sock *Socket, res *Result) []outputLoop {
	stdoutCh := make(chan []byte, s.bufferSize)
	stderrCh := make(chan []byte, s.bufferSize)

	decode := func(ctx context.Context) error {
		defer close(stdoutCh)
		defer close(stderrCh)

		fr := NewFrameReader(sock)
		for {
			f, err := fr.Next()
			if err != nil {
				if errors.Is(err, io.EOF) {
					return nil
				}
				return &ChannelError{Channel: channelNameOutput, Err: err}
			}

			ch, ok := route(f)
			if !ok {
				res.DroppedFrames++
				s.logger.Debugf("Dropped frame of unknown channel (%d bytes)", len(f.Payload))
				continue
			}
			if len(f.Payload) == 0 {
				continue
			}

			out := stdoutCh
			if ch == model.ChannelStderr {
				out = stderrCh
			}

			select {
			case out <- f.Payload:
			case <-ctx.Done():
				// Stopped by a failing sibling.
				return nil
			}
		}
	}

	consume := func(in <-chan []byte, sink io.Writer, name string, stats *ChannelStats) outputLoop {
		return func(ctx context.Context) error {
			for p := range in {
				if _, err := sink.Write(p); err != nil {
					return &ChannelError{Channel: name, Err: fmt.Errorf("%w: %w", model.ErrSink, err)}
				}
				stats.Bytes += int64(len(p))
			}
			return flushChannel(sink, name)
		}
	}

	return []outputLoop{
		decode,
		consume(stdoutCh, s.cfg.Stdout, channelNameStdout, res.Stdout),
		consume(stderrCh, s.cfg.Stderr, channelNameStderr, res.Stderr),
	}
}
