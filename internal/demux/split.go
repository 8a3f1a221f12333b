package demux

import "context"

// splitLoops returns one copy loop per output socket. When there is a single sink
// both sockets are interleaved on it at write granularity.
func (s *Session) splitLoops(socks SplitSockets, res *Result) []outputLoop {
	stdoutSink, stderrSink := s.cfg.Stdout, s.cfg.Stderr
	if stderrSink == nil {
		stderrSink = stdoutSink
		if socks.Stdout != nil && socks.Stderr != nil {
			shared := newSyncSink(stdoutSink, 2)
			stdoutSink, stderrSink = shared, shared
		}
	}

	loops := []outputLoop{}
	if socks.Stdout != nil {
		res.Stdout = &ChannelStats{}
		loops = append(loops, func(ctx context.Context) error {
			return copyChannel(stdoutSink, socks.Stdout, channelNameStdout, res.Stdout)
		})
	}
	if socks.Stderr != nil {
		res.Stderr = &ChannelStats{}
		loops = append(loops, func(ctx context.Context) error {
			return copyChannel(stderrSink, socks.Stderr, channelNameStderr, res.Stderr)
		})
	}

	if len(loops) == 0 {
		s.logger.Debugf("No output sockets, only input will be handled")
	}

	return loops
}
