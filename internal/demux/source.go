package demux

import (
	"context"
	"io"
)

// ChanSource is a source that reads chunks from a channel, the source ends when
// the channel is closed.
type ChanSource struct {
	ch      <-chan []byte
	pending []byte
}

// NewChanSource returns a new ChanSource.
func NewChanSource(ch <-chan []byte) *ChanSource {
	return &ChanSource{ch: ch}
}

func (c *ChanSource) Read(p []byte) (int, error) {
	for len(c.pending) == 0 {
		chunk, ok := <-c.ch
		if !ok {
			return 0, io.EOF
		}
		c.pending = chunk
	}

	n := copy(p, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

type readResult struct {
	data []byte
	err  error
}

// ContextSource wraps a reader so reads can be abandoned when the context ends.
// Blocking readers (e.g a terminal) can't be interrupted, the read in flight is
// left in the background and its data is dropped.
type ContextSource struct {
	ctx     context.Context
	r       io.Reader
	results chan readResult
	pending []byte
	started bool
	err     error
}

// NewContextSource returns a new ContextSource.
func NewContextSource(ctx context.Context, r io.Reader) *ContextSource {
	return &ContextSource{
		ctx:     ctx,
		r:       r,
		results: make(chan readResult),
	}
}

func (c *ContextSource) Read(p []byte) (int, error) {
	if len(c.pending) > 0 {
		n := copy(p, c.pending)
		c.pending = c.pending[n:]
		return n, nil
	}
	if c.err != nil {
		return 0, c.err
	}

	if !c.started {
		c.started = true
		go c.readLoop()
	}

	select {
	case <-c.ctx.Done():
		c.err = c.ctx.Err()
		return 0, c.err
	case res := <-c.results:
		// The error is returned once all the data of the result has been consumed.
		c.err = res.err
		n := copy(p, res.data)
		c.pending = res.data[n:]
		if n == 0 {
			return 0, c.err
		}
		return n, nil
	}
}

func (c *ContextSource) readLoop() {
	buf := make([]byte, 32*1024)
	for {
		n, err := c.r.Read(buf)
		data := make([]byte, n)
		copy(data, buf[:n])

		select {
		case <-c.ctx.Done():
			return
		case c.results <- readResult{data: data, err: err}:
		}

		if err != nil {
			return
		}
	}
}
