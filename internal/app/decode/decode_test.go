package decode_test

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/mobydemux/internal/app/decode"
	"github.com/slok/mobydemux/internal/demux"
	"github.com/slok/mobydemux/internal/model"
	"github.com/slok/mobydemux/internal/storage/memory"
)

func capture(t *testing.T, frames ...demux.Frame) []byte {
	t.Helper()

	var b bytes.Buffer
	for _, f := range frames {
		require.NoError(t, demux.WriteFrame(&b, f))
	}
	return b.Bytes()
}

type closeTracker struct {
	io.Reader
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}

func TestServiceRun(t *testing.T) {
	tests := map[string]struct {
		input      func(t *testing.T) []byte
		raw        bool
		noStderr   bool
		expStdout  string
		expStderr  string
		expDropped int64
		expState   model.SessionState
		expErr     error
	}{
		"A captured multiplexed stream should be decoded into separate sinks.": {
			input: func(t *testing.T) []byte {
				return capture(t,
					demux.Frame{Channel: model.ChannelStdout, Payload: []byte("a")},
					demux.Frame{Channel: model.ChannelStderr, Payload: []byte("b")},
					demux.Frame{Channel: model.ChannelStdin, Payload: []byte("c")},
				)
			},
			expStdout: "ac",
			expStderr: "b",
			expState:  model.SessionStateCompleted,
		},

		"A captured multiplexed stream should be decoded into a single sink in order.": {
			input: func(t *testing.T) []byte {
				return capture(t,
					demux.Frame{Channel: model.ChannelStdout, Payload: []byte("a")},
					demux.Frame{Channel: model.ChannelStderr, Payload: []byte("b")},
					demux.Frame{Channel: model.ChannelStdout, Payload: []byte("c")},
				)
			},
			noStderr:  true,
			expStdout: "abc",
			expState:  model.SessionStateCompleted,
		},

		"Unknown channel frames should be dropped.": {
			input: func(t *testing.T) []byte {
				b := capture(t, demux.Frame{Channel: model.ChannelStdout, Payload: []byte("a")})
				return append(b, 7, 0, 0, 0, 0, 0, 0, 1, 'z')
			},
			expStdout:  "a",
			expDropped: 1,
			expState:   model.SessionStateCompleted,
		},

		"A raw input should be copied to stdout.": {
			input:     func(t *testing.T) []byte { return []byte{1, 2, 3, 'x'} },
			raw:       true,
			expStdout: string([]byte{1, 2, 3, 'x'}),
			expState:  model.SessionStateCompleted,
		},

		"A truncated capture should fail after delivering the complete frames.": {
			input: func(t *testing.T) []byte {
				b := capture(t, demux.Frame{Channel: model.ChannelStdout, Payload: []byte("a")})
				return append(b, 1, 0, 0)
			},
			noStderr:  true,
			expStdout: "a",
			expState:  model.SessionStateFailed,
			expErr:    model.ErrTruncatedFrame,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			repo, err := memory.NewRepository(memory.RepositoryConfig{})
			require.NoError(err)
			svc, err := decode.NewService(decode.ServiceConfig{Repository: repo})
			require.NoError(err)

			input := &closeTracker{Reader: bytes.NewReader(test.input(t))}
			var stdout, stderr bytes.Buffer
			req := decode.Request{Name: "capture.bin", Input: input, Raw: test.raw, Stdout: &stdout}
			if !test.noStderr {
				req.Stderr = &stderr
			}

			resp, err := svc.Run(context.Background(), req)

			if test.expErr != nil {
				assert.ErrorIs(err, test.expErr)
			} else {
				assert.NoError(err)
			}

			require.NotNil(resp)
			assert.True(input.closed)
			assert.Equal(test.expStdout, stdout.String())
			assert.Equal(test.expStderr, stderr.String())
			assert.Equal(test.expDropped, resp.Result.DroppedFrames)

			got, err := repo.GetSession(context.Background(), resp.Session.ID)
			require.NoError(err)
			assert.Equal("decode", got.Operation)
			assert.Equal("capture.bin", got.Target)
			assert.Equal(test.expState, got.State)
			assert.Equal(test.expDropped, got.DroppedFrames)
		})
	}
}

func TestServiceRunInvalid(t *testing.T) {
	assert := assert.New(t)

	svc, err := decode.NewService(decode.ServiceConfig{})
	require.NoError(t, err)

	_, err = svc.Run(context.Background(), decode.Request{Stdout: io.Discard})
	assert.ErrorIs(err, model.ErrNotValid)

	input := &closeTracker{Reader: bytes.NewReader(nil)}
	_, err = svc.Run(context.Background(), decode.Request{Input: input})
	assert.ErrorIs(err, model.ErrNotValid)
	assert.True(input.closed)
}
