package record_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/mobydemux/internal/app/record"
	"github.com/slok/mobydemux/internal/demux"
	"github.com/slok/mobydemux/internal/model"
	"github.com/slok/mobydemux/internal/storage"
	"github.com/slok/mobydemux/internal/storage/memory"
)

type nopConn struct{}

func (nopConn) Read(p []byte) (int, error)  { return 0, errors.New("unexpected read") }
func (nopConn) Write(p []byte) (int, error) { return len(p), nil }
func (nopConn) Close() error                { return nil }

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) { return 0, errors.New("disk full") }

func newSession(t *testing.T, stdout *bytes.Buffer, failSink bool) *demux.Session {
	t.Helper()

	var data bytes.Buffer
	require.NoError(t, demux.WriteFrame(&data, demux.Frame{Channel: model.ChannelStdout, Payload: []byte("hello")}))
	require.NoError(t, demux.WriteFrame(&data, demux.Frame{Channel: model.ChannelStderr, Payload: []byte("oops")}))

	sock, err := demux.ClassifyDirected(demux.ContentTypeMultiplexed, demux.NewBufferedConn(&data, nopConn{}), demux.Unidirectional)
	require.NoError(t, err)

	engine, err := demux.NewEngine(demux.EngineConfig{})
	require.NoError(t, err)

	cfg := demux.SessionConfig{Target: demux.Single(sock), Stdout: stdout}
	if failSink {
		cfg.Stdout = failingWriter{}
	}
	s, err := engine.NewSession(cfg)
	require.NoError(t, err)

	return s
}

func TestRecorderRun(t *testing.T) {
	tests := map[string]struct {
		noRepo    bool
		failSink  bool
		exitCode  *int
		expStdout string
		expState  model.SessionState
		expErr    error
	}{
		"A successful session should be stored as completed with its byte counts.": {
			expStdout: "hellooops",
			expState:  model.SessionStateCompleted,
		},

		"The finish hook should be able to set the exit code.": {
			exitCode:  ptr(3),
			expStdout: "hellooops",
			expState:  model.SessionStateCompleted,
		},

		"A failing sink should store the session as failed.": {
			failSink: true,
			expState: model.SessionStateFailed,
			expErr:   model.ErrSink,
		},

		"Without repository the session should run without history.": {
			noRepo:    true,
			expStdout: "hellooops",
			expState:  model.SessionStateCompleted,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			repo, err := memory.NewRepository(memory.RepositoryConfig{})
			require.NoError(err)

			var r record.Recorder
			if test.noRepo {
				r = record.NewRecorder(nil, nil)
			} else {
				r = record.NewRecorder(repo, nil)
			}

			var stdout bytes.Buffer
			s := newSession(t, &stdout, test.failSink)

			var hookCalled bool
			_, rec, err := r.Run(context.TODO(), "decode", "capture.bin", s, func(rec *model.SessionRecord, sessionErr error) {
				hookCalled = true
				rec.ExitCode = test.exitCode
			})

			if test.expErr != nil {
				assert.ErrorIs(err, test.expErr)
			} else {
				assert.NoError(err)
			}
			assert.True(hookCalled)
			assert.Equal(test.expStdout, stdout.String())
			assert.Equal(test.expState, rec.State)
			assert.Equal("decode", rec.Operation)
			assert.Equal("capture.bin", rec.Target)
			assert.Equal(model.StreamKindMultiplexed, rec.Kind)
			assert.NotNil(rec.EndedAt)

			stored, err := repo.ListSessions(context.TODO(), storage.ListSessionsOpts{})
			require.NoError(err)
			if test.noRepo {
				assert.Empty(stored)
				return
			}

			require.Len(stored, 1)
			assert.Equal(rec.ID, stored[0].ID)
			assert.Equal(test.expState, stored[0].State)
			assert.Equal(test.exitCode, stored[0].ExitCode)
			if test.expErr == nil {
				assert.Equal(int64(5), stored[0].StdoutBytes)
				assert.Equal(int64(4), stored[0].StderrBytes)
				assert.Empty(stored[0].Error)
			} else {
				assert.NotEmpty(stored[0].Error)
			}
		})
	}
}

func TestIsCancelled(t *testing.T) {
	assert.True(t, record.IsCancelled(model.ErrCancelled))
	assert.False(t, record.IsCancelled(model.ErrSink))
}

func ptr(i int) *int { return &i }
