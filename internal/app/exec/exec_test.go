package exec_test

import (
	"bytes"
	"context"
	"errors"
	"net"
	"testing"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/errdefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/slok/mobydemux/internal/app/exec"
	"github.com/slok/mobydemux/internal/demux"
	"github.com/slok/mobydemux/internal/moby"
	"github.com/slok/mobydemux/internal/moby/mobymock"
	"github.com/slok/mobydemux/internal/model"
	"github.com/slok/mobydemux/internal/storage/memory"
)

func hijacked(t *testing.T, mediaType string, frames ...demux.Frame) types.HijackedResponse {
	t.Helper()

	local, remote := net.Pipe()
	t.Cleanup(func() {
		_ = local.Close()
		_ = remote.Close()
	})

	go func() {
		defer remote.Close()
		for _, f := range frames {
			var err error
			if mediaType == demux.ContentTypeRaw {
				_, err = remote.Write(f.Payload)
			} else {
				err = demux.WriteFrame(remote, f)
			}
			if err != nil {
				return
			}
		}
	}()

	return types.NewHijackedResponse(local, mediaType)
}

func TestServiceRun(t *testing.T) {
	tests := map[string]struct {
		mock        func(t *testing.T, m *mobymock.MockDockerClient)
		req         exec.Request
		expStdout   string
		expStderr   string
		expExitCode int
		expState    model.SessionState
		expErr      error
	}{
		"Empty command should fail.": {
			mock:   func(t *testing.T, m *mobymock.MockDockerClient) {},
			req:    exec.Request{ContainerID: "c1"},
			expErr: model.ErrNotValid,
		},

		"Missing container ID should fail.": {
			mock:   func(t *testing.T, m *mobymock.MockDockerClient) {},
			req:    exec.Request{Command: []string{"ls"}},
			expErr: model.ErrNotValid,
		},

		"A command should be executed and its streams demuxed.": {
			mock: func(t *testing.T, m *mobymock.MockDockerClient) {
				expOpts := container.ExecOptions{
					Cmd:          []string{"sh", "-c", "echo"},
					Env:          []string{"A=1", "B=2"},
					WorkingDir:   "/tmp",
					AttachStdout: true,
					AttachStderr: true,
				}
				m.On("ContainerExecCreate", mock.Anything, "c1", expOpts).Once().Return(container.ExecCreateResponse{ID: "e1"}, nil)
				resp := hijacked(t, demux.ContentTypeMultiplexed,
					demux.Frame{Channel: model.ChannelStdout, Payload: []byte("out")},
					demux.Frame{Channel: model.ChannelStderr, Payload: []byte("err")},
				)
				m.On("ContainerExecAttach", mock.Anything, "e1", container.ExecAttachOptions{}).Once().Return(resp, nil)
				m.On("ContainerExecInspect", mock.Anything, "e1").Once().Return(container.ExecInspect{ExitCode: 3}, nil)
			},
			req: exec.Request{
				ContainerID: "c1",
				Command:     []string{"sh", "-c", "echo"},
				Env:         map[string]string{"B": "2", "A": "1"},
				WorkingDir:  "/tmp",
			},
			expStdout:   "out",
			expStderr:   "err",
			expExitCode: 3,
			expState:    model.SessionStateCompleted,
		},

		"A TTY command should deliver all its output on stdout.": {
			mock: func(t *testing.T, m *mobymock.MockDockerClient) {
				m.On("ContainerExecCreate", mock.Anything, "c1", mock.Anything).Once().Return(container.ExecCreateResponse{ID: "e1"}, nil)
				resp := hijacked(t, demux.ContentTypeRaw, demux.Frame{Payload: []byte("prompt$ ")})
				m.On("ContainerExecAttach", mock.Anything, "e1", container.ExecAttachOptions{Tty: true}).Once().Return(resp, nil)
				m.On("ContainerExecInspect", mock.Anything, "e1").Once().Return(container.ExecInspect{}, nil)
			},
			req:       exec.Request{ContainerID: "c1", Command: []string{"sh"}, Tty: true},
			expStdout: "prompt$ ",
			expState:  model.SessionStateCompleted,
		},

		"A truncated stream should fail the session.": {
			mock: func(t *testing.T, m *mobymock.MockDockerClient) {
				m.On("ContainerExecCreate", mock.Anything, "c1", mock.Anything).Once().Return(container.ExecCreateResponse{ID: "e1"}, nil)

				local, remote := net.Pipe()
				t.Cleanup(func() { _ = local.Close() })
				go func() {
					defer remote.Close()
					_ = demux.WriteFrame(remote, demux.Frame{Channel: model.ChannelStdout, Payload: []byte("ok")})
					_, _ = remote.Write([]byte{1, 0, 0, 0, 0, 0, 0, 10, 'x'})
				}()
				m.On("ContainerExecAttach", mock.Anything, "e1", mock.Anything).Once().Return(types.NewHijackedResponse(local, demux.ContentTypeMultiplexed), nil)
				m.On("ContainerExecInspect", mock.Anything, "e1").Once().Return(container.ExecInspect{ExitCode: 1}, nil)
			},
			req:         exec.Request{ContainerID: "c1", Command: []string{"ls"}},
			expStdout:   "ok",
			expExitCode: 1,
			expState:    model.SessionStateFailed,
			expErr:      model.ErrTruncatedFrame,
		},

		"A missing container should fail.": {
			mock: func(t *testing.T, m *mobymock.MockDockerClient) {
				m.On("ContainerExecCreate", mock.Anything, "c1", mock.Anything).Once().Return(container.ExecCreateResponse{}, errdefs.NotFound(errors.New("no such container")))
			},
			req:    exec.Request{ContainerID: "c1", Command: []string{"ls"}},
			expErr: model.ErrNotFound,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			mc := mobymock.NewMockDockerClient(t)
			test.mock(t, mc)

			c, err := moby.NewClient(moby.Config{Client: mc})
			require.NoError(err)
			repo, err := memory.NewRepository(memory.RepositoryConfig{})
			require.NoError(err)
			svc, err := exec.NewService(exec.ServiceConfig{Client: c, Repository: repo})
			require.NoError(err)

			var stdout, stderr bytes.Buffer
			req := test.req
			req.Stdout = &stdout
			req.Stderr = &stderr

			resp, err := svc.Run(context.Background(), req)

			if test.expErr != nil {
				assert.ErrorIs(err, test.expErr)
			} else {
				assert.NoError(err)
			}
			if test.expState == "" {
				return
			}

			require.NotNil(resp)
			assert.Equal(test.expStdout, stdout.String())
			assert.Equal(test.expStderr, stderr.String())
			assert.Equal(test.expExitCode, resp.ExitCode)

			got, err := repo.GetSession(context.Background(), resp.Session.ID)
			require.NoError(err)
			assert.Equal("exec", got.Operation)
			assert.Equal("e1", got.Target)
			assert.Equal(test.expState, got.State)
			if assert.NotNil(got.ExitCode) {
				assert.Equal(test.expExitCode, *got.ExitCode)
			}
		})
	}
}
