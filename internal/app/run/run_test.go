package run_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"testing"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/slok/mobydemux/internal/app/run"
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

func waitResponse(code int64) (<-chan container.WaitResponse, <-chan error) {
	waitC := make(chan container.WaitResponse, 1)
	waitC <- container.WaitResponse{StatusCode: code}
	return waitC, make(chan error)
}

func TestServiceRun(t *testing.T) {
	tests := map[string]struct {
		mock        func(t *testing.T, m *mobymock.MockDockerClient)
		req         run.Request
		expStdout   string
		expStderr   string
		expExitCode int
		expErr      error
	}{
		"An invalid profile should fail.": {
			mock:   func(t *testing.T, m *mobymock.MockDockerClient) {},
			req:    run.Request{Profile: model.RunProfile{Name: "test"}},
			expErr: model.ErrNotValid,
		},

		"A container should be run with its output demuxed and its exit code returned.": {
			mock: func(t *testing.T, m *mobymock.MockDockerClient) {
				m.On("ContainerCreate", mock.Anything, mock.MatchedBy(func(c *container.Config) bool {
					return c.Image == "alpine:3" && len(c.Env) == 1 && c.Env[0] == "FOO=bar" && !c.OpenStdin
				}), mock.Anything, mock.Anything, mock.Anything, "test").Once().Return(container.CreateResponse{ID: "c1"}, nil)

				resp := hijacked(t, demux.ContentTypeMultiplexed,
					demux.Frame{Channel: model.ChannelStdout, Payload: []byte("hello")},
					demux.Frame{Channel: model.ChannelStderr, Payload: []byte("oops")},
				)
				m.On("ContainerAttach", mock.Anything, "c1", mock.Anything).Once().Return(resp, nil)

				waitC, errC := waitResponse(7)
				m.On("ContainerWait", mock.Anything, "c1", container.WaitConditionNextExit).Once().Return(waitC, errC)
				m.On("ContainerStart", mock.Anything, "c1", mock.Anything).Once().Return(nil)
			},
			req: run.Request{Profile: model.RunProfile{
				Name:  "test",
				Image: "alpine:3",
				Cmd:   []string{"echo", "hello"},
				Env:   map[string]string{"FOO": "bar"},
			}},
			expStdout:   "hello",
			expStderr:   "oops",
			expExitCode: 7,
		},

		"An auto removed container should be removed after exiting.": {
			mock: func(t *testing.T, m *mobymock.MockDockerClient) {
				m.On("ImagePull", mock.Anything, "alpine:3", mock.Anything).Once().Return(io.NopCloser(strings.NewReader("{}")), nil)
				m.On("ContainerCreate", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, "").Once().Return(container.CreateResponse{ID: "c1"}, nil)

				resp := hijacked(t, demux.ContentTypeRaw, demux.Frame{Payload: []byte("tty")})
				m.On("ContainerAttach", mock.Anything, "c1", mock.Anything).Once().Return(resp, nil)

				waitC, errC := waitResponse(0)
				m.On("ContainerWait", mock.Anything, "c1", container.WaitConditionNextExit).Once().Return(waitC, errC)
				m.On("ContainerStart", mock.Anything, "c1", mock.Anything).Once().Return(nil)
				m.On("ContainerRemove", mock.Anything, "c1", container.RemoveOptions{Force: true}).Once().Return(nil)
			},
			req: run.Request{Profile: model.RunProfile{
				Image:      "alpine:3",
				Tty:        true,
				Pull:       true,
				AutoRemove: true,
			}},
			expStdout: "tty",
		},

		"A container that fails to start should be removed.": {
			mock: func(t *testing.T, m *mobymock.MockDockerClient) {
				m.On("ContainerCreate", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Once().Return(container.CreateResponse{ID: "c1"}, nil)
				resp := hijacked(t, demux.ContentTypeMultiplexed)
				m.On("ContainerAttach", mock.Anything, "c1", mock.Anything).Once().Return(resp, nil)
				waitC, errC := waitResponse(0)
				m.On("ContainerWait", mock.Anything, "c1", container.WaitConditionNextExit).Once().Return(waitC, errC)
				m.On("ContainerStart", mock.Anything, "c1", mock.Anything).Once().Return(errors.New("whatever"))
				m.On("ContainerRemove", mock.Anything, "c1", container.RemoveOptions{Force: true}).Once().Return(nil)
			},
			req:    run.Request{Profile: model.RunProfile{Image: "alpine:3"}},
			expErr: errors.New("whatever"),
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
			svc, err := run.NewService(run.ServiceConfig{Client: c, Repository: repo})
			require.NoError(err)

			var stdout, stderr bytes.Buffer
			req := test.req
			req.Stdout = &stdout
			req.Stderr = &stderr

			resp, err := svc.Run(context.Background(), req)

			if test.expErr != nil {
				if errors.Is(test.expErr, model.ErrNotValid) {
					assert.ErrorIs(err, test.expErr)
				} else {
					assert.Error(err)
				}
				return
			}
			require.NoError(err)

			assert.Equal(test.expStdout, stdout.String())
			assert.Equal(test.expStderr, stderr.String())
			assert.Equal("c1", resp.ContainerID)
			assert.Equal(test.expExitCode, resp.ExitCode)

			got, err := repo.GetSession(context.Background(), resp.Session.ID)
			require.NoError(err)
			assert.Equal("run", got.Operation)
			assert.Equal("c1", got.Target)
			assert.Equal(model.SessionStateCompleted, got.State)
			if assert.NotNil(got.ExitCode) {
				assert.Equal(test.expExitCode, *got.ExitCode)
			}
		})
	}
}
