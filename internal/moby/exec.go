package moby

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/docker/api/types/container"

	"github.com/slok/mobydemux/internal/demux"
	"github.com/slok/mobydemux/internal/model"
)

// ExecOptions are the options of a process executed in a running container.
type ExecOptions struct {
	Cmd         []string
	Env         []string
	WorkingDir  string
	User        string
	Tty         bool
	AttachStdin bool
}

// ExecHandle is a started exec process.
type ExecHandle struct {
	// ID is the daemon exec ID.
	ID string
	// Socket is the classified exec stream.
	Socket *demux.Socket

	client       DockerClient
	pollInterval time.Duration
}

const execPollInterval = 100 * time.Millisecond

// Exec creates and starts a process in a running container and returns its classified socket.
func (c *Client) Exec(ctx context.Context, containerID string, opts ExecOptions) (*ExecHandle, error) {
	if containerID == "" {
		return nil, fmt.Errorf("container id is required: %w", model.ErrNotValid)
	}
	if len(opts.Cmd) == 0 {
		return nil, fmt.Errorf("command cannot be empty: %w", model.ErrNotValid)
	}

	created, err := c.client.ContainerExecCreate(ctx, containerID, container.ExecOptions{
		Cmd:          opts.Cmd,
		Env:          opts.Env,
		WorkingDir:   opts.WorkingDir,
		User:         opts.User,
		Tty:          opts.Tty,
		AttachStdin:  opts.AttachStdin,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return nil, apiError(err, "could not create exec on container %s", containerID)
	}

	c.logger.Debugf("Exec %s created on container %s", created.ID, containerID)

	resp, err := c.client.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{Tty: opts.Tty})
	if err != nil {
		return nil, apiError(err, "could not start exec %s", created.ID)
	}

	contentType, err := c.contentType(ctx, &resp, func(context.Context) (bool, error) { return opts.Tty, nil })
	if err != nil {
		resp.Close()
		return nil, err
	}

	sock, err := classify(contentType, resp)
	if err != nil {
		return nil, err
	}

	return &ExecHandle{
		ID:           created.ID,
		Socket:       sock,
		client:       c.client,
		pollInterval: execPollInterval,
	}, nil
}

// ExitCode returns the exit code of the exec process, waiting for it if it's still
// running (the daemon can report it running for a moment after its streams end).
func (e *ExecHandle) ExitCode(ctx context.Context) (int, error) {
	for {
		info, err := e.client.ContainerExecInspect(ctx, e.ID)
		if err != nil {
			return 0, apiError(err, "could not inspect exec %s", e.ID)
		}
		if !info.Running {
			return info.ExitCode, nil
		}

		select {
		case <-ctx.Done():
			return 0, fmt.Errorf("exec %s still running: %w", e.ID, ctx.Err())
		case <-time.After(e.pollInterval):
		}
	}
}
