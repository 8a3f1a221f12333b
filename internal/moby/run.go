package moby

import (
	"context"
	"fmt"
	"io"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"

	"github.com/slok/mobydemux/internal/demux"
	"github.com/slok/mobydemux/internal/model"
)

// RunOptions are the options of a new container run.
type RunOptions struct {
	Image string
	Cmd   []string
	Env   []string
	// Name of the container, optional.
	Name      string
	Tty       bool
	OpenStdin bool
	// Pull pulls the image before creating the container.
	Pull bool
	// AutoRemove removes the container once it has been waited.
	AutoRemove bool
}

// RunHandle is a started container with its streams attached.
type RunHandle struct {
	ContainerID string
	Socket      *demux.Socket

	client     DockerClient
	autoRemove bool
	waitC      <-chan container.WaitResponse
	errC       <-chan error
}

// Run creates a container, attaches to it before starting it (so no output is lost) and
// starts it.
func (c *Client) Run(ctx context.Context, opts RunOptions) (*RunHandle, error) {
	if opts.Image == "" {
		return nil, fmt.Errorf("image is required: %w", model.ErrNotValid)
	}

	if opts.Pull {
		c.logger.Infof("Pulling image: %s", opts.Image)
		pullResp, err := c.client.ImagePull(ctx, opts.Image, image.PullOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to pull image %s: %w", opts.Image, err)
		}
		// Consume the pull response to ensure it completes.
		_, _ = io.Copy(io.Discard, pullResp)
		pullResp.Close()
	}

	created, err := c.client.ContainerCreate(ctx, &container.Config{
		Image:        opts.Image,
		Cmd:          opts.Cmd,
		Env:          opts.Env,
		Tty:          opts.Tty,
		OpenStdin:    opts.OpenStdin,
		StdinOnce:    opts.OpenStdin,
		AttachStdin:  opts.OpenStdin,
		AttachStdout: true,
		AttachStderr: true,
	}, &container.HostConfig{}, nil, nil, opts.Name)
	if err != nil {
		return nil, apiError(err, "failed to create container from image %s", opts.Image)
	}
	id := created.ID
	c.logger.Debugf("Container %s created", id)

	cleanup := func() {
		rmErr := c.client.ContainerRemove(context.WithoutCancel(ctx), id, container.RemoveOptions{Force: true})
		if rmErr != nil {
			c.logger.Warningf("Could not remove container %s: %s", id, rmErr)
		}
	}

	sock, err := c.Attach(ctx, id, AttachOptions{Stdin: opts.OpenStdin, Stdout: true, Stderr: true})
	if err != nil {
		cleanup()
		return nil, err
	}

	// Register the wait before starting, fast containers may end before we wait otherwise.
	waitC, errC := c.client.ContainerWait(ctx, id, container.WaitConditionNextExit)

	if err := c.client.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		_ = sock.Close()
		cleanup()
		return nil, apiError(err, "failed to start container %s", id)
	}
	c.logger.Infof("Container %s started", id)

	return &RunHandle{
		ContainerID: id,
		Socket:      sock,
		client:      c.client,
		autoRemove:  opts.AutoRemove,
		waitC:       waitC,
		errC:        errC,
	}, nil
}

// Wait waits for the container to exit and returns its exit code.
func (r *RunHandle) Wait(ctx context.Context) (int, error) {
	code, err := r.wait(ctx)

	if r.autoRemove {
		rmErr := r.client.ContainerRemove(context.WithoutCancel(ctx), r.ContainerID, container.RemoveOptions{Force: true})
		if rmErr != nil && err == nil {
			err = apiError(rmErr, "could not remove container %s", r.ContainerID)
		}
	}

	return code, err
}

func (r *RunHandle) wait(ctx context.Context) (int, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case err := <-r.errC:
		return 0, apiError(err, "could not wait container %s", r.ContainerID)
	case resp := <-r.waitC:
		if resp.Error != nil && resp.Error.Message != "" {
			return int(resp.StatusCode), fmt.Errorf("container %s wait: %s", r.ContainerID, resp.Error.Message)
		}
		return int(resp.StatusCode), nil
	}
}
