package moby

import (
	"context"
	"fmt"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"

	"github.com/slok/mobydemux/internal/demux"
	"github.com/slok/mobydemux/internal/model"
)

// AttachOptions are the streams attached to a running container.
type AttachOptions struct {
	Stdin  bool
	Stdout bool
	Stderr bool
	// Logs replays the container output produced before attaching.
	Logs bool
	// DetachKeys overrides the daemon key sequence that detaches from the container.
	DetachKeys string
}

// Attach attaches to a running container and returns its classified socket.
func (c *Client) Attach(ctx context.Context, containerID string, opts AttachOptions) (*demux.Socket, error) {
	if containerID == "" {
		return nil, fmt.Errorf("container id is required: %w", model.ErrNotValid)
	}

	resp, err := c.client.ContainerAttach(ctx, containerID, container.AttachOptions{
		Stream:     true,
		Stdin:      opts.Stdin,
		Stdout:     opts.Stdout,
		Stderr:     opts.Stderr,
		Logs:       opts.Logs,
		DetachKeys: opts.DetachKeys,
	})
	if err != nil {
		return nil, apiError(err, "could not attach to container %s", containerID)
	}

	contentType, err := c.contentType(ctx, &resp, func(ctx context.Context) (bool, error) {
		info, err := c.client.ContainerInspect(ctx, containerID)
		if err != nil {
			return false, apiError(err, "could not inspect container %s", containerID)
		}
		return info.Config != nil && info.Config.Tty, nil
	})
	if err != nil {
		resp.Close()
		return nil, err
	}

	return classify(contentType, resp)
}

// contentType returns the hijacked stream content type. Old daemons don't send it, in that
// case the TTY setting of the process decides the framing.
func (c *Client) contentType(ctx context.Context, resp *types.HijackedResponse, isTTY func(ctx context.Context) (bool, error)) (string, error) {
	if mediaType, ok := resp.MediaType(); ok {
		return mediaType, nil
	}

	tty, err := isTTY(ctx)
	if err != nil {
		return "", err
	}

	c.logger.Debugf("Daemon didn't send the stream content type, using TTY setting (tty: %t)", tty)
	if tty {
		return demux.ContentTypeRaw, nil
	}
	return demux.ContentTypeMultiplexed, nil
}

func classify(contentType string, resp types.HijackedResponse) (*demux.Socket, error) {
	sock, err := demux.Classify(contentType, demux.NewBufferedConn(resp.Reader, resp.Conn))
	if err != nil {
		resp.Close()
		return nil, err
	}
	return sock, nil
}
