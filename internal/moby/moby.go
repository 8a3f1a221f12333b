package moby

import (
	"context"
	"fmt"
	"io"
	"net"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/slok/mobydemux/internal/log"
	"github.com/slok/mobydemux/internal/model"
)

// DockerClient is the interface for Docker operations that we use.
// This allows us to mock the Docker client for testing.
type DockerClient interface {
	ContainerAttach(ctx context.Context, containerID string, options container.AttachOptions) (types.HijackedResponse, error)
	ContainerExecCreate(ctx context.Context, containerID string, options container.ExecOptions) (container.ExecCreateResponse, error)
	ContainerExecAttach(ctx context.Context, execID string, config container.ExecAttachOptions) (types.HijackedResponse, error)
	ContainerExecInspect(ctx context.Context, execID string) (container.ExecInspect, error)
	ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error)
	ClientVersion() string
	DaemonHost() string
	Dialer() func(context.Context) (net.Conn, error)
}

var _ DockerClient = &client.Client{}

// Config is the configuration for the Moby client.
type Config struct {
	// Client is the Docker API client, defaults to a client configured from the environment.
	Client DockerClient
	Logger log.Logger
}

func (c *Config) defaults() error {
	if c.Client == nil {
		cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
		if err != nil {
			return fmt.Errorf("could not create Docker client: %w", err)
		}
		c.Client = cli
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "moby.Client"})
	return nil
}

// Client obtains classified hijacked streams from a container engine daemon.
type Client struct {
	client DockerClient
	logger log.Logger
}

// NewClient returns a new Moby client.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Client{
		client: cfg.Client,
		logger: cfg.Logger,
	}, nil
}

// apiError maps daemon errors to domain errors.
func apiError(err error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if client.IsErrNotFound(err) {
		return fmt.Errorf("%s: %w: %w", msg, model.ErrNotFound, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
