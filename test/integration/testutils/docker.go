package testutils

import (
	"context"
	"io"
	"testing"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/stretchr/testify/require"
)

// DockerHelper provides utilities for interacting with Docker in tests.
type DockerHelper struct {
	client *client.Client
}

// NewDockerHelper creates a new Docker helper for tests.
func NewDockerHelper(t *testing.T) *DockerHelper {
	t.Helper()

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	require.NoError(t, err, "Failed to create Docker client")
	t.Cleanup(func() { _ = cli.Close() })

	return &DockerHelper{client: cli}
}

// PullImage pulls an image and waits until the pull completes.
func (d *DockerHelper) PullImage(t *testing.T, img string) {
	t.Helper()

	pull, err := d.client.ImagePull(context.Background(), img, image.PullOptions{})
	require.NoError(t, err, "Failed to pull image")
	_, _ = io.Copy(io.Discard, pull)
	_ = pull.Close()
}

// StartIdleContainer starts a container that sleeps until the test ends and returns its ID.
func (d *DockerHelper) StartIdleContainer(t *testing.T, img string) string {
	t.Helper()
	ctx := context.Background()

	d.PullImage(t, img)

	created, err := d.client.ContainerCreate(ctx, &container.Config{
		Image: img,
		Cmd:   []string{"sleep", "3600"},
	}, &container.HostConfig{}, nil, nil, "")
	require.NoError(t, err, "Failed to create container")

	t.Cleanup(func() {
		_ = d.client.ContainerRemove(context.Background(), created.ID, container.RemoveOptions{Force: true})
	})

	err = d.client.ContainerStart(ctx, created.ID, container.StartOptions{})
	require.NoError(t, err, "Failed to start container")

	return created.ID
}

// ContainerExists checks if a container with the given ID exists.
func (d *DockerHelper) ContainerExists(t *testing.T, id string) bool {
	t.Helper()

	_, err := d.client.ContainerInspect(context.Background(), id)
	if client.IsErrNotFound(err) {
		return false
	}
	require.NoError(t, err, "Failed to inspect container")
	return true
}
