package lib

import (
	"os"
	"testing"
)

const defaultImage = "busybox:1.36"

// Config holds integration test configuration loaded from environment variables.
type Config struct {
	Image string
}

// NewConfig loads integration test configuration from environment variables.
// If the activation env var is not set, the test is skipped.
func NewConfig(t *testing.T) Config {
	t.Helper()

	const (
		envActivation = "MOBYDEMUX_INTEGRATION"
		envImage      = "MOBYDEMUX_INTEGRATION_IMAGE"
	)

	if os.Getenv(envActivation) != "true" {
		t.Skipf("Skipping integration test: %s is not set to 'true'", envActivation)
	}

	c := Config{Image: os.Getenv(envImage)}
	if c.Image == "" {
		c.Image = defaultImage
	}

	return c
}
