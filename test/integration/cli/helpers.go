package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/slok/mobydemux/test/integration/testutils"
)

const defaultImage = "busybox:1.36"

// Config holds integration test configuration loaded from environment variables.
type Config struct {
	Binary string
	Image  string
}

func (c *Config) defaults() error {
	if c.Binary == "" {
		c.Binary = "mobydemux"
	}

	// go test changes the CWD to the test package directory, relative paths are not reliable.
	if !filepath.IsAbs(c.Binary) {
		return fmt.Errorf("MOBYDEMUX_INTEGRATION_BINARY must be an absolute path, got %q", c.Binary)
	}
	if _, err := os.Stat(c.Binary); err != nil {
		return fmt.Errorf("mobydemux binary not found at %q: %w", c.Binary, err)
	}

	if c.Image == "" {
		c.Image = defaultImage
	}

	return nil
}

// NewConfig loads integration test configuration from environment variables.
// If the config is invalid or the activation env var is not set, the test is skipped.
func NewConfig(t *testing.T) Config {
	t.Helper()

	const (
		envActivation = "MOBYDEMUX_INTEGRATION"
		envBinary     = "MOBYDEMUX_INTEGRATION_BINARY"
		envImage      = "MOBYDEMUX_INTEGRATION_IMAGE"
	)

	if os.Getenv(envActivation) != "true" {
		t.Skipf("Skipping integration test: %s is not set to 'true'", envActivation)
	}

	c := Config{
		Binary: os.Getenv(envBinary),
		Image:  os.Getenv(envImage),
	}

	if err := c.defaults(); err != nil {
		t.Skipf("Skipping due to invalid config: %s", err)
	}

	return c
}

// Run runs the mobydemux binary with an isolated history database.
func (c Config) Run(ctx context.Context, dbPath string, args []string, stdin io.Reader) (stdout, stderr []byte, err error) {
	return testutils.Cmd{
		Binary: c.Binary,
		Args:   append([]string{"--db-path", dbPath}, args...),
		Stdin:  stdin,
		NoLog:  true,
	}.Run(ctx)
}
