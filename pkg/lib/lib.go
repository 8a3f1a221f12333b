package lib

import (
	"context"
	"fmt"
	"sync"

	"github.com/slok/mobydemux/internal/demux"
	"github.com/slok/mobydemux/internal/log"
	"github.com/slok/mobydemux/internal/moby"
	"github.com/slok/mobydemux/internal/storage"
	"github.com/slok/mobydemux/internal/storage/sqlite"
)

// Config configures the SDK client.
//
// All fields are optional, an empty Config{} connects to the container engine
// using the environment (DOCKER_HOST, DOCKER_API_VERSION...) and records no history.
type Config struct {
	// DBPath is the SQLite session history database path.
	// Default: no history.
	DBPath string

	// BufferSize is the number of frames buffered per channel when the output is
	// delivered to separate sinks.
	// Default: 16.
	BufferSize int

	// Logger receives structured log output from the SDK.
	// Default: noop (silent). See the log sub-package for the interface.
	Logger log.Logger
}

func (c *Config) defaults() error {
	if c.BufferSize < 0 {
		return fmt.Errorf("buffer size can't be negative: %w", ErrNotValid)
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// Client is the main SDK entry point.
//
// Create a Client with [New] and release its resources with [Client.Close].
// A Client is safe for concurrent use.
type Client struct {
	engine  *demux.Engine
	repo    storage.SessionRepository
	logger  log.Logger
	closeFn func() error

	// The container engine client is created on first use, the stream API doesn't need it.
	mobyOnce sync.Once
	moby     *moby.Client
	mobyErr  error
}

// New creates a new SDK client.
//
// The caller must call [Client.Close] when done to release the database
// connection. Typically used with defer:
//
//	client, err := lib.New(ctx, lib.Config{})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
func New(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	engine, err := demux.NewEngine(demux.EngineConfig{
		Logger:     cfg.Logger,
		BufferSize: cfg.BufferSize,
	})
	if err != nil {
		return nil, mapError(fmt.Errorf("could not create demux engine: %w", err))
	}

	c := &Client{
		engine: engine,
		logger: cfg.Logger,
	}

	if cfg.DBPath != "" {
		repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
			DBPath: cfg.DBPath,
			Logger: cfg.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("could not create repository: %w", err)
		}
		c.repo = repo
		c.closeFn = repo.Close
	}

	return c, nil
}

// Close releases resources held by the client, including the database connection.
// After Close returns, the client must not be used.
func (c *Client) Close() error {
	if c.closeFn != nil {
		return c.closeFn()
	}
	return nil
}

func (c *Client) mobyClient() (*moby.Client, error) {
	c.mobyOnce.Do(func() {
		c.moby, c.mobyErr = moby.NewClient(moby.Config{Logger: c.logger})
	})
	if c.mobyErr != nil {
		return nil, fmt.Errorf("could not create container engine client: %w", c.mobyErr)
	}
	return c.moby, nil
}
