package run

import (
	"context"
	"fmt"
	"io"

	"github.com/slok/mobydemux/internal/app/record"
	"github.com/slok/mobydemux/internal/demux"
	"github.com/slok/mobydemux/internal/log"
	"github.com/slok/mobydemux/internal/moby"
	"github.com/slok/mobydemux/internal/model"
	"github.com/slok/mobydemux/internal/storage"
	"github.com/slok/mobydemux/internal/utils/env"
)

// Runner creates and starts containers with their streams attached.
type Runner interface {
	Run(ctx context.Context, opts moby.RunOptions) (*moby.RunHandle, error)
}

var _ Runner = &moby.Client{}

// ServiceConfig is the configuration for the run service.
type ServiceConfig struct {
	Client Runner
	// Demuxer defaults to a demux engine with the default settings.
	Demuxer *demux.Engine
	// Repository stores the session history, optional.
	Repository storage.SessionRepository
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Client == nil {
		return fmt.Errorf("client is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Run"})

	if c.Demuxer == nil {
		e, err := demux.NewEngine(demux.EngineConfig{Logger: c.Logger})
		if err != nil {
			return fmt.Errorf("could not create demux engine: %w", err)
		}
		c.Demuxer = e
	}
	return nil
}

// Service runs new containers.
type Service struct {
	client   Runner
	demuxer  *demux.Engine
	recorder record.Recorder
	logger   log.Logger
}

// NewService creates a new run service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		client:   cfg.Client,
		demuxer:  cfg.Demuxer,
		recorder: record.NewRecorder(cfg.Repository, cfg.Logger),
		logger:   cfg.Logger,
	}, nil
}

// Request contains the parameters for running a container.
type Request struct {
	Profile model.RunProfile
	// Stdin is used when the profile opens the container stdin.
	Stdin  io.Reader
	Stdout io.Writer
	// Stderr is optional, when missing stderr is combined on Stdout.
	Stderr io.Writer
}

// Response is the outcome of a container run.
type Response struct {
	ContainerID string
	Result      *demux.Result
	Session     model.SessionRecord
	ExitCode    int
}

// Run runs a container and demuxes its streams until it exits.
func (s *Service) Run(ctx context.Context, req Request) (*Response, error) {
	if err := req.Profile.Validate(); err != nil {
		return nil, fmt.Errorf("invalid profile: %w", err)
	}
	if req.Stdout == nil {
		return nil, fmt.Errorf("stdout is required: %w", model.ErrNotValid)
	}

	p := req.Profile
	h, err := s.client.Run(ctx, moby.RunOptions{
		Image:      p.Image,
		Cmd:        p.Cmd,
		Env:        env.ToList(p.Env),
		Name:       p.Name,
		Tty:        p.Tty,
		OpenStdin:  p.OpenStdin && req.Stdin != nil,
		Pull:       p.Pull,
		AutoRemove: p.AutoRemove,
	})
	if err != nil {
		return nil, fmt.Errorf("could not run container: %w", err)
	}

	source := req.Stdin
	if !p.OpenStdin {
		source = nil
	}
	stderr := req.Stderr
	if h.Socket.Kind() == demux.KindRaw {
		stderr = nil
	}

	session, err := s.demuxer.NewSession(demux.SessionConfig{
		Target: demux.Single(h.Socket),
		Source: source,
		Stdout: req.Stdout,
		Stderr: stderr,
	})
	if err != nil {
		_ = h.Socket.Close()
		_, _ = h.Wait(ctx)
		return nil, fmt.Errorf("could not create session: %w", err)
	}

	exitCode := 0
	res, rec, err := s.recorder.Run(ctx, "run", h.ContainerID, session, func(rec *model.SessionRecord, sessionErr error) {
		if record.IsCancelled(sessionErr) {
			return
		}

		code, err := h.Wait(ctx)
		if err != nil {
			s.logger.Warningf("Could not wait container %s: %s", h.ContainerID, err)
			return
		}
		exitCode = code
		rec.ExitCode = &code
	})

	return &Response{ContainerID: h.ContainerID, Result: res, Session: rec, ExitCode: exitCode}, err
}
