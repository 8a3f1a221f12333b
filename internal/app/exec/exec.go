package exec

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

// Executor runs processes in running containers.
type Executor interface {
	Exec(ctx context.Context, containerID string, opts moby.ExecOptions) (*moby.ExecHandle, error)
}

var _ Executor = &moby.Client{}

// ServiceConfig is the configuration for the exec service.
type ServiceConfig struct {
	Client Executor
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
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Exec"})

	if c.Demuxer == nil {
		e, err := demux.NewEngine(demux.EngineConfig{Logger: c.Logger})
		if err != nil {
			return fmt.Errorf("could not create demux engine: %w", err)
		}
		c.Demuxer = e
	}
	return nil
}

// Service handles command execution in containers.
type Service struct {
	client   Executor
	demuxer  *demux.Engine
	recorder record.Recorder
	logger   log.Logger
}

// NewService creates a new exec service.
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

// Request contains the parameters for executing a command.
type Request struct {
	ContainerID string
	Command     []string
	Env         map[string]string
	WorkingDir  string
	User        string
	Tty         bool
	// Stdin is optional, when missing the process has no input.
	Stdin  io.Reader
	Stdout io.Writer
	// Stderr is optional, when missing stderr is combined on Stdout.
	Stderr io.Writer
}

// Response is the outcome of an exec.
type Response struct {
	Result   *demux.Result
	Session  model.SessionRecord
	ExitCode int
}

// Run executes a command in a container and demuxes its streams until the process ends.
func (s *Service) Run(ctx context.Context, req Request) (*Response, error) {
	if req.ContainerID == "" {
		return nil, fmt.Errorf("container id is required: %w", model.ErrNotValid)
	}
	if len(req.Command) == 0 {
		return nil, fmt.Errorf("command cannot be empty: %w", model.ErrNotValid)
	}
	if req.Stdout == nil {
		return nil, fmt.Errorf("stdout is required: %w", model.ErrNotValid)
	}

	h, err := s.client.Exec(ctx, req.ContainerID, moby.ExecOptions{
		Cmd:         req.Command,
		Env:         env.ToList(req.Env),
		WorkingDir:  req.WorkingDir,
		User:        req.User,
		Tty:         req.Tty,
		AttachStdin: req.Stdin != nil,
	})
	if err != nil {
		return nil, fmt.Errorf("could not execute command: %w", err)
	}

	stderr := req.Stderr
	if h.Socket.Kind() == demux.KindRaw {
		stderr = nil
	}

	session, err := s.demuxer.NewSession(demux.SessionConfig{
		Target: demux.Single(h.Socket),
		Source: req.Stdin,
		Stdout: req.Stdout,
		Stderr: stderr,
	})
	if err != nil {
		_ = h.Socket.Close()
		return nil, fmt.Errorf("could not create session: %w", err)
	}

	exitCode := 0
	res, rec, err := s.recorder.Run(ctx, "exec", h.ID, session, func(rec *model.SessionRecord, sessionErr error) {
		if record.IsCancelled(sessionErr) {
			return
		}

		code, err := h.ExitCode(ctx)
		if err != nil {
			s.logger.Warningf("Could not get exec %s exit code: %s", h.ID, err)
			return
		}
		exitCode = code
		rec.ExitCode = &code
	})

	s.logger.Debugf("Executed command in container %s (exec: %s): exit code %d", req.ContainerID, h.ID, exitCode)

	return &Response{Result: res, Session: rec, ExitCode: exitCode}, err
}
