package attach

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
)

// Attacher obtains the streams of running containers.
type Attacher interface {
	Attach(ctx context.Context, containerID string, opts moby.AttachOptions) (*demux.Socket, error)
	AttachWebsocketSplit(ctx context.Context, containerID string, opts moby.WebsocketOptions) (demux.SplitSockets, error)
}

var _ Attacher = &moby.Client{}

// ServiceConfig is the configuration for the attach service.
type ServiceConfig struct {
	Client Attacher
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
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Attach"})

	if c.Demuxer == nil {
		e, err := demux.NewEngine(demux.EngineConfig{Logger: c.Logger})
		if err != nil {
			return fmt.Errorf("could not create demux engine: %w", err)
		}
		c.Demuxer = e
	}
	return nil
}

// Service attaches to running containers.
type Service struct {
	client   Attacher
	demuxer  *demux.Engine
	recorder record.Recorder
	logger   log.Logger
}

// NewService creates a new attach service.
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

// Request contains the parameters for attaching to a container.
type Request struct {
	ContainerID string
	// Stdin is optional, when missing the container stdin is not attached.
	Stdin  io.Reader
	Stdout io.Writer
	// Stderr is optional, when missing stderr is combined on Stdout.
	Stderr io.Writer
	// Websocket attaches every channel with its own websocket.
	Websocket  bool
	Logs       bool
	DetachKeys string
}

// Response is the outcome of an attach.
type Response struct {
	Result  *demux.Result
	Session model.SessionRecord
}

// Run attaches to the container and demuxes its streams until they end.
func (s *Service) Run(ctx context.Context, req Request) (*Response, error) {
	if req.ContainerID == "" {
		return nil, fmt.Errorf("container id is required: %w", model.ErrNotValid)
	}
	if req.Stdout == nil {
		return nil, fmt.Errorf("stdout is required: %w", model.ErrNotValid)
	}

	var target demux.Target
	stderr := req.Stderr
	if req.Websocket {
		socks, err := s.client.AttachWebsocketSplit(ctx, req.ContainerID, moby.WebsocketOptions{
			Stdin:  req.Stdin != nil,
			Stdout: true,
			Stderr: true,
		})
		if err != nil {
			return nil, fmt.Errorf("could not attach: %w", err)
		}
		target = demux.Split(socks)
	} else {
		sock, err := s.client.Attach(ctx, req.ContainerID, moby.AttachOptions{
			Stdin:      req.Stdin != nil,
			Stdout:     true,
			Stderr:     true,
			Logs:       req.Logs,
			DetachKeys: req.DetachKeys,
		})
		if err != nil {
			return nil, fmt.Errorf("could not attach: %w", err)
		}
		target = demux.Single(sock)

		// TTY streams can't be separated.
		if sock.Kind() == demux.KindRaw {
			stderr = nil
		}
	}

	session, err := s.demuxer.NewSession(demux.SessionConfig{
		Target: target,
		Source: req.Stdin,
		Stdout: req.Stdout,
		Stderr: stderr,
	})
	if err != nil {
		target.Close()
		return nil, fmt.Errorf("could not create session: %w", err)
	}

	s.logger.Debugf("Attached to container %s (session: %s, kind: %s)", req.ContainerID, session.ID(), session.Kind())

	res, rec, err := s.recorder.Run(ctx, "attach", req.ContainerID, session, nil)
	return &Response{Result: res, Session: rec}, err
}
