package decode

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/slok/mobydemux/internal/app/record"
	"github.com/slok/mobydemux/internal/demux"
	"github.com/slok/mobydemux/internal/log"
	"github.com/slok/mobydemux/internal/model"
	"github.com/slok/mobydemux/internal/storage"
)

// ServiceConfig is the configuration for the decode service.
type ServiceConfig struct {
	// Demuxer defaults to a demux engine with the default settings.
	Demuxer *demux.Engine
	// Repository stores the session history, optional.
	Repository storage.SessionRepository
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Decode"})

	if c.Demuxer == nil {
		e, err := demux.NewEngine(demux.EngineConfig{Logger: c.Logger})
		if err != nil {
			return fmt.Errorf("could not create demux engine: %w", err)
		}
		c.Demuxer = e
	}
	return nil
}

// Service decodes captured multiplexed streams (e.g container log files or API dumps).
type Service struct {
	demuxer  *demux.Engine
	recorder record.Recorder
	logger   log.Logger
}

// NewService creates a new decode service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		demuxer:  cfg.Demuxer,
		recorder: record.NewRecorder(cfg.Repository, cfg.Logger),
		logger:   cfg.Logger,
	}, nil
}

// Request contains the parameters for decoding a stream.
type Request struct {
	// Name identifies the input on the session history (e.g the file path).
	Name  string
	Input io.ReadCloser
	// Raw handles the input as an unframed stream.
	Raw    bool
	Stdout io.Writer
	// Stderr is optional, when missing stderr is combined on Stdout.
	Stderr io.Writer
}

// Response is the outcome of a decode.
type Response struct {
	Result  *demux.Result
	Session model.SessionRecord
}

// Run decodes the input until it ends. The input is closed once decoded.
func (s *Service) Run(ctx context.Context, req Request) (*Response, error) {
	if req.Input == nil {
		return nil, fmt.Errorf("input is required: %w", model.ErrNotValid)
	}
	if req.Stdout == nil {
		_ = req.Input.Close()
		return nil, fmt.Errorf("stdout is required: %w", model.ErrNotValid)
	}

	contentType := demux.ContentTypeMultiplexed
	stderr := req.Stderr
	if req.Raw {
		contentType = demux.ContentTypeRaw
		stderr = nil
	}

	sock, err := demux.ClassifyDirected(contentType, readOnlyConn{req.Input}, demux.Unidirectional)
	if err != nil {
		_ = req.Input.Close()
		return nil, err
	}

	session, err := s.demuxer.NewSession(demux.SessionConfig{
		Target: demux.Single(sock),
		Stdout: req.Stdout,
		Stderr: stderr,
	})
	if err != nil {
		_ = sock.Close()
		return nil, fmt.Errorf("could not create session: %w", err)
	}

	res, rec, err := s.recorder.Run(ctx, "decode", req.Name, session, nil)
	if res != nil && res.DroppedFrames > 0 {
		s.logger.Warningf("Dropped %d frames with unknown channels", res.DroppedFrames)
	}

	return &Response{Result: res, Session: rec}, err
}

var errReadOnly = errors.New("read only stream")

type readOnlyConn struct {
	io.ReadCloser
}

func (readOnlyConn) Write([]byte) (int, error) { return 0, errReadOnly }
