package lib

import (
	"context"
	"fmt"
	"io"

	"github.com/slok/mobydemux/internal/app/attach"
	"github.com/slok/mobydemux/internal/app/decode"
	appexec "github.com/slok/mobydemux/internal/app/exec"
	"github.com/slok/mobydemux/internal/app/history"
	"github.com/slok/mobydemux/internal/app/historyremove"
	apprun "github.com/slok/mobydemux/internal/app/run"
	"github.com/slok/mobydemux/internal/model"
)

// StreamOpts are the local streams wired to a container process.
type StreamOpts struct {
	// Stdin is optional, when nil the process stdin is not attached.
	Stdin io.Reader
	// Stdout is required.
	Stdout io.Writer
	// Stderr is optional, when nil stderr is written on Stdout.
	Stderr io.Writer
}

// AttachOpts are the options of [Client.Attach].
type AttachOpts struct {
	StreamOpts
	// Websocket attaches with one websocket per stream instead of a hijacked connection.
	Websocket bool
	// Logs replays the container logs before streaming.
	Logs bool
	// DetachKeys overrides the key sequence for detaching.
	DetachKeys string
}

// Attach attaches to a running container and demuxes its streams until they end.
//
// Returns [ErrNotFound] if the container does not exist.
func (c *Client) Attach(ctx context.Context, containerID string, opts AttachOpts) (*Result, error) {
	mc, err := c.mobyClient()
	if err != nil {
		return nil, err
	}

	svc, err := attach.NewService(attach.ServiceConfig{
		Client:     mc,
		Demuxer:    c.engine,
		Repository: c.repo,
		Logger:     c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	resp, err := svc.Run(ctx, attach.Request{
		ContainerID: containerID,
		Stdin:       opts.Stdin,
		Stdout:      opts.Stdout,
		Stderr:      opts.Stderr,
		Websocket:   opts.Websocket,
		Logs:        opts.Logs,
		DetachKeys:  opts.DetachKeys,
	})
	if resp == nil {
		return nil, mapError(err)
	}

	return fromInternalResult(resp.Result), mapError(err)
}

// ExecOpts are the options of [Client.Exec].
type ExecOpts struct {
	StreamOpts
	Env        map[string]string
	WorkingDir string
	User       string
	Tty        bool
}

// ExecResult is the outcome of an exec.
type ExecResult struct {
	Result
	// ExitCode is the exit code of the process.
	ExitCode int
}

// Exec executes a command in a running container and demuxes its streams until it ends.
//
// Returns [ErrNotFound] if the container does not exist, or [ErrNotValid] if the
// command is empty.
func (c *Client) Exec(ctx context.Context, containerID string, command []string, opts *ExecOpts) (*ExecResult, error) {
	if opts == nil {
		opts = &ExecOpts{}
	}
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}

	mc, err := c.mobyClient()
	if err != nil {
		return nil, err
	}

	svc, err := appexec.NewService(appexec.ServiceConfig{
		Client:     mc,
		Demuxer:    c.engine,
		Repository: c.repo,
		Logger:     c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	resp, err := svc.Run(ctx, appexec.Request{
		ContainerID: containerID,
		Command:     command,
		Env:         opts.Env,
		WorkingDir:  opts.WorkingDir,
		User:        opts.User,
		Tty:         opts.Tty,
		Stdin:       opts.Stdin,
		Stdout:      opts.Stdout,
		Stderr:      opts.Stderr,
	})
	if resp == nil {
		return nil, mapError(err)
	}

	res := &ExecResult{ExitCode: resp.ExitCode}
	if r := fromInternalResult(resp.Result); r != nil {
		res.Result = *r
	}

	return res, mapError(err)
}

// RunOpts are the options of [Client.Run].
type RunOpts struct {
	StreamOpts
	// Name of the container, optional.
	Name string
	// Image is required.
	Image      string
	Cmd        []string
	Env        map[string]string
	Tty        bool
	Pull       bool
	AutoRemove bool
}

// RunResult is the outcome of a container run.
type RunResult struct {
	Result
	ContainerID string
	// ExitCode is the exit code of the container.
	ExitCode int
}

// Run creates a container, attaches to its streams, starts it and demuxes its
// streams until it exits.
//
// Returns [ErrNotValid] if the image is missing.
func (c *Client) Run(ctx context.Context, opts RunOpts) (*RunResult, error) {
	mc, err := c.mobyClient()
	if err != nil {
		return nil, err
	}

	svc, err := apprun.NewService(apprun.ServiceConfig{
		Client:     mc,
		Demuxer:    c.engine,
		Repository: c.repo,
		Logger:     c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	resp, err := svc.Run(ctx, apprun.Request{
		Profile: model.RunProfile{
			Name:       opts.Name,
			Image:      opts.Image,
			Cmd:        opts.Cmd,
			Env:        opts.Env,
			Tty:        opts.Tty,
			OpenStdin:  opts.Stdin != nil,
			Pull:       opts.Pull,
			AutoRemove: opts.AutoRemove,
		},
		Stdin:  opts.Stdin,
		Stdout: opts.Stdout,
		Stderr: opts.Stderr,
	})
	if resp == nil {
		return nil, mapError(err)
	}

	res := &RunResult{ContainerID: resp.ContainerID, ExitCode: resp.ExitCode}
	if r := fromInternalResult(resp.Result); r != nil {
		res.Result = *r
	}

	return res, mapError(err)
}

// DecodeOpts are the options of [Client.Decode].
type DecodeOpts struct {
	// Name identifies the input on the history.
	Name string
	// Raw handles the input as an unframed stream.
	Raw    bool
	Stdout io.Writer
	// Stderr is optional, when nil stderr frames are written on Stdout.
	Stderr io.Writer
}

// Decode decodes a captured multiplexed stream. The input is closed once decoded.
func (c *Client) Decode(ctx context.Context, input io.ReadCloser, opts DecodeOpts) (*Result, error) {
	svc, err := decode.NewService(decode.ServiceConfig{
		Demuxer:    c.engine,
		Repository: c.repo,
		Logger:     c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	resp, err := svc.Run(ctx, decode.Request{
		Name:   opts.Name,
		Input:  input,
		Raw:    opts.Raw,
		Stdout: opts.Stdout,
		Stderr: opts.Stderr,
	})
	if resp == nil {
		return nil, mapError(err)
	}

	return fromInternalResult(resp.Result), mapError(err)
}

// HistoryOpts are the filters of [Client.History].
type HistoryOpts struct {
	// Limit is the maximum number of sessions, 0 returns all.
	Limit int
	// Operation filters by operation (attach, exec, run or decode).
	Operation string
	// State filters by session state.
	State *SessionState
}

// History returns the recorded sessions, newest first.
//
// Returns [ErrNotValid] if the client has no history database.
func (c *Client) History(ctx context.Context, opts *HistoryOpts) ([]Session, error) {
	if c.repo == nil {
		return nil, fmt.Errorf("history is disabled: %w", ErrNotValid)
	}
	if opts == nil {
		opts = &HistoryOpts{}
	}

	svc, err := history.NewService(history.ServiceConfig{
		Repository: c.repo,
		Logger:     c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	req := history.Request{Limit: opts.Limit, Operation: opts.Operation}
	if opts.State != nil {
		s := model.SessionState(*opts.State)
		req.StateFilter = &s
	}

	sessions, err := svc.Run(ctx, req)
	if err != nil {
		return nil, mapError(err)
	}

	return fromInternalSessionList(sessions), nil
}

// GetSession returns a recorded session.
//
// Returns [ErrNotFound] if the session does not exist.
func (c *Client) GetSession(ctx context.Context, id string) (*Session, error) {
	if c.repo == nil {
		return nil, fmt.Errorf("history is disabled: %w", ErrNotValid)
	}

	s, err := c.repo.GetSession(ctx, id)
	if err != nil {
		return nil, mapError(err)
	}

	sess := fromInternalSession(*s)
	return &sess, nil
}

// RemoveSessions removes recorded sessions. Running sessions are only removed with force.
func (c *Client) RemoveSessions(ctx context.Context, ids []string, force bool) error {
	if c.repo == nil {
		return fmt.Errorf("history is disabled: %w", ErrNotValid)
	}

	svc, err := historyremove.NewService(historyremove.ServiceConfig{
		Repository: c.repo,
		Logger:     c.logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	return mapError(svc.Run(ctx, historyremove.Request{IDs: ids, Force: force}))
}
