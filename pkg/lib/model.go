package lib

import (
	"errors"
	"time"

	"github.com/slok/mobydemux/internal/demux"
	"github.com/slok/mobydemux/internal/model"
)

var (
	// ErrNotFound is returned when a container, exec or session does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a session with the same ID already exists.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotValid is returned on invalid input or operations.
	ErrNotValid = errors.New("not valid")
	// ErrClassification is returned when a stream content type is unknown.
	ErrClassification = errors.New("unknown stream content type")
	// ErrTruncatedFrame is returned when a multiplexed stream ends in the middle of a frame.
	ErrTruncatedFrame = errors.New("truncated frame")
	// ErrTransport is returned when the connection fails.
	ErrTransport = errors.New("transport failure")
	// ErrSink is returned when an output sink fails.
	ErrSink = errors.New("sink failure")
	// ErrSource is returned when the input source fails.
	ErrSource = errors.New("source failure")
	// ErrCancelled is returned when a session is cancelled by its context.
	ErrCancelled = errors.New("cancelled")
	// ErrStdinUnavailable is returned when the process stdin can't be used as input.
	ErrStdinUnavailable = errors.New("stdin unavailable")
	// ErrStdoutUnavailable is returned when the process stdout can't be used as output.
	ErrStdoutUnavailable = errors.New("stdout unavailable")
	// ErrStderrUnavailable is returned when the process stderr can't be used as output.
	ErrStderrUnavailable = errors.New("stderr unavailable")
)

// Content types of the hijacked streams.
const (
	ContentTypeRaw         = demux.ContentTypeRaw
	ContentTypeMultiplexed = demux.ContentTypeMultiplexed
)

// Socket is a classified hijacked connection. Create it with [Classify],
// [ClassifyHeader] or [ClassifyDirected].
type Socket = demux.Socket

// Conn is the duplex connection obtained after hijacking an HTTP connection.
type Conn = demux.Conn

// SplitSockets are independent raw sockets, one per standard stream (e.g websocket attach).
type SplitSockets = demux.SplitSockets

// FanOut exposes the channels of a multiplexed socket as independent streams.
type FanOut = demux.FanOut

// Frame is a decoded chunk of a multiplexed stream.
type Frame = demux.Frame

// Channel identifies a standard stream.
type Channel = model.Channel

const (
	ChannelStdin  = model.ChannelStdin
	ChannelStdout = model.ChannelStdout
	ChannelStderr = model.ChannelStderr
)

// Direction tells if a socket can be written.
type Direction = demux.Direction

const (
	Bidirectional  = demux.Bidirectional
	Unidirectional = demux.Unidirectional
)

// SessionState represents the lifecycle state of a demux session.
//
// The lifecycle is:
//
//	idle -> running -> completed | failed | cancelled
type SessionState string

const (
	SessionStateRunning   SessionState = "running"
	SessionStateCompleted SessionState = "completed"
	SessionStateFailed    SessionState = "failed"
	SessionStateCancelled SessionState = "cancelled"
)

// Result is the outcome of a demux session.
type Result struct {
	// SessionID is the unique identifier (ULID) of the session.
	SessionID string
	// Kind is the stream kind (raw, multiplexed or split).
	Kind string
	// Mode is how the output was delivered (single-sink or separate-sinks).
	Mode string
	// StdinBytes are the bytes written from the source into the connection.
	StdinBytes int64
	// StdoutBytes are the stdout bytes delivered. Raw streams account all their data here.
	StdoutBytes int64
	// StderrBytes are the stderr bytes delivered.
	StderrBytes int64
	// DroppedFrames are the multiplexed frames with unknown channels that were discarded.
	DroppedFrames int64
}

// Session is a recorded demux session.
type Session struct {
	ID string
	// Operation is attach, exec, run or decode.
	Operation string
	// Target is the container or exec ID, the input name for decode.
	Target string
	Kind   string
	Mode   string
	State  SessionState
	// Error is the session failure message, if any.
	Error         string
	StdinBytes    int64
	StdoutBytes   int64
	StderrBytes   int64
	DroppedFrames int64
	// ExitCode of the process. Nil when unknown.
	ExitCode  *int
	StartedAt time.Time
	// EndedAt is nil while the session is running.
	EndedAt *time.Time
}

func fromInternalResult(r *demux.Result) *Result {
	if r == nil {
		return nil
	}

	res := &Result{
		SessionID:     r.SessionID,
		Kind:          string(r.Kind),
		Mode:          string(r.Mode),
		DroppedFrames: r.DroppedFrames,
	}
	if r.Stdin != nil {
		res.StdinBytes = r.Stdin.Bytes
	}
	if r.Stdout != nil {
		res.StdoutBytes = r.Stdout.Bytes
	}
	if r.Stderr != nil {
		res.StderrBytes = r.Stderr.Bytes
	}

	return res
}

func fromInternalSession(s model.SessionRecord) Session {
	return Session{
		ID:            s.ID,
		Operation:     s.Operation,
		Target:        s.Target,
		Kind:          string(s.Kind),
		Mode:          string(s.Mode),
		State:         SessionState(s.State),
		Error:         s.Error,
		StdinBytes:    s.StdinBytes,
		StdoutBytes:   s.StdoutBytes,
		StderrBytes:   s.StderrBytes,
		DroppedFrames: s.DroppedFrames,
		ExitCode:      s.ExitCode,
		StartedAt:     s.StartedAt,
		EndedAt:       s.EndedAt,
	}
}

func fromInternalSessionList(ss []model.SessionRecord) []Session {
	result := make([]Session, len(ss))
	for i, s := range ss {
		result[i] = fromInternalSession(s)
	}
	return result
}

var errorMappings = []struct {
	internal error
	public   error
}{
	{model.ErrNotFound, ErrNotFound},
	{model.ErrAlreadyExists, ErrAlreadyExists},
	{model.ErrNotValid, ErrNotValid},
	{model.ErrClassification, ErrClassification},
	{model.ErrTruncatedFrame, ErrTruncatedFrame},
	{model.ErrTransport, ErrTransport},
	{model.ErrSink, ErrSink},
	{model.ErrSource, ErrSource},
	{model.ErrCancelled, ErrCancelled},
	{model.ErrStdinUnavailable, ErrStdinUnavailable},
	{model.ErrStdoutUnavailable, ErrStdoutUnavailable},
	{model.ErrStderrUnavailable, ErrStderrUnavailable},
}

func mapError(err error) error {
	if err == nil {
		return nil
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.internal) {
			return joinErrors(err, m.public)
		}
	}

	return err
}

func joinErrors(original, sentinel error) error {
	return &mappedError{original: original, sentinel: sentinel}
}

type mappedError struct {
	original error
	sentinel error
}

func (e *mappedError) Error() string { return e.original.Error() }

func (e *mappedError) Is(target error) bool {
	return target == e.sentinel
}

func (e *mappedError) Unwrap() error { return e.original }
