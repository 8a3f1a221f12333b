package model

import (
	"fmt"
	"time"
)

// StreamKind is the framing of a hijacked connection.
type StreamKind string

const (
	// StreamKindRaw is an unframed stream (TTY sessions), stdout and stderr combined.
	StreamKindRaw StreamKind = "raw"
	// StreamKindMultiplexed is a framed stream carrying stdin, stdout and stderr.
	StreamKindMultiplexed StreamKind = "multiplexed"
	// StreamKindSplit are independent raw sockets, one per standard stream.
	StreamKindSplit StreamKind = "split"
)

// SessionMode is how demuxed output is delivered.
type SessionMode string

const (
	// SessionModeSingleSink delivers all the output to a single sink.
	SessionModeSingleSink SessionMode = "single-sink"
	// SessionModeSeparateSinks delivers stdout and stderr to different sinks.
	SessionModeSeparateSinks SessionMode = "separate-sinks"
)

// SessionState is the lifecycle state of a demux session.
type SessionState string

const (
	SessionStateIdle      SessionState = "idle"
	SessionStateRunning   SessionState = "running"
	SessionStateCompleted SessionState = "completed"
	SessionStateFailed    SessionState = "failed"
	SessionStateCancelled SessionState = "cancelled"
)

// Terminal returns true when the state can't change anymore.
func (s SessionState) Terminal() bool {
	switch s {
	case SessionStateCompleted, SessionStateFailed, SessionStateCancelled:
		return true
	default:
		return false
	}
}

// SessionRecord is the persisted summary of a demux session.
type SessionRecord struct {
	ID            string
	Operation     string // attach, exec, run, decode.
	Target        string // Container or exec ID, file path for decode.
	Kind          StreamKind
	Mode          SessionMode
	State         SessionState
	Error         string
	StdinBytes    int64
	StdoutBytes   int64
	StderrBytes   int64
	DroppedFrames int64
	ExitCode      *int
	StartedAt     time.Time
	EndedAt       *time.Time
}

// Validate validates the session record.
func (r *SessionRecord) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("id is required: %w", ErrNotValid)
	}
	if r.Operation == "" {
		return fmt.Errorf("operation is required: %w", ErrNotValid)
	}

	switch r.Kind {
	case StreamKindRaw, StreamKindMultiplexed, StreamKindSplit:
	default:
		return fmt.Errorf("unknown stream kind %q: %w", r.Kind, ErrNotValid)
	}

	switch r.State {
	case SessionStateIdle, SessionStateRunning, SessionStateCompleted, SessionStateFailed, SessionStateCancelled:
	default:
		return fmt.Errorf("unknown session state %q: %w", r.State, ErrNotValid)
	}

	if r.State.Terminal() && r.EndedAt == nil {
		return fmt.Errorf("terminal session requires an end time: %w", ErrNotValid)
	}

	return nil
}
