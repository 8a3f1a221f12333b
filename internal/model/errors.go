package model

import "errors"

var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a resource already exists.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotValid is returned when a resource is not valid.
	ErrNotValid = errors.New("not valid")
)

// Stream demultiplexing errors.
var (
	// ErrClassification is returned when a hijacked response can't be tagged as raw or multiplexed.
	ErrClassification = errors.New("unknown stream content type")
	// ErrTruncatedFrame is returned when a multiplexed stream ends in the middle of a frame.
	ErrTruncatedFrame = errors.New("truncated frame")
	// ErrTransport is returned when the underlying connection fails.
	ErrTransport = errors.New("transport failure")
	// ErrSink is returned when a sink fails consuming demuxed data.
	ErrSink = errors.New("sink failure")
	// ErrSource is returned when a source fails producing input data.
	ErrSource = errors.New("source failure")
	// ErrCancelled is returned when a session is cancelled by its caller.
	ErrCancelled = errors.New("cancelled")

	// ErrStdinUnavailable is returned when the local stdin can't be used as a source.
	ErrStdinUnavailable = errors.New("stdin unavailable")
	// ErrStdoutUnavailable is returned when the local stdout can't be used as a sink.
	ErrStdoutUnavailable = errors.New("stdout unavailable")
	// ErrStderrUnavailable is returned when the local stderr can't be used as a sink.
	ErrStderrUnavailable = errors.New("stderr unavailable")
)
