// Package log provides the logging interface for the mobydemux SDK.
//
// The SDK is silent by default. Pass a [Logger] in the client config to see what the
// demux sessions do (session IDs, stream kinds, dropped frames, engine calls).
//
// Applications already using logrus can adapt their logger with [NewLogrus]:
//
//	logger := logrus.New()
//	logger.SetLevel(logrus.DebugLevel)
//	client, err := lib.New(ctx, lib.Config{Logger: log.NewLogrus(logger)})
//
// Any other logger can be used by implementing [Logger].
package log

import (
	"github.com/sirupsen/logrus"

	"github.com/slok/mobydemux/internal/log"
	intlogrus "github.com/slok/mobydemux/internal/log/logrus"
)

// Logger is the interface that loggers must implement for the SDK.
//
// Structured values are passed with [Kv] through WithValues, the format methods
// (Infof, Warningf, Errorf, Debugf) do the actual logging.
type Logger = log.Logger

// Kv is a helper type for structured logging key-value pairs.
type Kv = log.Kv

// Noop is a logger that discards all log output.
var Noop = log.Noop

// NewLogrus returns a Logger that writes on a logrus logger, using its level and formatter.
func NewLogrus(l *logrus.Logger) Logger {
	if l == nil {
		return Noop
	}
	return intlogrus.NewLogrus(logrus.NewEntry(l))
}
