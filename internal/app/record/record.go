// Package record keeps the session history of the demux use cases.
package record

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/slok/mobydemux/internal/demux"
	"github.com/slok/mobydemux/internal/log"
	"github.com/slok/mobydemux/internal/model"
	"github.com/slok/mobydemux/internal/storage"
)

// Recorder runs demux sessions storing their lifecycle on a session repository.
type Recorder struct {
	repo   storage.SessionRepository
	logger log.Logger
}

// NewRecorder returns a new recorder. The repository is optional, without it sessions
// are run without history.
func NewRecorder(repo storage.SessionRepository, logger log.Logger) Recorder {
	if logger == nil {
		logger = log.Noop
	}
	return Recorder{repo: repo, logger: logger}
}

// Run runs the session storing it as running first and with its outcome once it ends.
// The finish hook (optional) is called after the session ends and before storing the
// final record, it can set extra data like the exit code.
func (r Recorder) Run(ctx context.Context, operation, target string, s *demux.Session, finish func(rec *model.SessionRecord, sessionErr error)) (*demux.Result, model.SessionRecord, error) {
	rec := model.SessionRecord{
		ID:        s.ID(),
		Operation: operation,
		Target:    target,
		Kind:      s.Kind(),
		Mode:      s.Mode(),
		State:     model.SessionStateRunning,
		StartedAt: time.Now().UTC(),
	}

	if r.repo != nil {
		if err := r.repo.CreateSession(ctx, rec); err != nil {
			return nil, rec, fmt.Errorf("could not store session: %w", err)
		}
	}

	res, err := s.Run(ctx)

	end := time.Now().UTC()
	rec.EndedAt = &end
	rec.State = s.State()
	if err != nil {
		rec.Error = err.Error()
	}
	if res != nil {
		rec.DroppedFrames = res.DroppedFrames
		if res.Stdin != nil {
			rec.StdinBytes = res.Stdin.Bytes
		}
		if res.Stdout != nil {
			rec.StdoutBytes = res.Stdout.Bytes
		}
		if res.Stderr != nil {
			rec.StderrBytes = res.Stderr.Bytes
		}
	}
	if finish != nil {
		finish(&rec, err)
	}

	if r.repo != nil {
		// The session context may be cancelled already.
		if uerr := r.repo.UpdateSession(context.WithoutCancel(ctx), rec); uerr != nil {
			r.logger.Errorf("Could not store session %s outcome: %s", rec.ID, uerr)
			if err == nil {
				err = fmt.Errorf("could not store session: %w", uerr)
			}
		}
	}

	return res, rec, err
}

// IsCancelled returns true if the error is the result of the session cancellation.
func IsCancelled(err error) bool { return errors.Is(err, model.ErrCancelled) }
