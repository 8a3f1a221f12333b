package storage

import (
	"context"

	"github.com/slok/mobydemux/internal/model"
)

// SessionRepository is the interface for demux session history persistence.
type SessionRepository interface {
	CreateSession(ctx context.Context, r model.SessionRecord) error
	UpdateSession(ctx context.Context, r model.SessionRecord) error
	GetSession(ctx context.Context, id string) (*model.SessionRecord, error)
	// ListSessions returns the sessions newest first, a limit lower than 1 returns all of them.
	ListSessions(ctx context.Context, opts ListSessionsOpts) ([]model.SessionRecord, error)
	DeleteSession(ctx context.Context, id string) error
}

// ListSessionsOpts are the filters of a session listing.
type ListSessionsOpts struct {
	Limit int
	// Operation filters by operation when set.
	Operation string
}
