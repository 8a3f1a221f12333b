package history

import (
	"context"
	"fmt"

	"github.com/slok/mobydemux/internal/log"
	"github.com/slok/mobydemux/internal/model"
	"github.com/slok/mobydemux/internal/storage"
)

// ServiceConfig is the configuration for the history service.
type ServiceConfig struct {
	Repository storage.SessionRepository
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// Service lists the demux session history.
type Service struct {
	repo   storage.SessionRepository
	logger log.Logger
}

// NewService creates a new history service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:   cfg.Repository,
		logger: cfg.Logger,
	}, nil
}

// Request represents the history request parameters.
type Request struct {
	// ID returns a single session when set.
	ID string
	// Limit is the maximum number of sessions returned, 0 means all.
	Limit int
	// Operation is an optional filter (attach, exec, run or decode).
	Operation string
	// StateFilter is an optional filter to only show sessions in this state.
	StateFilter *model.SessionState
}

// Run returns the sessions newest first.
func (s *Service) Run(ctx context.Context, req Request) ([]model.SessionRecord, error) {
	if req.Limit < 0 {
		return nil, fmt.Errorf("limit can't be negative: %w", model.ErrNotValid)
	}

	if req.ID != "" {
		rec, err := s.repo.GetSession(ctx, req.ID)
		if err != nil {
			return nil, fmt.Errorf("could not get session: %w", err)
		}
		return []model.SessionRecord{*rec}, nil
	}

	s.logger.Debugf("listing sessions with filters (operation: %q, state: %v)", req.Operation, req.StateFilter)

	// The state filter is applied after listing, the limit too in that case.
	limit := req.Limit
	if req.StateFilter != nil {
		limit = 0
	}

	sessions, err := s.repo.ListSessions(ctx, storage.ListSessionsOpts{Limit: limit, Operation: req.Operation})
	if err != nil {
		return nil, fmt.Errorf("could not list sessions: %w", err)
	}

	if req.StateFilter == nil {
		return sessions, nil
	}

	filtered := []model.SessionRecord{}
	for _, rec := range sessions {
		if rec.State != *req.StateFilter {
			continue
		}
		filtered = append(filtered, rec)
		if req.Limit > 0 && len(filtered) == req.Limit {
			break
		}
	}

	return filtered, nil
}
