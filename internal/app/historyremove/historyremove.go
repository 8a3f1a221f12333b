package historyremove

import (
	"context"
	"fmt"

	"github.com/slok/mobydemux/internal/log"
	"github.com/slok/mobydemux/internal/model"
	"github.com/slok/mobydemux/internal/storage"
)

// ServiceConfig is the configuration for the history remove service.
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
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.HistoryRemove"})
	return nil
}

// Service removes sessions from the history.
type Service struct {
	repo   storage.SessionRepository
	logger log.Logger
}

// NewService creates a new history remove service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:   cfg.Repository,
		logger: cfg.Logger,
	}, nil
}

// Request contains the sessions to remove.
type Request struct {
	IDs []string
	// Force allows removing running sessions.
	Force bool
}

// Run removes the sessions, it stops on the first failure.
func (s *Service) Run(ctx context.Context, req Request) error {
	if len(req.IDs) == 0 {
		return fmt.Errorf("at least one session id is required: %w", model.ErrNotValid)
	}

	for _, id := range req.IDs {
		rec, err := s.repo.GetSession(ctx, id)
		if err != nil {
			return fmt.Errorf("could not get session: %w", err)
		}

		if !rec.State.Terminal() && !req.Force {
			return fmt.Errorf("session %s is %s, use force to remove it: %w", id, rec.State, model.ErrNotValid)
		}

		if err := s.repo.DeleteSession(ctx, id); err != nil {
			return fmt.Errorf("could not remove session: %w", err)
		}
		s.logger.Infof("Removed session %s", id)
	}

	return nil
}
