package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/slok/mobydemux/internal/log"
	"github.com/slok/mobydemux/internal/model"
	"github.com/slok/mobydemux/internal/storage"
)

// RepositoryConfig is the configuration for the memory repository.
type RepositoryConfig struct {
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.Memory"})
	return nil
}

// Repository is an in-memory implementation of storage.SessionRepository.
type Repository struct {
	sessions map[string]model.SessionRecord
	mu       sync.RWMutex
	logger   log.Logger
}

var _ storage.SessionRepository = &Repository{}

// NewRepository creates a new memory repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Repository{
		sessions: make(map[string]model.SessionRecord),
		logger:   cfg.Logger,
	}, nil
}

// CreateSession stores a new session record.
func (r *Repository) CreateSession(ctx context.Context, s model.SessionRecord) error {
	if err := s.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[s.ID]; ok {
		return fmt.Errorf("session %s: %w", s.ID, model.ErrAlreadyExists)
	}

	r.sessions[s.ID] = copyRecord(s)
	r.logger.Debugf("Created session in repository: %s", s.ID)

	return nil
}

// UpdateSession replaces an existing session record.
func (r *Repository) UpdateSession(ctx context.Context, s model.SessionRecord) error {
	if err := s.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[s.ID]; !ok {
		return fmt.Errorf("session %s: %w", s.ID, model.ErrNotFound)
	}

	r.sessions[s.ID] = copyRecord(s)
	r.logger.Debugf("Updated session in repository: %s", s.ID)

	return nil
}

// GetSession retrieves a session by ID.
func (r *Repository) GetSession(ctx context.Context, id string) (*model.SessionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, model.ErrNotFound)
	}

	s = copyRecord(s)
	return &s, nil
}

// ListSessions returns the sessions newest first.
func (r *Repository) ListSessions(ctx context.Context, opts storage.ListSessionsOpts) ([]model.SessionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]model.SessionRecord, 0, len(r.sessions))
	for _, s := range r.sessions {
		if opts.Operation != "" && s.Operation != opts.Operation {
			continue
		}
		sessions = append(sessions, copyRecord(s))
	}

	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].StartedAt.Equal(sessions[j].StartedAt) {
			return sessions[i].StartedAt.After(sessions[j].StartedAt)
		}
		return sessions[i].ID > sessions[j].ID
	})

	if opts.Limit > 0 && len(sessions) > opts.Limit {
		sessions = sessions[:opts.Limit]
	}

	return sessions, nil
}

// DeleteSession deletes a session.
func (r *Repository) DeleteSession(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return fmt.Errorf("session %s: %w", id, model.ErrNotFound)
	}

	delete(r.sessions, id)
	r.logger.Debugf("Deleted session from repository: %s", id)

	return nil
}

// copyRecord copies the record pointers so stored records can't be mutated from outside.
func copyRecord(s model.SessionRecord) model.SessionRecord {
	if s.ExitCode != nil {
		c := *s.ExitCode
		s.ExitCode = &c
	}
	if s.EndedAt != nil {
		t := *s.EndedAt
		s.EndedAt = &t
	}
	return s
}
