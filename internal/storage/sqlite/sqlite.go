package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/slok/mobydemux/internal/log"
	"github.com/slok/mobydemux/internal/model"
	"github.com/slok/mobydemux/internal/storage"
	"github.com/slok/mobydemux/internal/storage/sqlite/migrations"
)

// RepositoryConfig is the configuration for the SQLite repository.
type RepositoryConfig struct {
	DBPath string
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.SQLite"})
	return nil
}

// Repository is a SQLite implementation of storage.SessionRepository.
type Repository struct {
	db     *sql.DB
	logger log.Logger
}

var _ storage.SessionRepository = &Repository{}

// NewRepository creates a new SQLite repository.
func NewRepository(ctx context.Context, cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	dir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("could not create db directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", cfg.DBPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	if _, err := migrations.Apply(db, cfg.Logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not run migrations: %w", err)
	}

	cfg.Logger.Debugf("SQLite repository initialized at %s", cfg.DBPath)

	return &Repository{db: db, logger: cfg.Logger}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error { return r.db.Close() }

const sessionColumns = `
	id, operation, target,
	kind, mode, state, error,
	stdin_bytes, stdout_bytes, stderr_bytes, dropped_frames,
	exit_code, started_at, ended_at
`

// CreateSession stores a new session record.
func (r *Repository) CreateSession(ctx context.Context, s model.SessionRecord) error {
	if err := s.Validate(); err != nil {
		return err
	}

	query := `INSERT INTO sessions (` + sessionColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query, sessionArgs(s)...)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: sessions.") {
			return fmt.Errorf("session %s: %w", s.ID, model.ErrAlreadyExists)
		}
		return fmt.Errorf("could not insert session: %w", err)
	}

	r.logger.Debugf("Created session in repository: %s", s.ID)
	return nil
}

// UpdateSession replaces an existing session record.
func (r *Repository) UpdateSession(ctx context.Context, s model.SessionRecord) error {
	if err := s.Validate(); err != nil {
		return err
	}

	query := `
		UPDATE sessions
		SET
			operation = ?,
			target = ?,
			kind = ?,
			mode = ?,
			state = ?,
			error = ?,
			stdin_bytes = ?,
			stdout_bytes = ?,
			stderr_bytes = ?,
			dropped_frames = ?,
			exit_code = ?,
			started_at = ?,
			ended_at = ?
		WHERE id = ?
	`

	args := append(sessionArgs(s)[1:], s.ID)
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("could not update session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("session %s: %w", s.ID, model.ErrNotFound)
	}

	r.logger.Debugf("Updated session in repository: %s", s.ID)
	return nil
}

// GetSession retrieves a session by ID.
func (r *Repository) GetSession(ctx context.Context, id string) (*model.SessionRecord, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = ?`

	s, err := scanRow(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session %s: %w", id, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not query session: %w", err)
	}

	return &s, nil
}

// ListSessions returns the sessions newest first.
func (r *Repository) ListSessions(ctx context.Context, opts storage.ListSessionsOpts) ([]model.SessionRecord, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions`
	args := []any{}
	if opts.Operation != "" {
		query += ` WHERE operation = ?`
		args = append(args, opts.Operation)
	}
	// Same second sessions are sorted by their ULID.
	query += ` ORDER BY started_at DESC, id DESC`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("could not query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []model.SessionRecord{}
	for rows.Next() {
		s, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan row: %w", err)
		}
		sessions = append(sessions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return sessions, nil
}

// DeleteSession deletes a session.
func (r *Repository) DeleteSession(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("could not delete session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("session %s: %w", id, model.ErrNotFound)
	}

	r.logger.Debugf("Deleted session from repository: %s", id)
	return nil
}

func sessionArgs(s model.SessionRecord) []any {
	var exitCode, endedAt *int64
	if s.ExitCode != nil {
		c := int64(*s.ExitCode)
		exitCode = &c
	}
	if s.EndedAt != nil {
		u := s.EndedAt.UnixNano()
		endedAt = &u
	}

	return []any{
		s.ID,
		s.Operation,
		s.Target,
		s.Kind,
		s.Mode,
		s.State,
		s.Error,
		s.StdinBytes,
		s.StdoutBytes,
		s.StderrBytes,
		s.DroppedFrames,
		exitCode,
		s.StartedAt.UnixNano(),
		endedAt,
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRow(s scanner) (model.SessionRecord, error) {
	var rec model.SessionRecord
	var exitCode, endedAt sql.NullInt64
	var startedAt int64

	err := s.Scan(
		&rec.ID,
		&rec.Operation,
		&rec.Target,
		&rec.Kind,
		&rec.Mode,
		&rec.State,
		&rec.Error,
		&rec.StdinBytes,
		&rec.StdoutBytes,
		&rec.StderrBytes,
		&rec.DroppedFrames,
		&exitCode,
		&startedAt,
		&endedAt,
	)
	if err != nil {
		return model.SessionRecord{}, err
	}

	rec.StartedAt = time.Unix(0, startedAt).UTC()
	if exitCode.Valid {
		c := int(exitCode.Int64)
		rec.ExitCode = &c
	}
	if endedAt.Valid {
		t := time.Unix(0, endedAt.Int64).UTC()
		rec.EndedAt = &t
	}

	return rec, nil
}
