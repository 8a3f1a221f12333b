// Package storagetest has the shared behavior tests of the session repositories.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/mobydemux/internal/model"
	"github.com/slok/mobydemux/internal/storage"
)

// SessionFixture returns a valid running session record.
func SessionFixture(id string, startedAt time.Time) model.SessionRecord {
	return model.SessionRecord{
		ID:        id,
		Operation: "attach",
		Target:    "container-1",
		Kind:      model.StreamKindMultiplexed,
		Mode:      model.SessionModeSeparateSinks,
		State:     model.SessionStateRunning,
		StartedAt: startedAt.UTC(),
	}
}

// TestSessionRepository runs the common behavior tests on the repositories returned by newRepo.
func TestSessionRepository(t *testing.T, newRepo func(t *testing.T) storage.SessionRepository) {
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	t.Run("Creating and getting a session should return the same record.", func(t *testing.T) {
		assert := assert.New(t)
		require := require.New(t)
		repo := newRepo(t)

		exp := SessionFixture("s1", base)
		require.NoError(repo.CreateSession(context.Background(), exp))

		got, err := repo.GetSession(context.Background(), "s1")
		require.NoError(err)
		assert.Equal(exp, *got)
	})

	t.Run("Creating an existing session should fail.", func(t *testing.T) {
		repo := newRepo(t)

		require.NoError(t, repo.CreateSession(context.Background(), SessionFixture("s1", base)))
		err := repo.CreateSession(context.Background(), SessionFixture("s1", base))
		assert.ErrorIs(t, err, model.ErrAlreadyExists)
	})

	t.Run("Creating an invalid session should fail.", func(t *testing.T) {
		repo := newRepo(t)

		s := SessionFixture("s1", base)
		s.State = model.SessionStateCompleted
		err := repo.CreateSession(context.Background(), s)
		assert.ErrorIs(t, err, model.ErrNotValid)
	})

	t.Run("Getting a missing session should fail.", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.GetSession(context.Background(), "missing")
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("Updating a session should store the final state.", func(t *testing.T) {
		assert := assert.New(t)
		require := require.New(t)
		repo := newRepo(t)

		s := SessionFixture("s1", base)
		require.NoError(repo.CreateSession(context.Background(), s))

		ended := base.Add(3 * time.Second)
		code := 2
		s.State = model.SessionStateFailed
		s.Error = "stderr channel: sink failure"
		s.StdinBytes, s.StdoutBytes, s.StderrBytes, s.DroppedFrames = 1, 2, 3, 4
		s.ExitCode = &code
		s.EndedAt = &ended
		require.NoError(repo.UpdateSession(context.Background(), s))

		got, err := repo.GetSession(context.Background(), "s1")
		require.NoError(err)
		assert.Equal(s, *got)
	})

	t.Run("Updating a missing session should fail.", func(t *testing.T) {
		repo := newRepo(t)

		err := repo.UpdateSession(context.Background(), SessionFixture("missing", base))
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("Listing sessions should return them newest first.", func(t *testing.T) {
		assert := assert.New(t)
		require := require.New(t)
		repo := newRepo(t)

		for i, id := range []string{"s1", "s2", "s3"} {
			s := SessionFixture(id, base.Add(time.Duration(i)*time.Minute))
			if id == "s2" {
				s.Operation = "exec"
			}
			require.NoError(repo.CreateSession(context.Background(), s))
		}

		ids := func(ss []model.SessionRecord) []string {
			res := []string{}
			for _, s := range ss {
				res = append(res, s.ID)
			}
			return res
		}

		got, err := repo.ListSessions(context.Background(), storage.ListSessionsOpts{})
		require.NoError(err)
		assert.Equal([]string{"s3", "s2", "s1"}, ids(got))

		got, err = repo.ListSessions(context.Background(), storage.ListSessionsOpts{Limit: 2})
		require.NoError(err)
		assert.Equal([]string{"s3", "s2"}, ids(got))

		got, err = repo.ListSessions(context.Background(), storage.ListSessionsOpts{Operation: "exec"})
		require.NoError(err)
		assert.Equal([]string{"s2"}, ids(got))
	})

	t.Run("Listing without sessions should return an empty list.", func(t *testing.T) {
		got, err := newRepo(t).ListSessions(context.Background(), storage.ListSessionsOpts{})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("Deleting a session should remove it.", func(t *testing.T) {
		repo := newRepo(t)

		require.NoError(t, repo.CreateSession(context.Background(), SessionFixture("s1", base)))
		require.NoError(t, repo.DeleteSession(context.Background(), "s1"))

		_, err := repo.GetSession(context.Background(), "s1")
		assert.ErrorIs(t, err, model.ErrNotFound)
		assert.ErrorIs(t, repo.DeleteSession(context.Background(), "s1"), model.ErrNotFound)
	})
}
