package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/mobydemux/internal/log"
	"github.com/slok/mobydemux/internal/storage"
	"github.com/slok/mobydemux/internal/storage/sqlite"
	"github.com/slok/mobydemux/internal/storage/storagetest"
)

func newRepo(t *testing.T) *sqlite.Repository {
	t.Helper()
	repo, err := sqlite.NewRepository(context.Background(), sqlite.RepositoryConfig{
		DBPath: filepath.Join(t.TempDir(), "test.db"),
		Logger: log.Noop,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestRepository(t *testing.T) {
	storagetest.TestSessionRepository(t, func(t *testing.T) storage.SessionRepository { return newRepo(t) })
}

func TestNewRepositoryRequiresPath(t *testing.T) {
	_, err := sqlite.NewRepository(context.Background(), sqlite.RepositoryConfig{})
	assert.Error(t, err)
}

func TestRepositoryPersistsAcrossReopen(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	path := filepath.Join(t.TempDir(), "nested", "test.db")
	repo, err := sqlite.NewRepository(context.Background(), sqlite.RepositoryConfig{DBPath: path})
	require.NoError(err)
	s := storagetest.SessionFixture("s1", time.Now())
	require.NoError(repo.CreateSession(context.Background(), s))
	require.NoError(repo.Close())

	// Migrations must be idempotent.
	repo, err = sqlite.NewRepository(context.Background(), sqlite.RepositoryConfig{DBPath: path})
	require.NoError(err)
	defer repo.Close()

	got, err := repo.GetSession(context.Background(), "s1")
	require.NoError(err)
	assert.Equal(s, *got)
}
