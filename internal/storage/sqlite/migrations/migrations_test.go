package migrations_test

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/slok/mobydemux/internal/model"
	"github.com/slok/mobydemux/internal/storage/sqlite/migrations"
)

func TestApply(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(err)
	defer db.Close()

	version, err := migrations.Apply(db, nil)
	require.NoError(err)
	assert.Equal(uint(1), version)

	// Applying again is a no-op.
	version, err = migrations.Apply(db, nil)
	require.NoError(err)
	assert.Equal(uint(1), version)

	_, err = db.Exec(`INSERT INTO sessions (id, operation, kind, state, started_at) VALUES ('a', 'exec', 'raw', 'running', 1)`)
	assert.NoError(err)
}

func TestApplyWithoutDB(t *testing.T) {
	_, err := migrations.Apply(nil, nil)
	assert.ErrorIs(t, err, model.ErrNotValid)
}
