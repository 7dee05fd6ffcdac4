package migrations

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func TestUpSQLite(t *testing.T) {
	db, err := sql.Open("sqlite", "file:migrations_test?mode=memory&cache=shared")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, Up(ctx, db, SQLite))
	// idempotent
	require.NoError(t, Up(ctx, db, SQLite))

	v, err := Version(ctx, db, SQLite)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	_, err = db.ExecContext(ctx, `INSERT INTO leaderboard (pseudo, score) VALUES ('alice', 10)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO leaderboard (pseudo, score) VALUES ('alice', 20)`)
	assert.Error(t, err, "pseudo must be unique")
	_, err = db.ExecContext(ctx, `INSERT INTO leaderboard (pseudo, score) VALUES ('bob', -1)`)
	assert.Error(t, err, "negative scores are rejected by the schema")
}

func TestUnknownDialect(t *testing.T) {
	assert.Error(t, Up(context.Background(), nil, Dialect("oracle")))
}
