package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openSQLite(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := Connect(Config{
		Driver:   DriverSQLite,
		DSN:      "file:" + filepath.Join(t.TempDir(), "db.sqlite") + "?_pragma=foreign_keys(1)",
		MaxConns: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, ExecDDL(context.Background(), db,
		`CREATE TABLE parent (id TEXT PRIMARY KEY, created_at TIMESTAMPTZ, doc JSONB)`,
		`CREATE TABLE child (id TEXT PRIMARY KEY, parent_id TEXT NOT NULL REFERENCES parent(id))`,
	))
	return db
}

func TestAdaptDDL(t *testing.T) {
	ddl := `CREATE TABLE t (a TIMESTAMPTZ, b JSONB, c BYTEA)`
	assert.Equal(t, `CREATE TABLE t (a TIMESTAMP, b TEXT, c BLOB)`, AdaptDDL(DriverSQLite, ddl))
	assert.Equal(t, ddl, AdaptDDL(DriverPostgres, ddl))
}

func TestConnect_UnsupportedDriver(t *testing.T) {
	_, err := Connect(Config{Driver: "mysql"})
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestQuoteLiteral(t *testing.T) {
	assert.Equal(t, `'Europe/Kyiv'`, quoteLiteral("Europe/Kyiv"))
	assert.Equal(t, `'it''s'`, quoteLiteral("it's"))
}

func count(t *testing.T, db *sqlx.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.Get(&n, `SELECT count(*) FROM parent`))
	return n
}

func TestTransact(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)

	require.NoError(t, Transact(ctx, db, func(tx *sqlx.Tx) error {
		_, err := tx.Exec(`INSERT INTO parent (id) VALUES ('a')`)
		return err
	}))
	assert.Equal(t, 1, count(t, db))

	boom := errors.New("boom")
	err := Transact(ctx, db, func(tx *sqlx.Tx) error {
		if _, err := tx.Exec(`INSERT INTO parent (id) VALUES ('b')`); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, count(t, db))

	assert.Panics(t, func() {
		_ = Transact(ctx, db, func(tx *sqlx.Tx) error {
			_, _ = tx.Exec(`INSERT INTO parent (id) VALUES ('c')`)
			panic("kaboom")
		})
	})
	assert.Equal(t, 1, count(t, db))
}

func TestConstraintErrors(t *testing.T) {
	db := openSQLite(t)
	_, err := db.Exec(`INSERT INTO parent (id) VALUES ('a')`)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO parent (id) VALUES ('a')`)
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
	assert.False(t, IsForeignKeyViolation(err))

	_, err = db.Exec(`INSERT INTO child (id, parent_id) VALUES ('x', 'missing')`)
	require.Error(t, err)
	assert.True(t, IsForeignKeyViolation(err))
	assert.False(t, IsUniqueViolation(err))

	assert.False(t, IsUniqueViolation(nil))
	assert.False(t, IsUniqueViolation(errors.New("UNIQUE constraint failed")))
}
