// Package testutil provides a migrated throwaway database for tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-identity/internal/schema"
	"github.com/ovaphlow/pitchfork/service-identity/pkg/database"
)

// NewDB opens a sqlite database in a temp dir and creates every table.
func NewDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "identity.db") + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := database.Connect(database.Config{Driver: database.DriverSQLite, DSN: dsn, MaxConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, schema.Migrate(context.Background(), db))
	return db
}

// Logger returns a logger that discards output.
func Logger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
