package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// sqlite only parses time columns declared as DATE, DATETIME or TIMESTAMP.
var sqliteTypes = strings.NewReplacer(
	"TIMESTAMPTZ", "TIMESTAMP",
	"JSONB", "TEXT",
	"BYTEA", "BLOB",
)

// AdaptDDL rewrites postgres column types for the given driver.
func AdaptDDL(driver, ddl string) string {
	if driver == DriverSQLite {
		return sqliteTypes.Replace(ddl)
	}
	return ddl
}

// ExecDDL runs each statement in order, adapting it to the connection's driver.
func ExecDDL(ctx context.Context, db *sqlx.DB, statements ...string) error {
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, AdaptDDL(db.DriverName(), stmt)); err != nil {
			return fmt.Errorf("exec ddl: %w", err)
		}
	}
	return nil
}
