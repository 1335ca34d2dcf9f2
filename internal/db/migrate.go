package db

import (
	"context"
	"database/sql"

	_ "embed"
)

//go:embed schema.sql
var schemaSQL string

// Migrate applies the report-store schema to the given database.  Every
// statement in schema.sql is idempotent, so this is safe to run on each
// startup and via the explicit migrate command.
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schemaSQL)
	return err
}
