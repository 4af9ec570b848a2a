// Package migrations owns the document tables. Each collection is a table
// of (seq, id, version, data JSONB) rows; seq preserves insertion order.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed *.sql
var sqlFiles embed.FS

// Run applies all pending migrations against db.
func Run(db *sql.DB) error {
	_, err := Up(context.Background(), db)
	return err
}

// Up applies pending migrations and reports the resulting schema version.
func Up(ctx context.Context, db *sql.DB) (int64, error) {
	p, err := goose.NewProvider(goose.DialectSQLite3, db, sqlFiles)
	if err != nil {
		return 0, fmt.Errorf("loading migrations: %w", err)
	}
	if _, err := p.Up(ctx); err != nil {
		return 0, fmt.Errorf("running migrations: %w", err)
	}
	v, err := p.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}
