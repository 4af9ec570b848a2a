// Package database opens the libSQL file that backs the document store.
package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/tursodatabase/go-libsql"
)

const memory = ":memory:"

// pragmas tune SQLite for one writer and many concurrent readers.
var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA foreign_keys=ON",
}

// Open connects to the database at path, or to a private in-memory
// database for ":memory:", and applies pragmas.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("libsql", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if path == memory {
		// Each connection would get its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := configure(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func configure(ctx context.Context, db *sql.DB) error {
	// libSQL rejects Exec for PRAGMAs that return rows.
	for _, p := range pragmas {
		rows, err := db.QueryContext(ctx, p)
		if err != nil {
			return fmt.Errorf("executing %s: %w", p, err)
		}
		rows.Close()
	}
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}
	return nil
}
