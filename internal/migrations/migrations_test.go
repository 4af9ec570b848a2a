package migrations_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/Aiyaret-Sandhu/cid-ctf/internal/database"
	"github.com/Aiyaret-Sandhu/cid-ctf/internal/migrations"
)

func openMemory(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrationsCreateCollections(t *testing.T) {
	db := openMemory(t)
	v, err := migrations.Up(context.Background(), db)
	if err != nil {
		t.Fatalf("Up: %v", err)
	}
	if v != 3 {
		t.Errorf("schema version = %d, want 3", v)
	}

	tests := []struct {
		kind, name string
	}{
		{"table", "teams"},
		{"table", "challenges"},
		{"table", "settings"},
		{"table", "tokens"},
		{"table", "finalists"},
		{"table", "team_sessions"},
		{"table", "admins"},
		{"table", "admin_sessions"},
		{"index", "teams_email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var name string
			err := db.QueryRow(
				"SELECT name FROM sqlite_master WHERE type = ? AND name = ?", tt.kind, tt.name,
			).Scan(&name)
			if err != nil {
				t.Errorf("%s %q not found: %v", tt.kind, tt.name, err)
			}
		})
	}
}

func TestMigrationsRerunIsNoop(t *testing.T) {
	db := openMemory(t)
	if err := migrations.Run(db); err != nil {
		t.Fatalf("first run: %v", err)
	}
	v, err := migrations.Up(context.Background(), db)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if v != 3 {
		t.Errorf("schema version = %d, want 3", v)
	}
}
