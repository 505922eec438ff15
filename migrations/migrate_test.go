package migrations

import (
	"database/sql"
	"testing"

	"github.com/rs/zerolog"

	_ "github.com/mattn/go-sqlite3"
)

func TestRunMigrationsCreatesAllTiers(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := RunMigrations(db, zerolog.Nop()); err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}

	tables := []string{
		"memory_short_term",
		"memory_episodic",
		"memory_semantic_traits",
		"memory_preferences",
		"memory_identity_edges",
	}
	for _, table := range tables {
		var name string
		err := db.QueryRow(
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing after migration: %v", table, err)
		}
	}

	// A second run against the migrated database is a no-op.
	if err := RunMigrations(db, zerolog.Nop()); err != nil {
		t.Fatalf("RunMigrations rerun: %v", err)
	}
}
