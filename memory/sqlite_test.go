package memory

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/sakhilabs/sakhid/contracts"
	"github.com/sakhilabs/sakhid/migrations"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory database and runs migrations.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := migrations.RunMigrations(db, zerolog.Nop()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return db
}

func TestSQLiteShortTermTrimKeepsNewest(t *testing.T) {
	db := setupTestDB(t)
	svc := NewSQLiteService(db, zerolog.Nop(), WithSQLiteMaxShortTerm(3))
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		rec := shortTermRecord("", fmt.Sprintf("turn %d", i))
		rec.ID = "" // let the store assign a sortable id
		if err := svc.AppendShortTerm(ctx, "user-1", rec); err != nil {
			t.Fatalf("AppendShortTerm: %v", err)
		}
	}

	got, err := svc.GetShortTerm(ctx, "user-1", 10)
	if err != nil {
		t.Fatalf("GetShortTerm: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected buffer trimmed to 3, got %d", len(got))
	}
	if got[0].Message.Content.Text != "turn 5" {
		t.Fatalf("expected newest first, got %q", got[0].Message.Content.Text)
	}
}

func TestSQLiteEpisodicSearch(t *testing.T) {
	db := setupTestDB(t)
	svc := NewSQLiteService(db, zerolog.Nop())
	ctx := context.Background()

	texts := []string{
		"Blocked two hours for the strategy memo",
		"Took an easy walk at lunch",
		"Blocked time for deep reading",
	}
	for _, text := range texts {
		rec := episodicRecord(text)
		if err := svc.AppendEpisodic(ctx, "user-1", rec); err != nil {
			t.Fatalf("AppendEpisodic: %v", err)
		}
	}

	got, err := svc.SearchEpisodic(ctx, "user-1", "Blocked", 10)
	if err != nil {
		t.Fatalf("SearchEpisodic: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(got))
	}

	all, err := svc.SearchEpisodic(ctx, "user-1", "", 10)
	if err != nil {
		t.Fatalf("SearchEpisodic: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected all 3 records for empty query, got %d", len(all))
	}
}

func TestSQLiteEpisodicEmbeddingRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	svc := NewSQLiteService(db, zerolog.Nop())
	ctx := context.Background()

	embedded := episodicRecord("Walked the long loop before dinner")
	embedded.Embedding = []float32{0.25, -1.5, 3}
	if err := svc.AppendEpisodic(ctx, "user-1", embedded); err != nil {
		t.Fatalf("AppendEpisodic: %v", err)
	}
	plain := episodicRecord("Quick note, no vector")
	if err := svc.AppendEpisodic(ctx, "user-1", plain); err != nil {
		t.Fatalf("AppendEpisodic: %v", err)
	}

	got, err := svc.SearchEpisodic(ctx, "user-1", "", 10)
	if err != nil {
		t.Fatalf("SearchEpisodic: %v", err)
	}
	byID := make(map[string]contracts.EpisodicRecord, len(got))
	for _, rec := range got {
		byID[rec.ID] = rec
	}

	roundTripped := byID[embedded.ID].Embedding
	if len(roundTripped) != 3 || roundTripped[0] != 0.25 || roundTripped[1] != -1.5 || roundTripped[2] != 3 {
		t.Fatalf("embedding did not survive the round trip: %v", roundTripped)
	}
	if byID[plain.ID].Embedding != nil {
		t.Errorf("expected nil embedding, got %v", byID[plain.ID].Embedding)
	}

	// The vector lives only in the blob column, not inside the JSON record.
	var blob []byte
	if err := db.QueryRow(
		`SELECT record FROM memory_episodic WHERE id = ?`, embedded.ID,
	).Scan(&blob); err != nil {
		t.Fatalf("read raw record: %v", err)
	}
	if strings.Contains(string(blob), "embedding") {
		t.Errorf("JSON record still carries the embedding: %s", blob)
	}
}

func TestSQLiteTraitUpsertConflictOverwrites(t *testing.T) {
	db := setupTestDB(t)
	svc := NewSQLiteService(db, zerolog.Nop())
	ctx := context.Background()

	trait := semanticTrait("focus_time", "morning", 0.5)
	if err := svc.UpsertSemanticTrait(ctx, "user-1", trait); err != nil {
		t.Fatalf("UpsertSemanticTrait: %v", err)
	}
	trait.Value = "evening"
	trait.Confidence = 0.4
	if err := svc.UpsertSemanticTrait(ctx, "user-1", trait); err != nil {
		t.Fatalf("UpsertSemanticTrait: %v", err)
	}

	got, err := svc.GetSemanticTrait(ctx, "user-1", "focus_time")
	if err != nil {
		t.Fatalf("GetSemanticTrait: %v", err)
	}
	if got == nil || got.Value != "evening" || got.Confidence != 0.4 {
		t.Fatalf("expected overwritten trait, got %+v", got)
	}

	all, err := svc.ListSemanticTraits(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListSemanticTraits: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected a single row after conflict upsert, got %d", len(all))
	}
}

func TestSQLiteMissingTraitReturnsNil(t *testing.T) {
	db := setupTestDB(t)
	svc := NewSQLiteService(db, zerolog.Nop())

	got, err := svc.GetSemanticTrait(context.Background(), "user-1", "nope")
	if err != nil {
		t.Fatalf("GetSemanticTrait: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing trait, got %+v", got)
	}
}

func TestSQLiteIdentityEdgeNaturalKey(t *testing.T) {
	db := setupTestDB(t)
	svc := NewSQLiteService(db, zerolog.Nop())
	ctx := context.Background()

	edge := identityEdge("self", "running", "values")
	if err := svc.UpsertIdentityEdge(ctx, "user-1", edge); err != nil {
		t.Fatalf("UpsertIdentityEdge: %v", err)
	}
	// Same triple upserts in place; a new relationship is a new row.
	if err := svc.UpsertIdentityEdge(ctx, "user-1", edge); err != nil {
		t.Fatalf("UpsertIdentityEdge: %v", err)
	}
	other := identityEdge("self", "running", "avoids")
	if err := svc.UpsertIdentityEdge(ctx, "user-1", other); err != nil {
		t.Fatalf("UpsertIdentityEdge: %v", err)
	}

	all, err := svc.ListIdentityEdges(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListIdentityEdges: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 edges, got %d", len(all))
	}
}
