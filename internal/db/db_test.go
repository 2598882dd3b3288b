package db

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/uptrace/bun"

	"docqa/internal/config"
	"docqa/internal/models"
	"docqa/internal/rag"
)

func TestConnectDBValidatesConfig(t *testing.T) {
	if _, err := ConnectDB(&config.DatabaseConfig{Driver: config.DriverPQ}); err == nil {
		t.Fatalf("expected error for empty dsn")
	}
	if _, err := ConnectDB(&config.DatabaseConfig{Driver: "mysql", DSN: "postgres://localhost/docqa"}); err == nil {
		t.Fatalf("expected error for unknown driver")
	}

	for _, driver := range []string{config.DriverPQ, config.DriverPGDriver} {
		sqldb, err := ConnectDB(&config.DatabaseConfig{Driver: driver, DSN: "postgres://user@localhost:5432/docqa?sslmode=disable"})
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", driver, err)
		}
		_ = sqldb.Close()
	}
}

// TestPGStoreRoundTrip needs a Postgres with the vector extension available.
func TestPGStoreRoundTrip(t *testing.T) {
	dsn := os.Getenv("DOCQA_TEST_DSN")
	if dsn == "" {
		t.Skip("DOCQA_TEST_DSN not set")
	}
	ctx := context.Background()

	sqldb, err := ConnectDB(&config.DatabaseConfig{Driver: config.DriverPGDriver, DSN: dsn})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	bunDB := NewDB(sqldb, false)
	defer bunDB.Close()

	if err := dropDocuments(ctx, bunDB); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if err := InitDB(ctx, bunDB, 3); err != nil {
		t.Fatalf("init: %v", err)
	}

	store := NewPGStore(bunDB)
	if _, err := store.Open(ctx, "missing"); !errors.Is(err, rag.ErrIndexNotFound) {
		t.Fatalf("expected ErrIndexNotFound, got %v", err)
	}

	chunks := []models.ChunkEmbedding{
		{Chunk: models.Chunk{Content: "north", Source: "map.pdf", PageNumber: 1, ChunkID: 1}, Embedding: []float32{1, 0, 0}},
		{Chunk: models.Chunk{Content: "east", Source: "map.pdf", PageNumber: 2, ChunkID: 1}, Embedding: []float32{0, 1, 0}},
	}
	if _, err := store.Save(ctx, "map", chunks); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := store.Save(ctx, "map", chunks); err != nil {
		t.Fatalf("save again: %v", err)
	}

	index, err := store.Open(ctx, "map")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if index.Count() != 2 {
		t.Fatalf("rebuild should replace rows, got %d", index.Count())
	}

	results, err := index.Search(ctx, []float32{0.1, 0.9, 0}, 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].Content != "east" || results[0].PageNumber != 2 {
		t.Fatalf("unexpected results %+v", results)
	}
}

func dropDocuments(ctx context.Context, db *bun.DB) error {
	_, err := db.NewDropTable().Model((*Document)(nil)).IfExists().Exec(ctx)
	return err
}
