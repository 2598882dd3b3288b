package chromemdb

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"docqa/internal/embedding"
	"docqa/internal/embedding/embeddingtest"
	"docqa/internal/models"
	"docqa/internal/rag"
)

var vocabulary = []string{"rust", "garden", "tomato", "engine", "piston", "oil"}

func sampleChunks(t *testing.T) []models.ChunkEmbedding {
	t.Helper()
	chunks := []models.Chunk{
		{Content: "tomato garden tomato", Source: "farm.pdf", PageNumber: 1, ChunkID: 1},
		{Content: "engine piston oil", Source: "farm.pdf", PageNumber: 2, ChunkID: 1},
		{Content: "garden rust", Source: "farm.pdf", PageNumber: 2, ChunkID: 2},
	}
	out, err := embedding.GenerateEmbedding(context.Background(), embeddingtest.NewVocabulary(vocabulary...), chunks)
	if err != nil {
		t.Fatalf("embed chunks: %v", err)
	}
	return out
}

func query(t *testing.T, index rag.Index, text string, k int) []models.SearchResult {
	t.Helper()
	vec, err := embeddingtest.NewVocabulary(vocabulary...).EmbedQuery(context.Background(), text)
	if err != nil {
		t.Fatalf("embed query: %v", err)
	}
	results, err := index.Search(context.Background(), vec, k)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	return results
}

func TestSaveAndSearchInMemory(t *testing.T) {
	m := NewInMemory(embeddingtest.NewVocabulary(vocabulary...))

	index, err := m.Save(context.Background(), "farm.pdf", sampleChunks(t))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if index.Count() != 3 {
		t.Fatalf("expected 3 documents, got %d", index.Count())
	}

	results := query(t, index, "how does the piston engine work", 10)
	if len(results) != 3 {
		t.Fatalf("expected k clamped to collection size, got %d results", len(results))
	}
	top := results[0]
	if top.Content != "engine piston oil" || top.PageNumber != 2 || top.ChunkID != 1 || top.Source != "farm.pdf" {
		t.Fatalf("unexpected top result %+v", top)
	}
	if results[0].Similarity < results[1].Similarity {
		t.Fatalf("results not ordered by similarity")
	}
}

func TestSaveReplacesExistingIndex(t *testing.T) {
	ctx := context.Background()
	m := NewInMemory(nil)

	if _, err := m.Save(ctx, "doc", sampleChunks(t)); err != nil {
		t.Fatalf("save: %v", err)
	}
	replacement := sampleChunks(t)[:1]
	if _, err := m.Save(ctx, "doc", replacement); err != nil {
		t.Fatalf("save again: %v", err)
	}

	index, err := m.Open(ctx, "doc")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if index.Count() != 1 {
		t.Fatalf("expected only the new content, got %d documents", index.Count())
	}
	results := query(t, index, "engine", 4)
	if len(results) != 1 || results[0].Content != "tomato garden tomato" {
		t.Fatalf("old content still searchable: %+v", results)
	}
}

func TestOpenMissingIndex(t *testing.T) {
	_, err := NewInMemory(nil).Open(context.Background(), "nope")
	if !errors.Is(err, rag.ErrIndexNotFound) {
		t.Fatalf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestEmptyIndexSearch(t *testing.T) {
	index, err := NewInMemory(nil).Save(context.Background(), "empty", nil)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if results := query(t, index, "garden", 4); len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
}

func TestPersistentRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "db")

	writer, err := NewVectorDBManager(dir, false, false, "", nil)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	built, err := writer.Save(ctx, "vector_index", sampleChunks(t))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	want := query(t, built, "tomato garden", 2)

	reader, err := NewVectorDBManager(dir, false, false, "", nil)
	if err != nil {
		t.Fatalf("reopen manager: %v", err)
	}
	if names := reader.Names(); !reflect.DeepEqual(names, []string{"vector_index"}) {
		t.Fatalf("unexpected names %v", names)
	}
	loaded, err := reader.Open(ctx, "vector_index")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	got := query(t, loaded, "tomato garden", 2)
	if len(got) != len(want) {
		t.Fatalf("expected %d results, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].Chunk != want[i].Chunk {
			t.Fatalf("result %d differs: %+v vs %+v", i, got[i].Chunk, want[i].Chunk)
		}
	}
}

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	file := filepath.Join(t.TempDir(), "snapshot.gob.enc")
	key := "0123456789abcdef0123456789abcdef"

	src := NewInMemory(nil)
	src.SetEncryptionKey(key)
	if _, err := src.Save(ctx, "vector_index", sampleChunks(t)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := src.Export(file, "vector_index"); err != nil {
		t.Fatalf("export: %v", err)
	}

	dst := NewInMemory(nil)
	dst.SetEncryptionKey(key)
	if err := dst.Import(file); err != nil {
		t.Fatalf("import: %v", err)
	}
	index, err := dst.Open(ctx, "vector_index")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if index.Count() != 3 {
		t.Fatalf("expected 3 documents, got %d", index.Count())
	}
}
