package rag

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"docqa/internal/embedding"
	"docqa/internal/models"
)

var (
	// ErrIndexNotFound is returned when opening a name that was never saved.
	ErrIndexNotFound = errors.New("index not found")
	// ErrNoChunks is returned when a build is given nothing to index.
	ErrNoChunks = errors.New("document produced no text chunks")
)

// Index is a read-only similarity index over chunk embeddings.
type Index interface {
	// Search returns at most k chunks ordered by descending cosine similarity.
	Search(ctx context.Context, queryEmbedding []float32, k int) ([]models.SearchResult, error)
	Count() int
}

// Store saves and loads named indexes. Save always rebuilds from scratch.
type Store interface {
	Save(ctx context.Context, name string, chunks []models.ChunkEmbedding) (Index, error)
	Open(ctx context.Context, name string) (Index, error)
}

// Build embeds the chunks and writes them to store under name, replacing any previous index.
func Build(ctx context.Context, store Store, embedder embeddings.Embedder, name string, chunks []models.Chunk) (Index, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("build index %s: %w", name, ErrNoChunks)
	}
	chunkEmbeddings, err := embedding.GenerateEmbedding(ctx, embedder, chunks)
	if err != nil {
		return nil, err
	}

	index, err := store.Save(ctx, name, chunkEmbeddings)
	if err != nil {
		return nil, fmt.Errorf("save index %s: %w", name, err)
	}

	log.Info().Str("index", name).Int("chunks", index.Count()).Msg("Index built")
	return index, nil
}
