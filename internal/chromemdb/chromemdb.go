package chromemdb

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"time"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"docqa/internal/models"
	"docqa/internal/rag"
)

// VectorDBManager keeps named indexes as chromem-go collections, either in
// memory or persisted under dbPath.
type VectorDBManager struct {
	db            *chromem.DB
	embedder      embeddings.Embedder
	dbPath        string
	compress      bool
	encryptionKey string
}

// NewVectorDBManager initializes a new vector database manager
func NewVectorDBManager(dbPath string, inMemory, compress bool, encryptionKey string, embedder embeddings.Embedder) (*VectorDBManager, error) {
	var db *chromem.DB
	if inMemory {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(dbPath, compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	return &VectorDBManager{
		db:            db,
		embedder:      embedder,
		dbPath:        dbPath,
		compress:      compress,
		encryptionKey: encryptionKey,
	}, nil
}

// NewInMemory is a VectorDBManager that never touches disk.
func NewInMemory(embedder embeddings.Embedder) *VectorDBManager {
	return &VectorDBManager{db: chromem.NewDB(), embedder: embedder}
}

// SetEncryptionKey sets the AES key Export and Import use. An empty key disables encryption.
func (m *VectorDBManager) SetEncryptionKey(key string) {
	m.encryptionKey = key
}

// Save drops any collection called name and writes chunks into a fresh one.
func (m *VectorDBManager) Save(ctx context.Context, name string, chunks []models.ChunkEmbedding) (rag.Index, error) {
	if m.db.GetCollection(name, nil) != nil {
		log.Debug().Str("collection", name).Msg("Replacing existing collection")
		if err := m.db.DeleteCollection(name); err != nil {
			return nil, fmt.Errorf("failed to drop collection: %w", err)
		}
	}

	metadata := map[string]string{"created_at": time.Now().UTC().Format(time.RFC3339)}
	c, err := m.db.CreateCollection(name, metadata, m.embeddingFunc())
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	if len(chunks) > 0 {
		if err := c.AddDocuments(ctx, toDocuments(chunks), runtime.NumCPU()); err != nil {
			return nil, fmt.Errorf("failed to add documents: %w", err)
		}
	}
	return &Collection{collection: c}, nil
}

// Open returns the collection saved under name.
func (m *VectorDBManager) Open(ctx context.Context, name string) (rag.Index, error) {
	c := m.db.GetCollection(name, m.embeddingFunc())
	if c == nil {
		return nil, fmt.Errorf("%w: %s", rag.ErrIndexNotFound, name)
	}
	return &Collection{collection: c}, nil
}

// Names lists the stored index names in sorted order.
func (m *VectorDBManager) Names() []string {
	var names []string
	for name := range m.db.ListCollections() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Export writes the named collections (all when none are given) to a single file.
func (m *VectorDBManager) Export(filePath string, names ...string) error {
	log.Debug().
		Str("file", filePath).
		Bool("compress", m.compress).
		Bool("encrypted", m.encryptionKey != "").
		Strs("collections", names).
		Msg("Exporting collections")

	if err := m.db.ExportToFile(filePath, m.compress, m.encryptionKey, names...); err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	return nil
}

// Import loads collections from a file written by Export.
func (m *VectorDBManager) Import(filePath string, names ...string) error {
	if err := m.db.ImportFromFile(filePath, m.encryptionKey, names...); err != nil {
		return fmt.Errorf("failed to import database: %w", err)
	}
	return nil
}

func (m *VectorDBManager) embeddingFunc() chromem.EmbeddingFunc {
	if m.embedder == nil {
		return nil
	}
	return func(ctx context.Context, text string) ([]float32, error) {
		return m.embedder.EmbedQuery(ctx, text)
	}
}

// Collection is a chromem collection seen as a rag.Index.
type Collection struct {
	collection *chromem.Collection
}

func (c *Collection) Count() int {
	return c.collection.Count()
}

func (c *Collection) Search(ctx context.Context, queryEmbedding []float32, k int) ([]models.SearchResult, error) {
	if len(queryEmbedding) == 0 {
		return nil, fmt.Errorf("query embedding is empty")
	}
	// chromem refuses nResults larger than the collection
	n := min(k, c.collection.Count())
	if n <= 0 {
		return nil, nil
	}

	results, err := c.collection.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: queryEmbedding,
		NResults:       n,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	out := make([]models.SearchResult, len(results))
	for i, res := range results {
		out[i] = models.SearchResult{
			Chunk:      fromMetadata(res.Content, res.Metadata),
			Similarity: res.Similarity,
		}
	}
	return out, nil
}

func toDocuments(chunks []models.ChunkEmbedding) []chromem.Document {
	docs := make([]chromem.Document, len(chunks))
	for i, ce := range chunks {
		docs[i] = chromem.Document{
			ID:      fmt.Sprintf("chunk-%06d", i),
			Content: ce.Content,
			Metadata: map[string]string{
				models.MetaSource:  ce.Source,
				models.MetaPage:    strconv.Itoa(ce.PageNumber),
				models.MetaChunkID: strconv.Itoa(ce.ChunkID),
			},
			Embedding: ce.Embedding,
		}
	}
	return docs
}

func fromMetadata(content string, metadata map[string]string) models.Chunk {
	page, _ := strconv.Atoi(metadata[models.MetaPage])
	chunkID, _ := strconv.Atoi(metadata[models.MetaChunkID])
	return models.Chunk{
		Content:    content,
		Source:     metadata[models.MetaSource],
		PageNumber: page,
		ChunkID:    chunkID,
	}
}

var (
	_ rag.Store = (*VectorDBManager)(nil)
	_ rag.Index = (*Collection)(nil)
)
