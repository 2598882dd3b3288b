package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"docqa/internal/config"
	"docqa/internal/models"
	"docqa/internal/rag"
)

// Document is one stored chunk of a named index.
type Document struct {
	bun.BaseModel `bun:"table:index_chunks,alias:d"`
	ID            int64           `bun:"id,pk,autoincrement"`
	IndexName     string          `bun:"index_name,notnull"`
	Position      int             `bun:"position,notnull"`
	Content       string          `bun:"content,notnull"`
	Source        string          `bun:"source"`
	PageNumber    int             `bun:"page_number"`
	ChunkID       int             `bun:"chunk_id"`
	Embedding     pgvector.Vector `bun:"embedding,notnull,type:vector"`
}

// searchRow is a Document plus the distance computed by the query.
type searchRow struct {
	Document `bun:",extend"`
	Distance float64 `bun:"distance"`
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens Postgres through bun's pgdriver, or lib/pq when driver is "pq".
func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	switch cfg.Driver {
	case config.DriverPQ:
		return sql.Open("postgres", cfg.DSN)
	case config.DriverPGDriver, "":
		opts := []pgdriver.Option{pgdriver.WithDSN(cfg.DSN)}
		if cfg.Password != "" {
			opts = append(opts, pgdriver.WithPassword(cfg.Password))
		}
		return sql.OpenDB(pgdriver.NewConnector(opts...)), nil
	default:
		return nil, fmt.Errorf("unknown database driver: %s", cfg.Driver)
	}
}

func InitDB(ctx context.Context, db *bun.DB, vectorSize int) error {
	if _, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}
	// bun cannot derive a sized vector column, so the table is created by hand
	_, err := db.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS index_chunks (
	id bigserial PRIMARY KEY,
	index_name text NOT NULL,
	position integer NOT NULL,
	content text NOT NULL,
	source text,
	page_number integer,
	chunk_id integer,
	embedding vector(%d) NOT NULL
)`, vectorSize))
	if err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	if _, err := db.NewCreateIndex().
		Model((*Document)(nil)).
		Index("index_chunks_name_idx").
		Column("index_name").
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

// PGStore keeps named indexes as rows of the index_chunks table.
type PGStore struct {
	db *bun.DB
}

func NewPGStore(db *bun.DB) *PGStore {
	return &PGStore{db: db}
}

// Save replaces every row of name with chunks in one transaction.
func (s *PGStore) Save(ctx context.Context, name string, chunks []models.ChunkEmbedding) (rag.Index, error) {
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*Document)(nil)).Where("index_name = ?", name).Exec(ctx); err != nil {
			return fmt.Errorf("clear index: %w", err)
		}
		if len(chunks) == 0 {
			return nil
		}
		docs := make([]Document, len(chunks))
		for i, ce := range chunks {
			docs[i] = Document{
				IndexName:  name,
				Position:   i,
				Content:    ce.Content,
				Source:     ce.Source,
				PageNumber: ce.PageNumber,
				ChunkID:    ce.ChunkID,
				Embedding:  pgvector.NewVector(ce.Embedding),
			}
		}
		if _, err := tx.NewInsert().Model(&docs).Exec(ctx); err != nil {
			return fmt.Errorf("insert chunks: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Debug().Str("index", name).Int("rows", len(chunks)).Msg("Stored index rows")
	return &PGIndex{db: s.db, name: name, count: len(chunks)}, nil
}

// Open checks that name has rows and returns an index over them.
func (s *PGStore) Open(ctx context.Context, name string) (rag.Index, error) {
	count, err := s.db.NewSelect().Model((*Document)(nil)).Where("index_name = ?", name).Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count index rows: %w", err)
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: %s", rag.ErrIndexNotFound, name)
	}
	return &PGIndex{db: s.db, name: name, count: count}, nil
}

// PGIndex searches one named index with pgvector's cosine distance operator.
type PGIndex struct {
	db    *bun.DB
	name  string
	count int
}

func (i *PGIndex) Count() int {
	return i.count
}

func (i *PGIndex) Search(ctx context.Context, queryEmbedding []float32, k int) ([]models.SearchResult, error) {
	if len(queryEmbedding) == 0 {
		return nil, fmt.Errorf("query embedding is empty")
	}
	if k <= 0 {
		return nil, nil
	}

	vec := pgvector.NewVector(queryEmbedding)
	var rows []searchRow
	err := i.db.NewSelect().
		Model(&rows).
		ColumnExpr("d.*").
		ColumnExpr("d.embedding <=> ? AS distance", vec).
		Where("d.index_name = ?", i.name).
		OrderExpr("d.embedding <=> ?", vec).
		OrderExpr("d.position").
		Limit(k).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("search index rows: %w", err)
	}

	results := make([]models.SearchResult, len(rows))
	for n, row := range rows {
		results[n] = models.SearchResult{
			Chunk: models.Chunk{
				Content:    row.Content,
				Source:     row.Source,
				PageNumber: row.PageNumber,
				ChunkID:    row.ChunkID,
			},
			Similarity: float32(1 - row.Distance),
		}
	}
	return results, nil
}

var (
	_ rag.Store = (*PGStore)(nil)
	_ rag.Index = (*PGIndex)(nil)
)
