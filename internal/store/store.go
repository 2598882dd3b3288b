package store

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"docqa/internal/chromemdb"
	"docqa/internal/config"
	"docqa/internal/db"
	"docqa/internal/helper"
	"docqa/internal/rag"
)

// New opens the durable index store selected by cfg.Index.Backend. The returned
// function releases any connection the store holds.
func New(ctx context.Context, cfg *config.Config, embedder embeddings.Embedder) (rag.Store, func() error, error) {
	switch cfg.Index.Backend {
	case config.BackendChromem, "":
		if err := helper.CreateFolder(cfg.Index.Path); err != nil {
			return nil, nil, fmt.Errorf("create index folder: %w", err)
		}
		m, err := chromemdb.NewVectorDBManager(cfg.Index.Path, false, cfg.Index.Compress, cfg.RAG.EncryptionKey, embedder)
		if err != nil {
			return nil, nil, err
		}
		log.Debug().Str("path", cfg.Index.Path).Msg("Opened chromem store")
		return m, func() error { return nil }, nil

	case config.BackendPGVector:
		sqldb, err := db.ConnectDB(&cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("connect database: %w", err)
		}
		bunDB := db.NewDB(sqldb, cfg.Database.Debug)
		if err := db.InitDB(ctx, bunDB, cfg.Database.VectorSize); err != nil {
			bunDB.Close()
			return nil, nil, fmt.Errorf("initialize database: %w", err)
		}
		log.Debug().Str("driver", cfg.Database.Driver).Msg("Opened pgvector store")
		return db.NewPGStore(bunDB), bunDB.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown index backend: %s", cfg.Index.Backend)
	}
}
