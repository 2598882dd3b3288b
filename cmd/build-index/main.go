package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"docqa/internal/chromemdb"
	"docqa/internal/config"
	"docqa/internal/embedding"
	"docqa/internal/helper"
	"docqa/internal/parser"
	"docqa/internal/rag"
	"docqa/internal/store"
)

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "Path to the config file")
	filePath := flag.String("file", "example.pdf", "Path to the document file")
	indexName := flag.String("index", "", "Name of the index to build (default from config)")
	exportPath := flag.String("export", "", "Also write a snapshot of the index to this file (chromem backend only)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		helper.InitLogger("info", os.Stderr)
		log.Fatal().Err(err).Msg("Error loading config")
	}
	helper.InitLogger(cfg.Log.Level, os.Stderr)
	log.Debug().Interface("config", cfg.Redacted()).Msg("Loaded config")

	name := cfg.Index.Name
	if *indexName != "" {
		name = *indexName
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	chunks, err := parser.ParseFile(*filePath, cfg.RAG)
	if err != nil {
		log.Fatal().Err(err).Msg("Error parsing document")
	}
	log.Info().Str("file", *filePath).Int("chunks", len(chunks)).Msg("Parsed document")

	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}

	st, closeStore, err := store.New(ctx, cfg, embedder)
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening index store")
	}
	defer closeStore()

	if _, err := rag.Build(ctx, st, embedder, name, chunks); err != nil {
		log.Fatal().Err(err).Msg("Error building index")
	}
	fmt.Printf("✅ Vector store built and saved to '%s'\n", name)

	if *exportPath == "" {
		return
	}
	manager, ok := st.(*chromemdb.VectorDBManager)
	if !ok {
		log.Fatal().Str("backend", cfg.Index.Backend).Msg("Export needs the chromem backend")
	}
	if err := manager.Export(*exportPath, name); err != nil {
		log.Fatal().Err(err).Msg("Error exporting index")
	}
	log.Info().Str("file", *exportPath).Msg("Exported index snapshot")
}
