package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"docqa/internal/config"
	"docqa/internal/embedding"
	"docqa/internal/helper"
	"docqa/internal/llmservice"
	"docqa/internal/session"
	"docqa/internal/web"
)

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "Path to the config file")
	addr := flag.String("addr", "", "Listen address (default from config)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		helper.InitLogger("info", os.Stderr)
		log.Fatal().Err(err).Msg("Error loading config")
	}
	helper.InitLogger(cfg.Log.Level, os.Stderr)
	log.Debug().Interface("config", cfg.Redacted()).Msg("Loaded config")

	if *addr != "" {
		cfg.UI.Addr = *addr
	}
	if cfg.UI.TempDir != "" {
		if err := helper.CreateFolder(cfg.UI.TempDir); err != nil {
			log.Fatal().Err(err).Msg("Error creating temp folder")
		}
	}

	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}
	llm, err := llmservice.NewLLM(&cfg.LLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing LLM")
	}

	manager := session.NewManager(session.Deps{
		Embedder: embedder,
		LLM:      llm,
		RAG:      cfg.RAG.WithChunking(cfg.UI.ChunkSize, cfg.UI.ChunkOverlap),
		TempDir:  cfg.UI.TempDir,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	srv := &http.Server{
		Addr:              cfg.UI.Addr,
		Handler:           web.New(cfg.UI, manager).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error shutting down server")
		}
	}()

	log.Info().Str("addr", cfg.UI.Addr).Msg("Serving document chat")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}
