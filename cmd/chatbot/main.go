package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"

	"docqa/internal/chromemdb"
	"docqa/internal/config"
	"docqa/internal/embedding"
	"docqa/internal/helper"
	"docqa/internal/llmservice"
	"docqa/internal/rag"
	"docqa/internal/store"
)

type answerer interface {
	Answer(ctx context.Context, question string) string
}

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "Path to the config file")
	indexName := flag.String("index", "", "Name of the index to query (default from config)")
	importPath := flag.String("import", "", "Load the index from a snapshot file instead of the store")
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

	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}

	var st rag.Store
	if *importPath != "" {
		m := chromemdb.NewInMemory(embedder)
		m.SetEncryptionKey(cfg.RAG.EncryptionKey)
		if err := m.Import(*importPath, name); err != nil {
			log.Fatal().Err(err).Msg("Error importing index snapshot")
		}
		st = m
	} else {
		var closeStore func() error
		st, closeStore, err = store.New(ctx, cfg, embedder)
		if err != nil {
			log.Fatal().Err(err).Msg("Error opening index store")
		}
		defer closeStore()
	}

	index, err := st.Open(ctx, name)
	if err != nil {
		event := log.Fatal().Err(err)
		if m, ok := st.(*chromemdb.VectorDBManager); ok && errors.Is(err, rag.ErrIndexNotFound) {
			event = event.Strs("available", m.Names())
		}
		event.Msg("Error loading index")
	}

	llm, err := llmservice.NewLLM(&cfg.LLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing LLM")
	}

	if err := run(ctx, rag.NewRAG(index, embedder, llm, &cfg.RAG), os.Stdin, os.Stdout); err != nil {
		log.Fatal().Err(err).Msg("Error reading input")
	}
}

// run answers one question per input line until exit, quit or end of input.
func run(ctx context.Context, a answerer, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, "🤖 Ask me anything about the document (type 'exit' to quit):")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, ">> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		query := scanner.Text()
		switch strings.ToLower(strings.TrimSpace(query)) {
		case "exit", "quit":
			return nil
		}
		fmt.Fprintf(out, "\n📘 %s \n\n", a.Answer(ctx, query))
	}
}
