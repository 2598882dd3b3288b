package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"

	"docqa/internal/config"
	"docqa/internal/helper"
	"docqa/internal/models"
	"docqa/internal/parser"
)

const previewChars = 300

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "Path to the config file")
	filePath := flag.String("file", "example.pdf", "Path to the document file")
	asJSON := flag.Bool("json", false, "Print every chunk as JSON")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		helper.InitLogger("info", os.Stderr)
		log.Fatal().Err(err).Msg("Error loading config")
	}
	helper.InitLogger(cfg.Log.Level, os.Stderr)
	log.Debug().Interface("config", cfg.Redacted()).Msg("Loaded config")

	chunks, err := parser.ParseFile(*filePath, cfg.RAG)
	if err != nil {
		log.Fatal().Err(err).Msg("Error parsing document")
	}
	if len(chunks) == 0 {
		log.Fatal().Str("file", *filePath).Msg("Document produced no text chunks")
	}

	if *asJSON {
		helper.PrettyPrint(os.Stdout, chunks)
		return
	}
	report(os.Stdout, chunks)
}

// report prints the chunk count and a preview of the first chunk.
func report(w io.Writer, chunks []models.Chunk) {
	fmt.Fprintf(w, "✅ Loaded %d text chunks.\n", len(chunks))
	preview := []rune(chunks[0].Content)
	if len(preview) > previewChars {
		preview = preview[:previewChars]
	}
	fmt.Fprintln(w, string(preview))
}
