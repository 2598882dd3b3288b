package parser

import (
	"fmt"
	"strings"

	"docqa/internal/config"
	"docqa/internal/models"

	"github.com/tmc/langchaingo/textsplitter"
)

// NewSplitter builds the text splitter named by cfg.Splitter.
func NewSplitter(cfg config.RAGConfig) (textsplitter.TextSplitter, error) {
	if cfg.ChunkSize <= 0 || cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("invalid chunking: size %d overlap %d", cfg.ChunkSize, cfg.ChunkOverlap)
	}

	switch cfg.Splitter {
	case config.SplitterRecursive, "":
		return textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(cfg.ChunkSize),
			textsplitter.WithChunkOverlap(cfg.ChunkOverlap),
		), nil
	case config.SplitterWindow:
		return WindowSplitter{ChunkSize: cfg.ChunkSize, ChunkOverlap: cfg.ChunkOverlap}, nil
	default:
		return nil, fmt.Errorf("unknown splitter %q", cfg.Splitter)
	}
}

// SplitPages splits each page on its own so every chunk carries the page it came from.
// ChunkID restarts at 1 on each page.
func SplitPages(splitter textsplitter.TextSplitter, source string, pages []models.Page) ([]models.Chunk, error) {
	var chunks []models.Chunk
	for _, page := range pages {
		parts, err := splitter.SplitText(page.Content)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page.Number, err)
		}

		id := 0
		for _, part := range parts {
			if strings.TrimSpace(part) == "" {
				continue
			}
			id++
			chunks = append(chunks, models.Chunk{
				Content:    part,
				Source:     source,
				PageNumber: page.Number,
				ChunkID:    id,
			})
		}
	}
	return chunks, nil
}

// WindowSplitter cuts text into windows of at most ChunkSize runes. Every window
// after the first begins exactly ChunkOverlap runes before the end of the previous one.
type WindowSplitter struct {
	ChunkSize    int
	ChunkOverlap int
}

func (w WindowSplitter) SplitText(text string) ([]string, error) {
	return chunkContent(text, w.ChunkSize, w.ChunkOverlap), nil
}

// chunk content into chunks with maxChars and overlapChars
func chunkContent(content string, maxChars, overlapChars int) []string {
	if maxChars <= 0 || strings.TrimSpace(content) == "" {
		return nil
	}
	if overlapChars < 0 {
		overlapChars = 0
	}
	if overlapChars >= maxChars {
		overlapChars = maxChars / 2
	}

	runes := []rune(content)
	contentLen := len(runes)
	if contentLen <= maxChars {
		return []string{content}
	}

	var chunks []string
	start := 0
	for {
		end := min(start+maxChars, contentLen)

		// Prefer a clean break in the last 10% of the window, but never one that
		// would stop the next window from moving forward.
		if end < contentLen {
			lookBack := maxChars / 10
			for i := end - 1; i >= end-lookBack && i+1 > start+overlapChars; i-- {
				if runes[i] == ' ' || runes[i] == '\n' || runes[i] == '.' {
					end = i + 1
					break
				}
			}
		}

		chunks = append(chunks, string(runes[start:end]))
		if end >= contentLen {
			break
		}
		start = end - overlapChars
	}

	return chunks
}
