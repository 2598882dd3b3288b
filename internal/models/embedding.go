package models

import "time"

// Page is the extracted text of one page, slide or sheet of a document.
type Page struct {
	Number  int
	Content string
}

// Chunk represents a parsed chunk with metadata
type Chunk struct {
	Content    string `json:"content"`
	Source     string `json:"source"`
	PageNumber int    `json:"page_number"`
	ChunkID    int    `json:"chunk_id"`
}

type ChunkEmbedding struct {
	Chunk
	Embedding []float32 `json:"-"`
}

// SearchResult is a retrieved chunk with its cosine similarity to the query.
type SearchResult struct {
	Chunk
	Similarity float32
}

type PromptResponse struct {
	Query   string
	Source  string
	Content string
}

// Exchange is one question and its answer in a document's chat history.
type Exchange struct {
	Question string
	Answer   string
	AskedAt  time.Time
}
