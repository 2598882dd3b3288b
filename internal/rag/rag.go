package rag

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/chains"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"docqa/internal/config"
	"docqa/internal/models"
)

const defaultTopK = 4

var thinkRe = regexp.MustCompile(models.ThinkTag)

// RAG answers questions about one index.
type RAG struct {
	index         Index
	embedder      embeddings.Embedder
	llm           llms.Model
	topK          int
	minSimilarity float32
}

func NewRAG(index Index, embedder embeddings.Embedder, llm llms.Model, cfg *config.RAGConfig) *RAG {
	r := &RAG{index: index, embedder: embedder, llm: llm, topK: defaultTopK}
	if cfg != nil {
		if cfg.TopK > 0 {
			r.topK = cfg.TopK
		}
		r.minSimilarity = cfg.MinSimilarity
	}
	return r
}

// Retrieve returns the top ranked chunks for question, dropping any below the similarity floor.
func (r *RAG) Retrieve(ctx context.Context, question string) ([]models.SearchResult, error) {
	queryEmbedding, err := r.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	results, err := r.index.Search(ctx, queryEmbedding, r.topK)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	// a zero floor keeps every hit; cosine similarity can be negative
	if r.minSimilarity <= 0 {
		return results, nil
	}
	kept := results[:0]
	for _, res := range results {
		if res.Similarity >= r.minSimilarity {
			kept = append(kept, res)
		}
	}
	return kept, nil
}

// GetRelevantDocuments lets the RAG act as a langchaingo retriever.
func (r *RAG) GetRelevantDocuments(ctx context.Context, query string) ([]schema.Document, error) {
	results, err := r.Retrieve(ctx, query)
	if err != nil {
		return nil, err
	}
	return toDocuments(results), nil
}

// Query retrieves context for question and asks the model. Degenerate outcomes
// come back as fixed messages rather than errors.
func (r *RAG) Query(ctx context.Context, question string) (models.PromptResponse, error) {
	response := models.PromptResponse{Query: question}

	docs, err := r.GetRelevantDocuments(ctx, question)
	if err != nil {
		return response, err
	}
	if len(docs) == 0 {
		log.Debug().Str("question", question).Msg("No context retrieved")
		response.Content = models.NoContextMessage
		return response, nil
	}
	response.Source = describeSources(docs)

	out, err := chains.Call(ctx, chains.LoadStuffQA(r.llm), map[string]any{
		"input_documents": docs,
		"question":        question,
	})
	if err != nil {
		return response, fmt.Errorf("generate answer: %w", err)
	}

	text, ok := out["text"].(string)
	if !ok {
		response.Content = models.NoAnswerMessage
		return response, nil
	}

	text = strings.TrimSpace(thinkRe.ReplaceAllString(text, ""))
	if text == "" {
		response.Content = models.NoInfoMessage
		return response, nil
	}

	response.Content = text
	return response, nil
}

// Answer is Query with every failure turned into a user visible message.
func (r *RAG) Answer(ctx context.Context, question string) string {
	response, err := r.Query(ctx, question)
	if err != nil {
		log.Error().Err(err).Str("question", question).Msg("Query failed")
		return models.ErrorPrefix + err.Error()
	}
	return response.Content
}

func toDocuments(results []models.SearchResult) []schema.Document {
	docs := make([]schema.Document, len(results))
	for i, res := range results {
		docs[i] = schema.Document{
			PageContent: res.Content,
			Metadata: map[string]any{
				models.MetaSource:  res.Source,
				models.MetaPage:    res.PageNumber,
				models.MetaChunkID: res.ChunkID,
			},
			Score: res.Similarity,
		}
	}
	return docs
}

// describeSources lists the distinct source pages in retrieval order, e.g. "a.pdf p.3, a.pdf p.1".
func describeSources(docs []schema.Document) string {
	seen := make(map[string]struct{}, len(docs))
	var parts []string
	for _, doc := range docs {
		source, _ := doc.Metadata[models.MetaSource].(string)
		page, _ := doc.Metadata[models.MetaPage].(int)
		key := source + " p." + strconv.Itoa(page)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		parts = append(parts, key)
	}
	return strings.Join(parts, ", ")
}

var _ schema.Retriever = (*RAG)(nil)
