// Package embeddingtest provides deterministic embedders for tests.
package embeddingtest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"unicode"
)

// Vocabulary embeds text as word counts over a fixed vocabulary. The last
// dimension is a small constant so no vector is ever all zeros.
type Vocabulary struct {
	Words []string
	Err   error

	mu      sync.Mutex
	queries []string
}

func NewVocabulary(words ...string) *Vocabulary {
	return &Vocabulary{Words: words}
}

func (v *Vocabulary) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if v.Err != nil {
		return nil, v.Err
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = v.embed(text)
	}
	return vectors, nil
}

func (v *Vocabulary) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if v.Err != nil {
		return nil, v.Err
	}
	v.mu.Lock()
	v.queries = append(v.queries, text)
	v.mu.Unlock()
	return v.embed(text), nil
}

// Queries returns the query texts embedded so far.
func (v *Vocabulary) Queries() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.queries...)
}

func (v *Vocabulary) embed(text string) []float32 {
	vec := make([]float32, len(v.Words)+1)
	for _, field := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		for i, w := range v.Words {
			if field == w {
				vec[i]++
			}
		}
	}
	vec[len(v.Words)] = 0.1
	return vec
}

// Short returns fewer vectors than requested.
type Short struct{}

func (Short) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return [][]float32{{1}}, nil
}

func (Short) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("not implemented")
}
