package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"

	"docqa/internal/chromemdb"
	"docqa/internal/config"
	"docqa/internal/models"
	"docqa/internal/parser"
	"docqa/internal/rag"
)

var (
	ErrUnknownDocument = errors.New("document not loaded")
	ErrNoDocument      = errors.New("no document selected")
)

// Deps are the services shared by every session.
type Deps struct {
	Embedder embeddings.Embedder
	LLM      llms.Model
	RAG      config.RAGConfig
	TempDir  string
}

type document struct {
	name    string
	rag     *rag.RAG
	chunks  int
	history []models.Exchange
}

// Session holds the documents one user has uploaded, each with its own
// in-memory index and append-only chat history.
type Session struct {
	ID string

	deps    Deps
	mu      sync.Mutex
	store   *chromemdb.VectorDBManager
	docs    map[string]*document
	order   []string
	current string
}

func New(id string, deps Deps) *Session {
	return &Session{
		ID:    id,
		deps:  deps,
		store: chromemdb.NewInMemory(deps.Embedder),
		docs:  make(map[string]*document),
	}
}

// Upload indexes the document read from r under filename and makes it current.
// A document already loaded under the same name gets the new index; its history is kept.
func (s *Session) Upload(ctx context.Context, filename string, r io.Reader) error {
	name := filepath.Base(filename)
	if name == "." || name == string(filepath.Separator) || name == "" {
		return fmt.Errorf("invalid file name %q", filename)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	chunks, err := s.ingest(name, r)
	if err != nil {
		return err
	}

	index, err := rag.Build(ctx, s.store, s.deps.Embedder, name, chunks)
	if err != nil {
		return err
	}

	doc, ok := s.docs[name]
	if ok {
		log.Warn().Str("session", s.ID).Str("document", name).Msg("Replacing index of re-uploaded document")
	} else {
		doc = &document{name: name}
		s.docs[name] = doc
		s.order = append(s.order, name)
	}
	doc.rag = rag.NewRAG(index, s.deps.Embedder, s.deps.LLM, &s.deps.RAG)
	doc.chunks = len(chunks)
	s.current = name

	log.Info().Str("session", s.ID).Str("document", name).Int("chunks", len(chunks)).Msg("Document processed")
	return nil
}

// ingest copies r to a temporary file, since the loaders work on paths, and splits it.
func (s *Session) ingest(name string, r io.Reader) ([]models.Chunk, error) {
	tmp, err := os.CreateTemp(s.deps.TempDir, "upload-*-"+name)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err := os.Remove(tmp.Name()); err != nil {
			log.Warn().Err(err).Str("file", tmp.Name()).Msg("Failed to remove temp file")
		}
	}()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close temp file: %w", err)
	}

	chunks, err := parser.ParseFile(tmp.Name(), s.deps.RAG)
	if err != nil {
		return nil, err
	}
	for i := range chunks {
		chunks[i].Source = name
	}
	return chunks, nil
}

// Select makes name the current document.
func (s *Session) Select(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDocument, name)
	}
	s.current = name
	return nil
}

// Submit answers question against the current document and appends the
// exchange to its history. Blank questions are ignored and return false.
func (s *Session) Submit(ctx context.Context, question string) (models.Exchange, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(question) == "" {
		return models.Exchange{}, false
	}
	doc, ok := s.docs[s.current]
	if !ok {
		return models.Exchange{}, false
	}

	exchange := models.Exchange{
		Question: question,
		Answer:   doc.rag.Answer(ctx, question),
		AskedAt:  time.Now(),
	}
	doc.history = append(doc.history, exchange)
	return exchange, true
}

// Current returns the selected document name, or "" before the first upload.
func (s *Session) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Documents lists loaded document names in upload order.
func (s *Session) Documents() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// History returns a copy of the chat history of name.
func (s *Session) History(name string) ([]models.Exchange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDocument, name)
	}
	return append([]models.Exchange(nil), doc.history...), nil
}

// ChunkCount reports how many chunks the current index of name holds.
func (s *Session) ChunkCount(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc, ok := s.docs[name]; ok {
		return doc.chunks
	}
	return 0
}
