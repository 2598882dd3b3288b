// Package llmtest provides a scripted llms.Model for tests.
package llmtest

import (
	"context"
	"errors"
	"sync"

	"github.com/tmc/langchaingo/llms"
)

// Stub answers every request with Answer, or fails with Err.
type Stub struct {
	Answer string
	Err    error
	// Empty makes the model return no choices at all.
	Empty bool

	mu      sync.Mutex
	prompts []string
}

func (s *Stub) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	if len(messages) == 0 {
		return nil, errors.New("no messages provided")
	}

	var prompt string
	for _, m := range messages {
		for _, part := range m.Parts {
			if text, ok := part.(llms.TextContent); ok {
				prompt += text.Text
			}
		}
	}
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	s.mu.Unlock()

	if s.Empty {
		return &llms.ContentResponse{}, nil
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: s.Answer}}}, nil
}

func (s *Stub) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, s, prompt, options...)
}

// Prompts returns every prompt the model received.
func (s *Stub) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}

var _ llms.Model = (*Stub)(nil)
