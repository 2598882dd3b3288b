package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

type echo struct {
	questions []string
}

func (e *echo) Answer(ctx context.Context, question string) string {
	e.questions = append(e.questions, question)
	return "answer to " + question
}

func TestRunStopsOnExit(t *testing.T) {
	var out bytes.Buffer
	a := &echo{}

	err := run(context.Background(), a, strings.NewReader("what is it?\n  QUIT \nnever asked\n"), &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(a.questions) != 1 || a.questions[0] != "what is it?" {
		t.Fatalf("unexpected questions %v", a.questions)
	}

	want := "🤖 Ask me anything about the document (type 'exit' to quit):\n" +
		">> \n📘 answer to what is it? \n\n" +
		">> "
	if out.String() != want {
		t.Fatalf("unexpected transcript:\n%q\nwant\n%q", out.String(), want)
	}
}

func TestRunStopsAtEOF(t *testing.T) {
	var out bytes.Buffer
	a := &echo{}
	if err := run(context.Background(), a, strings.NewReader("one\ntwo"), &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(a.questions) != 2 {
		t.Fatalf("expected two questions, got %v", a.questions)
	}
	if !strings.HasSuffix(out.String(), ">> ") {
		t.Fatalf("expected a final prompt, got %q", out.String())
	}
}
