package web

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/yuin/goldmark"

	"docqa/internal/models"
)

// renderTranscript lays the chat history of name out as markdown and renders
// it to HTML. Raw HTML inside questions or answers is dropped by goldmark.
func renderTranscript(name string, history []models.Exchange) (template.HTML, error) {
	if len(history) == 0 {
		return "", nil
	}

	var md strings.Builder
	fmt.Fprintf(&md, "### Chat History for %s\n\n", name)
	for _, ex := range history {
		fmt.Fprintf(&md, "**You:** %s\n\n", oneLine(ex.Question))
		fmt.Fprintf(&md, "**AI:** %s\n\n", ex.Answer)
		md.WriteString("---\n\n")
	}

	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md.String()), &buf); err != nil {
		return "", fmt.Errorf("render transcript: %w", err)
	}
	return template.HTML(buf.String()), nil
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
