// Package testutil provides shared fakes and fixtures for package tests.
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/starford/scribe/internal/models"
)

// Logger returns a logger that drops everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// FakeGenerator is a scripted llm.TextGenerator. Replies are served in order
// and the last one repeats. Fn, when set, wins over Replies.
type FakeGenerator struct {
	Replies []string
	Err     error
	Fn      func(prompt string) (string, error)

	mu      sync.Mutex
	prompts []string
}

// Complete implements llm.TextGenerator.
func (f *FakeGenerator) Complete(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	n := len(f.prompts)
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()

	if f.Fn != nil {
		return f.Fn(prompt)
	}
	if f.Err != nil {
		return "", f.Err
	}
	if len(f.Replies) == 0 {
		return "", nil
	}
	if n >= len(f.Replies) {
		n = len(f.Replies) - 1
	}
	return f.Replies[n], nil
}

// Calls returns how many times Complete ran.
func (f *FakeGenerator) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

// Prompts returns a copy of every prompt received.
func (f *FakeGenerator) Prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

// ValidDocument returns a document that satisfies every invariant. The
// keyword appears in the title and each section body.
func ValidDocument(keyword string) models.GeneratedDocument {
	doc := models.GeneratedDocument{
		Title:           exact("The Complete "+keyword+" Handbook for Careful Buyers", 60),
		MetaTitle:       exact(keyword+" Handbook and Buying Advice for Everyone", 55),
		MetaDescription: exact("Learn how "+keyword+" works, what it costs, how to compare offers and which mistakes to avoid, with answers to the questions readers ask most often about it.", 155),
		Introduction:    "An introduction to " + keyword + ".",
	}
	for i := 1; i <= 6; i++ {
		doc.Sections = append(doc.Sections, models.Section{
			Heading: fmt.Sprintf("Part %d about %s", i, keyword),
			Body:    strings.Repeat(keyword+" explained with practical detail and examples. ", 10),
		})
	}
	for i := 1; i <= models.FAQCount; i++ {
		doc.FAQ = append(doc.FAQ, models.FAQItem{
			Question: fmt.Sprintf("Question %d about %s?", i, keyword),
			Answer:   fmt.Sprintf("Answer %d.", i),
		})
	}
	doc.InternalLinks = []models.InternalLink{{Anchor: keyword, URL: "/" + strings.ReplaceAll(keyword, " ", "-")}}
	doc.WordCount = doc.BodyWordCount()
	return doc
}

// JSON marshals v or fails the test.
func JSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(data)
}

// exact pads s with '.' or cuts it so it is n runes long. It never ends
// in a space.
func exact(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		r = r[:n]
	}
	for len(r) < n {
		r = append(r, '.')
	}
	if r[n-1] == ' ' {
		r[n-1] = '.'
	}
	return string(r)
}
