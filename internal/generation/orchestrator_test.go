package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/starford/scribe/internal/apperr"
	"github.com/starford/scribe/internal/cache"
	"github.com/starford/scribe/internal/models"
	"github.com/starford/scribe/internal/testutil"
	"github.com/starford/scribe/internal/throttle"
)

func request(keyword string) models.ContentRequest {
	return models.ContentRequest{Keyword: keyword, Language: "en", Category: "guide"}
}

func newOrchestrator(gen *testutil.FakeGenerator, opts ...Option) *Orchestrator {
	base := []Option{WithCache(cache.NewMemory()), WithLogger(testutil.Logger())}
	return New(gen, append(base, opts...)...)
}

func TestGenerateCacheHit(t *testing.T) {
	doc := testutil.ValidDocument("solar panels")
	gen := &testutil.FakeGenerator{Replies: []string{testutil.JSON(t, doc)}}
	o := newOrchestrator(gen)
	ctx := context.Background()

	first, err := o.Generate(ctx, request("solar panels"))
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := o.Generate(ctx, request("Solar Panels"))
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if gen.Calls() != 1 {
		t.Errorf("calls = %d, want 1", gen.Calls())
	}
	if testutil.JSON(t, first) != testutil.JSON(t, second) {
		t.Error("cached document differs from the original")
	}
}

func TestGenerateCacheExpires(t *testing.T) {
	now := time.Now()
	mem := cache.NewMemory().WithClock(func() time.Time { return now })
	gen := &testutil.FakeGenerator{Replies: []string{testutil.JSON(t, testutil.ValidDocument("tea"))}}
	o := newOrchestrator(gen, WithCache(mem), WithTTL(time.Minute))

	if _, err := o.Generate(context.Background(), request("tea")); err != nil {
		t.Fatal(err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := o.Generate(context.Background(), request("tea")); err != nil {
		t.Fatal(err)
	}
	if gen.Calls() != 2 {
		t.Errorf("calls = %d, want 2 after expiry", gen.Calls())
	}
}

func TestGenerateFallbackOnMalformedOutput(t *testing.T) {
	valid := testutil.ValidDocument("coffee")
	short := valid
	short.FAQ = short.FAQ[:3]
	wrongCount := valid
	wrongCount.WordCount = valid.BodyWordCount() * 2

	tests := []struct {
		name  string
		reply string
	}{
		{"empty", ""},
		{"prose", "Sorry, I cannot help with that."},
		{"truncated", `{"title": "Coffee`},
		{"array", `[1, 2, 3]`},
		{"null", `null`},
		{"faq too short", testutil.JSON(t, short)},
		{"word count mismatch", testutil.JSON(t, wrongCount)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := cache.NewMemory()
			o := newOrchestrator(&testutil.FakeGenerator{Replies: []string{tt.reply}}, WithCache(mem))

			doc, err := o.Generate(context.Background(), request("coffee"))
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			if err := doc.Validate(); err != nil {
				t.Fatalf("fallback violates invariants: %v", err)
			}
			if !strings.Contains(doc.Introduction, "coffee") {
				t.Errorf("fallback does not mention keyword: %q", doc.Introduction)
			}
			if mem.Len() != 0 {
				t.Error("fallback document was cached")
			}
		})
	}
}

func TestGenerateRecoversWrappedJSON(t *testing.T) {
	doc := testutil.ValidDocument("bikes")
	doc.WordCount = 0
	body := testutil.JSON(t, doc)

	replies := map[string]string{
		"fenced":   "```json\n" + body + "\n```",
		"chatter":  "Here you go:\n" + body + "\nHope it helps!",
		"trailing": strings.Replace(body, `"word_count":0}`, `"word_count":0,}`, 1),
	}
	for name, reply := range replies {
		t.Run(name, func(t *testing.T) {
			o := newOrchestrator(&testutil.FakeGenerator{Replies: []string{reply}})
			got, err := o.Generate(context.Background(), request("bikes"))
			if err != nil {
				t.Fatal(err)
			}
			if got.Title != doc.Title {
				t.Errorf("title = %q, want model output", got.Title)
			}
			if got.WordCount != doc.BodyWordCount() {
				t.Errorf("word_count = %d, want derived %d", got.WordCount, doc.BodyWordCount())
			}
		})
	}
}

func TestGenerateClassifiesTransportErrors(t *testing.T) {
	gen := &testutil.FakeGenerator{Err: apperr.Classify("llm", 401, errors.New("bad key"))}
	o := newOrchestrator(gen)

	_, err := o.Generate(context.Background(), request("x"))
	if !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("err = %v, want unauthorized", err)
	}
	if apperr.KindOf(err) != apperr.KindUnauthorized {
		t.Errorf("kind = %q", apperr.KindOf(err))
	}
	if gen.Calls() != 1 {
		t.Errorf("calls = %d, transport errors must not be retried", gen.Calls())
	}
}

func TestGenerateFeedbackBypassesCache(t *testing.T) {
	gen := &testutil.FakeGenerator{Replies: []string{testutil.JSON(t, testutil.ValidDocument("wine"))}}
	mem := cache.NewMemory()
	o := newOrchestrator(gen, WithCache(mem))
	ctx := context.Background()

	if _, err := o.Generate(ctx, request("wine")); err != nil {
		t.Fatal(err)
	}
	req := request("wine").WithFeedback("add more headings")
	if _, err := o.Generate(ctx, req); err != nil {
		t.Fatal(err)
	}
	if gen.Calls() != 2 {
		t.Errorf("calls = %d, want 2", gen.Calls())
	}
	if p := gen.Prompts()[1]; !strings.Contains(p, "add more headings") {
		t.Error("feedback missing from prompt")
	}
}

func TestGenerateThrottlesMisses(t *testing.T) {
	gen := &testutil.FakeGenerator{Replies: []string{""}}
	o := newOrchestrator(gen, WithLimiter(throttle.New(50*time.Millisecond, testutil.Logger())))

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := o.Generate(context.Background(), request(fmt.Sprintf("kw %d", i))); err != nil {
			t.Fatal(err)
		}
	}
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Errorf("3 uncached calls took %v, want >= ~100ms", elapsed)
	}
}

func TestGenerateRejectsEmptyKeyword(t *testing.T) {
	o := newOrchestrator(&testutil.FakeGenerator{})
	_, err := o.Generate(context.Background(), models.ContentRequest{Language: "en"})
	if !errors.Is(err, apperr.ErrInvalidRequest) {
		t.Fatalf("err = %v", err)
	}
}
