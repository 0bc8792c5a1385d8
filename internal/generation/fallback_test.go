package generation

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/starford/scribe/internal/models"
)

func TestSynthesizeSatisfiesInvariants(t *testing.T) {
	keywords := []string{
		"",
		"tea",
		"  spaced    out   keyword ",
		"crème brûlée recipe",
		"Пылесос для дома",
		"日本語のキーワード",
		strings.Repeat("very long keyword ", 15),
	}
	for _, kw := range keywords {
		t.Run(kw, func(t *testing.T) {
			doc := Synthesize(models.ContentRequest{Keyword: kw, Language: "en"})
			if err := doc.Validate(); err != nil {
				t.Fatalf("invariants: %v", err)
			}
			if len(doc.FAQ) != models.FAQCount {
				t.Errorf("faq = %d", len(doc.FAQ))
			}
			if n := utf8.RuneCountInString(doc.MetaDescription); n < 150 || n > 160 {
				t.Errorf("meta description runes = %d", n)
			}
			if len(doc.InternalLinks) < 3 {
				t.Errorf("internal links = %d, want at least 3", len(doc.InternalLinks))
			}
			seen := map[string]bool{}
			for _, l := range doc.InternalLinks {
				if !strings.HasPrefix(l.URL, "/") || seen[l.URL] {
					t.Errorf("link url %q is not a unique site-relative path", l.URL)
				}
				seen[l.URL] = true
			}
		})
	}
}

func TestSynthesizeIsDeterministic(t *testing.T) {
	req := models.ContentRequest{Keyword: "garden hose", Language: "en"}
	a, b := Synthesize(req), Synthesize(req)
	if a.Title != b.Title || a.Sections[3].Body != b.Sections[3].Body || a.WordCount != b.WordCount {
		t.Error("fallback output differs between calls")
	}
	if !strings.Contains(a.Sections[0].Body, "garden hose") {
		t.Errorf("keyword not substituted: %q", a.Sections[0].Body)
	}
}

func TestFit(t *testing.T) {
	tests := []struct {
		in, pad string
		lo, hi  int
	}{
		{"short", " pad", 10, 12},
		{strings.Repeat("x", 100), " pad", 10, 12},
		{"ends with space pad", " ", 5, 16},
		{"", "", 3, 5},
	}
	for _, tt := range tests {
		got := fit(tt.in, tt.pad, tt.lo, tt.hi)
		if n := utf8.RuneCountInString(got); n < tt.lo || n > tt.hi {
			t.Errorf("fit(%q) = %q (%d runes), want [%d,%d]", tt.in, got, n, tt.lo, tt.hi)
		}
	}
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Solar Panels": "solar-panels",
		"  a -- b  ":   "a-b",
		"crème brûlée": "crème-brûlée",
		"!!!":          "",
	}
	for in, want := range tests {
		if got := slugify(in); got != want {
			t.Errorf("slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBuildPromptCarriesContract(t *testing.T) {
	p := BuildPrompt(models.ContentRequest{Keyword: "tea", Language: "de", TargetWordCount: 2200, Authority: true})
	for _, want := range []string{"keyword: tea", "language: de", "2200", "authoritative", `"meta_description"`, "exactly 5"} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
