package models

import (
	"strings"
	"testing"
)

func TestGradeFor(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{100, "A"}, {96, "A"}, {95, "A"},
		{94, "B"}, {90, "B"}, {85, "B"},
		{84, "C"}, {80, "C"}, {75, "C"},
		{74, "D"}, {70, "D"}, {65, "D"},
		{64, "E"}, {55, "E"}, {50, "E"},
		{49, "F"}, {40, "F"}, {0, "F"},
	}
	for _, tt := range tests {
		if got := GradeFor(tt.score); got != tt.want {
			t.Errorf("GradeFor(%d) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestGradeForIsMonotone(t *testing.T) {
	prev := GradeFor(0)
	for s := 1; s <= 100; s++ {
		g := GradeFor(s)
		if g > prev {
			t.Fatalf("grade worsened from %s to %s at %d", prev, g, s)
		}
		prev = g
	}
}

func TestParseSeverity(t *testing.T) {
	tests := map[string]Severity{
		"low":      SeverityLow,
		" HIGH ":   SeverityHigh,
		"Critical": SeverityCritical,
		"medium":   SeverityMedium,
		"blocker":  SeverityMedium,
		"":         SeverityMedium,
	}
	for in, want := range tests {
		if got := ParseSeverity(in); got != want {
			t.Errorf("ParseSeverity(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestFingerprintIgnoresCaseAndFeedback(t *testing.T) {
	a := ContentRequest{Keyword: "Solar Panels ", Language: "EN", Category: "guide", TargetWordCount: 1000}
	b := ContentRequest{Keyword: "solar panels", Language: "en", Category: "Guide", Authority: true}
	if a.Fingerprint() != b.Fingerprint() {
		t.Errorf("%q != %q", a.Fingerprint(), b.Fingerprint())
	}
	if a.Fingerprint() != a.WithFeedback("more detail").Fingerprint() {
		t.Error("feedback changed the fingerprint")
	}
	c := b
	c.Category = "review"
	if c.Fingerprint() == b.Fingerprint() {
		t.Error("category must be part of the fingerprint")
	}
}

func TestWithFeedbackCopies(t *testing.T) {
	base := ContentRequest{Keyword: "tea", Language: "en", Feedback: []string{"a"}}
	next := base.WithFeedback("b", "a", " ", "b")
	if got := strings.Join(next.Feedback, ","); got != "a,b" {
		t.Errorf("feedback = %q", got)
	}
	if len(base.Feedback) != 1 {
		t.Errorf("original mutated: %v", base.Feedback)
	}
}

func TestContentRequestValidate(t *testing.T) {
	if err := (ContentRequest{Keyword: "tea", Language: "en"}).Validate(); err != nil {
		t.Errorf("valid request: %v", err)
	}
	bad := []ContentRequest{
		{Language: "en"},
		{Keyword: "tea"},
		{Keyword: "tea", Language: "en", TargetWordCount: -1},
	}
	for _, r := range bad {
		if err := r.Validate(); err == nil {
			t.Errorf("expected error for %+v", r)
		}
	}
}

func validDoc() GeneratedDocument {
	d := GeneratedDocument{
		Title:           strings.Repeat("t", 60),
		MetaTitle:       strings.Repeat("m", 55),
		MetaDescription: strings.Repeat("d", 155),
	}
	for i := 0; i < 5; i++ {
		d.Sections = append(d.Sections, Section{Heading: "h", Body: "one two three four five six seven eight nine ten"})
		d.FAQ = append(d.FAQ, FAQItem{Question: "q", Answer: "a"})
	}
	d.Sections[0].Subsections = []Section{{Heading: "sub", Body: "eleven twelve"}}
	d.WordCount = 52
	return d
}

func TestGeneratedDocumentValidate(t *testing.T) {
	if err := validDoc().Validate(); err != nil {
		t.Fatalf("valid document: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(d *GeneratedDocument)
	}{
		{"title short", func(d *GeneratedDocument) { d.Title = strings.Repeat("t", 49) }},
		{"title long", func(d *GeneratedDocument) { d.Title = strings.Repeat("t", 71) }},
		{"meta title long", func(d *GeneratedDocument) { d.MetaTitle = strings.Repeat("m", 61) }},
		{"meta description short", func(d *GeneratedDocument) { d.MetaDescription = strings.Repeat("d", 149) }},
		{"four sections", func(d *GeneratedDocument) { d.Sections = d.Sections[:4] }},
		{"six faq", func(d *GeneratedDocument) { d.FAQ = append(d.FAQ, FAQItem{Question: "q", Answer: "a"}) }},
		{"empty faq answer", func(d *GeneratedDocument) { d.FAQ[2].Answer = "" }},
		{"word count high", func(d *GeneratedDocument) { d.WordCount = 58 }},
		{"word count low", func(d *GeneratedDocument) { d.WordCount = 46 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDoc()
			d.Sections = append([]Section(nil), d.Sections...)
			tt.mutate(&d)
			if err := d.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestWordCountTolerance(t *testing.T) {
	d := validDoc()
	for _, wc := range []int{47, 52, 57} {
		d.WordCount = wc
		if err := d.Validate(); err != nil {
			t.Errorf("word_count %d should be within 10%% of 52: %v", wc, err)
		}
	}
	d.WordCount = 0
	err := d.Validate()
	if err == nil || !strings.Contains(err.Error(), ErrWordCountMismatch.Error()) {
		t.Errorf("zero word_count must fail, got %v", err)
	}
}

func TestRuneLengthsCountCharacters(t *testing.T) {
	d := validDoc()
	d.Title = strings.Repeat("é", 60) // 120 bytes
	if err := d.Validate(); err != nil {
		t.Errorf("multi-byte title of 60 runes rejected: %v", err)
	}
}
