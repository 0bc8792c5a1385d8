// Package models defines the domain types for scribe.
package models

import (
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Length bands and counts every accepted document must satisfy.
const (
	TitleMinRunes           = 50
	TitleMaxRunes           = 70
	MetaTitleMinRunes       = 50
	MetaTitleMaxRunes       = 60
	MetaDescriptionMinRunes = 150
	MetaDescriptionMaxRunes = 160
	FAQCount                = 5
	MinSections             = 5
	WordCountTolerance      = 0.10
)

// ContentRequest identifies one unit of content work. Treat it as immutable;
// WithFeedback returns a copy.
type ContentRequest struct {
	Keyword         string   `json:"keyword" yaml:"keyword"`
	Language        string   `json:"language" yaml:"language"`
	Category        string   `json:"category" yaml:"category"`
	TargetWordCount int      `json:"target_word_count" yaml:"target_word_count"`
	Authority       bool     `json:"authority" yaml:"authority"`
	Feedback        []string `json:"feedback,omitempty" yaml:"feedback,omitempty"`
}

// Validate checks the request fields.
func (r ContentRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Keyword, validation.Required, validation.RuneLength(1, 200)),
		validation.Field(&r.Language, validation.Required, validation.RuneLength(2, 8)),
		validation.Field(&r.TargetWordCount, validation.Min(0), validation.Max(20000)),
	)
}

// Fingerprint returns the fields that define a cache identity.
func (r ContentRequest) Fingerprint() string {
	return strings.Join([]string{
		strings.ToLower(strings.TrimSpace(r.Keyword)),
		strings.ToLower(strings.TrimSpace(r.Language)),
		strings.ToLower(strings.TrimSpace(r.Category)),
	}, "|")
}

// WithFeedback returns a copy of r with notes appended to its feedback,
// skipping notes it already carries.
func (r ContentRequest) WithFeedback(notes ...string) ContentRequest {
	out := r
	out.Feedback = make([]string, 0, len(r.Feedback)+len(notes))
	seen := make(map[string]struct{}, len(r.Feedback)+len(notes))
	for _, n := range append(append([]string{}, r.Feedback...), notes...) {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out.Feedback = append(out.Feedback, n)
	}
	return out
}

// Section is one headed block of body copy.
type Section struct {
	Heading     string    `json:"heading"`
	Body        string    `json:"body"`
	Subsections []Section `json:"subsections,omitempty"`
}

// Validate checks that the section carries text.
func (s Section) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Heading, validation.Required),
		validation.Field(&s.Body, validation.Required),
	)
}

// FAQItem is one question and answer pair.
type FAQItem struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Validate checks that both halves are present.
func (f FAQItem) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Question, validation.Required),
		validation.Field(&f.Answer, validation.Required),
	)
}

// InternalLink is a suggested link to another page of the same site.
type InternalLink struct {
	Anchor  string `json:"anchor"`
	URL     string `json:"url"`
	Context string `json:"context,omitempty"`
}

// GeneratedDocument is the structured page copy produced for a request.
type GeneratedDocument struct {
	Title           string         `json:"title"`
	MetaTitle       string         `json:"meta_title"`
	MetaDescription string         `json:"meta_description"`
	Introduction    string         `json:"introduction"`
	Sections        []Section      `json:"sections"`
	FAQ             []FAQItem      `json:"faq"`
	InternalLinks   []InternalLink `json:"internal_links"`
	WordCount       int            `json:"word_count"`
}

// ErrWordCountMismatch is returned when the declared word count drifts from the body.
var ErrWordCountMismatch = errors.New("word_count is inconsistent with section bodies")

// Validate enforces the document invariants. A document that fails must not
// be accepted.
func (d GeneratedDocument) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Title, validation.Required, validation.RuneLength(TitleMinRunes, TitleMaxRunes)),
		validation.Field(&d.MetaTitle, validation.Required, validation.RuneLength(MetaTitleMinRunes, MetaTitleMaxRunes)),
		validation.Field(&d.MetaDescription, validation.Required, validation.RuneLength(MetaDescriptionMinRunes, MetaDescriptionMaxRunes)),
		validation.Field(&d.Sections, validation.Required, validation.Length(MinSections, 0)),
		validation.Field(&d.FAQ, validation.Required, validation.Length(FAQCount, FAQCount)),
		validation.Field(&d.WordCount, validation.By(d.checkWordCount)),
	)
}

func (d GeneratedDocument) checkWordCount(_ any) error {
	actual := d.BodyWordCount()
	if actual == 0 {
		return fmt.Errorf("%w: sections have no body text", ErrWordCountMismatch)
	}
	diff := d.WordCount - actual
	if diff < 0 {
		diff = -diff
	}
	if float64(diff) > WordCountTolerance*float64(actual) {
		return fmt.Errorf("%w: declared %d, counted %d", ErrWordCountMismatch, d.WordCount, actual)
	}
	return nil
}

// BodyWordCount counts the words of every section and subsection body.
func (d GeneratedDocument) BodyWordCount() int {
	var n int
	var walk func([]Section)
	walk = func(sections []Section) {
		for _, s := range sections {
			n += len(strings.Fields(s.Body))
			walk(s.Subsections)
		}
	}
	walk(d.Sections)
	return n
}
