package models

import "strings"

// Severity ranks how much an issue hurts the page.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ParseSeverity maps free text onto a Severity. Unknown values become medium.
func ParseSeverity(s string) Severity {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeverityLow:
		return SeverityLow
	case SeverityHigh:
		return SeverityHigh
	case SeverityCritical:
		return SeverityCritical
	default:
		return SeverityMedium
	}
}

// Issue is one actionable finding.
type Issue struct {
	Type     string   `json:"type"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Impact   string   `json:"impact,omitempty"`
	Solution string   `json:"solution,omitempty"`
}

// StructuralMetrics are deterministic measurements of rendered markup.
type StructuralMetrics struct {
	Title                 string         `json:"title"`
	TitleLength           int            `json:"title_length"`
	MetaDescription       string         `json:"meta_description"`
	MetaDescriptionLength int            `json:"meta_description_length"`
	Headings              map[string]int `json:"headings"`
	WordCount             int            `json:"word_count"`
	Images                int            `json:"images"`
	ImagesWithAlt         int            `json:"images_with_alt"`
	InternalLinks         int            `json:"internal_links"`
	ExternalLinks         int            `json:"external_links"`
	KeywordOccurrences    int            `json:"keyword_occurrences"`
	KeywordDensity        float64        `json:"keyword_density"`
}

// H returns the number of headings at the given level (1-6).
func (m StructuralMetrics) H(level int) int {
	if m.Headings == nil || level < 1 || level > 6 {
		return 0
	}
	return m.Headings[headingTag(level)]
}

func headingTag(level int) string {
	return "h" + string(rune('0'+level))
}

// ScoreResult is the outcome of one validation call. It is never mutated
// after it is returned.
type ScoreResult struct {
	Score           int               `json:"score"`
	Grade           string            `json:"grade"`
	TechnicalScore  int               `json:"technical_score"`
	SemanticScore   int               `json:"semantic_score"`
	Issues          []Issue           `json:"issues"`
	Metrics         StructuralMetrics `json:"metrics"`
	Recommendations []string          `json:"recommendations"`
	PassedChecks    []string          `json:"passed_checks"`
	FailedChecks    []string          `json:"failed_checks"`
}

// GradeFor maps a 0-100 score onto a letter grade. Boundary values resolve
// to the higher grade.
func GradeFor(score int) string {
	switch {
	case score >= 95:
		return "A"
	case score >= 85:
		return "B"
	case score >= 75:
		return "C"
	case score >= 65:
		return "D"
	case score >= 50:
		return "E"
	default:
		return "F"
	}
}
