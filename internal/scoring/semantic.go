package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/starford/scribe/internal/llm"
	"github.com/starford/scribe/internal/metrics"
	"github.com/starford/scribe/internal/models"
	"github.com/starford/scribe/internal/parser"
	"github.com/starford/scribe/internal/throttle"
)

// maxContentRunes caps the text sent to the semantic service.
const maxContentRunes = 24000

// ErrUnparsableReport is returned when the semantic reply holds no usable report.
var ErrUnparsableReport = errors.New("scoring: unparsable semantic report")

var errNoAnalyzer = errors.New("no semantic analyzer configured")

// SemanticReport is the outcome of a semantic relevance assessment.
type SemanticReport struct {
	Score           int
	Issues          []models.Issue
	Recommendations []string
	PassedChecks    []string
	FailedChecks    []string
}

// Analyzer rates content for relevance and readability against a keyword.
type Analyzer interface {
	Analyze(ctx context.Context, content, keyword string) (*SemanticReport, error)
}

// LLMAnalyzer asks the generative-text service for a JSON report.
type LLMAnalyzer struct {
	gen     llm.TextGenerator
	limiter *throttle.Limiter
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewLLMAnalyzer creates an analyzer. limiter may be shared with the
// generation orchestrator; nil disables throttling.
func NewLLMAnalyzer(gen llm.TextGenerator, limiter *throttle.Limiter, logger *slog.Logger, m *metrics.Metrics) *LLMAnalyzer {
	if limiter == nil {
		limiter = throttle.New(0, logger)
	}
	return &LLMAnalyzer{gen: gen, limiter: limiter, logger: logger, metrics: m}
}

// Analyze implements Analyzer.
func (a *LLMAnalyzer) Analyze(ctx context.Context, content, keyword string) (*SemanticReport, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	start := time.Now()
	text, err := a.gen.Complete(ctx, semanticPrompt(content, keyword))
	a.metrics.ExternalCall("semantic", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("scoring: semantic call: %w", err)
	}
	return ParseReport(text)
}

func semanticPrompt(content, keyword string) string {
	if r := []rune(content); len(r) > maxContentRunes {
		content = string(r[:maxContentRunes])
	}
	var b strings.Builder
	b.WriteString("You are an SEO editor. Assess the page below for topical relevance to the keyword ")
	b.WriteString("and for readability. Reply with ONE JSON object only:\n\n")
	b.WriteString(`{"score": 0-100, "issues": [{"type": "string", "severity": "low|medium|high|critical", `)
	b.WriteString(`"message": "string", "impact": "string", "solution": "string"}], `)
	b.WriteString(`"recommendations": ["string"], "passed_checks": ["string"], "failed_checks": ["string"]}`)
	b.WriteString("\n\nKeyword: ")
	b.WriteString(keyword)
	b.WriteString("\n\nPage:\n")
	b.WriteString(content)
	return b.String()
}

// number accepts a JSON number or a numeric string.
type number struct {
	value float64
	set   bool
}

func (n *number) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		return nil
	}
	s = strings.Trim(s, `"`)
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fmt.Errorf("not a number: %s", data)
	}
	n.value, n.set = v, true
	return nil
}

type reportPayload struct {
	Score  number `json:"score"`
	Issues []struct {
		Type     string `json:"type"`
		Severity string `json:"severity"`
		Message  string `json:"message"`
		Impact   string `json:"impact"`
		Solution string `json:"solution"`
	} `json:"issues"`
	Recommendations []string `json:"recommendations"`
	PassedChecks    []string `json:"passed_checks"`
	FailedChecks    []string `json:"failed_checks"`
}

// ParseReport recovers a SemanticReport from a free-form reply. The score is
// required and clamped to [0,100].
func ParseReport(text string) (*SemanticReport, error) {
	p, _, err := parser.Decode[reportPayload](text, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparsableReport, err)
	}
	if !p.Score.set || math.IsNaN(p.Score.value) {
		return nil, fmt.Errorf("%w: missing score", ErrUnparsableReport)
	}

	r := &SemanticReport{
		Score:           clampScore(p.Score.value),
		Recommendations: nonEmpty(p.Recommendations),
		PassedChecks:    nonEmpty(p.PassedChecks),
		FailedChecks:    nonEmpty(p.FailedChecks),
	}
	for _, is := range p.Issues {
		if strings.TrimSpace(is.Message) == "" {
			continue
		}
		typ := strings.TrimSpace(is.Type)
		if typ == "" {
			typ = "semantic"
		}
		r.Issues = append(r.Issues, models.Issue{
			Type:     typ,
			Severity: models.ParseSeverity(is.Severity),
			Message:  strings.TrimSpace(is.Message),
			Impact:   strings.TrimSpace(is.Impact),
			Solution: strings.TrimSpace(is.Solution),
		})
	}
	return r, nil
}

func clampScore(v float64) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return int(math.Round(v))
	}
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

var _ json.Unmarshaler = (*number)(nil)
