// Package scoring rates rendered content with a deterministic structural
// pass and an external semantic assessment, and fuses both into one grade.
package scoring

import (
	"context"
	"log/slog"
	"math"

	"github.com/starford/scribe/internal/metrics"
	"github.com/starford/scribe/internal/models"
)

// Engine produces ScoreResults. It is safe for concurrent use.
type Engine struct {
	analyzer Analyzer
	rules    Rules
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewEngine creates an Engine. A nil analyzer scores every page as
// semantically unavailable.
func NewEngine(analyzer Analyzer, rules Rules, logger *slog.Logger, m *metrics.Metrics) *Engine {
	return &Engine{analyzer: analyzer, rules: rules, logger: logger, metrics: m}
}

// ScoreDocument renders doc and scores the markup.
func (e *Engine) ScoreDocument(ctx context.Context, doc *models.GeneratedDocument, keyword string) *models.ScoreResult {
	return e.Score(ctx, Render(doc), keyword)
}

// Score always returns a result. Unparsable markup, a failed semantic call
// or an unusable semantic reply lower the score; none of them abort.
func (e *Engine) Score(ctx context.Context, markup, keyword string) *models.ScoreResult {
	p, err := parsePage(markup, keyword)
	if err != nil {
		e.logger.Warn("scoring: markup unreadable", slog.String("error", err.Error()))
		p = &page{metrics: models.StructuralMetrics{Headings: map[string]int{}}}
	}
	tech := technical(p.metrics, e.rules)

	res := &models.ScoreResult{
		TechnicalScore: tech.score,
		Metrics:        p.metrics,
	}

	report, semErr := e.semantic(ctx, p, keyword)
	if semErr != nil {
		e.logger.Warn("scoring: semantic analysis unavailable, scoring it 0",
			slog.String("keyword", keyword),
			slog.String("error", semErr.Error()))
		res.Issues = append(res.Issues, models.Issue{
			Type:     "semantic_unavailable",
			Severity: models.SeverityHigh,
			Message:  "semantic analysis failed: " + semErr.Error(),
			Impact:   "the semantic half of the score counts as 0",
			Solution: "re-run scoring once the analysis service is reachable",
		})
		res.FailedChecks = append(res.FailedChecks, "semantic_analysis")
	} else {
		res.SemanticScore = report.Score
		res.Issues = append(res.Issues, report.Issues...)
		res.Recommendations = append(res.Recommendations, report.Recommendations...)
		res.PassedChecks = append(res.PassedChecks, report.PassedChecks...)
		res.FailedChecks = append(res.FailedChecks, report.FailedChecks...)
	}

	res.Issues = append(res.Issues, tech.issues...)
	res.PassedChecks = append(res.PassedChecks, tech.passed...)
	res.FailedChecks = append(res.FailedChecks, tech.failed...)

	res.Score = Combine(res.TechnicalScore, res.SemanticScore)
	res.Grade = models.GradeFor(res.Score)

	e.metrics.Score(res.Score, semErr != nil)
	e.logger.Debug("scoring: page scored",
		slog.String("keyword", keyword),
		slog.Int("score", res.Score),
		slog.Int("technical", res.TechnicalScore),
		slog.Int("semantic", res.SemanticScore),
		slog.String("grade", res.Grade))
	return res
}

func (e *Engine) semantic(ctx context.Context, p *page, keyword string) (*SemanticReport, error) {
	if e.analyzer == nil {
		return nil, errNoAnalyzer
	}
	content := p.metrics.Title + "\n\n" + p.text
	return e.analyzer.Analyze(ctx, content, keyword)
}

// Combine is the flat average of the two sub-scores, rounded half away
// from zero.
func Combine(technical, semantic int) int {
	return int(math.Round(float64(technical+semantic) / 2))
}
