// Package optimizer runs the generate, score and regenerate loop.
package optimizer

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/starford/scribe/internal/apperr"
	"github.com/starford/scribe/internal/generation"
	"github.com/starford/scribe/internal/metrics"
	"github.com/starford/scribe/internal/models"
)

// Feedback limits per regeneration.
const (
	maxIssueNotes          = 8
	maxRecommendationNotes = 5
)

// Generator produces a document for a request.
type Generator interface {
	Generate(ctx context.Context, req models.ContentRequest) (*models.GeneratedDocument, error)
}

// Scorer rates a document. It must always return a result.
type Scorer interface {
	ScoreDocument(ctx context.Context, doc *models.GeneratedDocument, keyword string) *models.ScoreResult
}

// Attempt records one pass through the loop.
type Attempt struct {
	Number   int      `json:"number"`
	Score    int      `json:"score"`
	Grade    string   `json:"grade"`
	Fallback bool     `json:"fallback"`
	Error    string   `json:"error,omitempty"`
	Feedback []string `json:"feedback,omitempty"`
}

// Result is the best candidate seen across all attempts.
type Result struct {
	Document    *models.GeneratedDocument `json:"document"`
	Score       *models.ScoreResult       `json:"score"`
	Accepted    bool                      `json:"accepted"`
	Attempts    int                       `json:"attempts"`
	BestAttempt int                       `json:"best_attempt"`
	History     []Attempt                 `json:"history"`
}

// Observer is told about every finished attempt.
type Observer func(req models.ContentRequest, a Attempt)

// Loop drives generation until a document clears the threshold or the
// attempt budget runs out.
type Loop struct {
	gen      Generator
	scorer   Scorer
	fallback func(models.ContentRequest) *models.GeneratedDocument
	observer Observer
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures a Loop.
type Option func(*Loop)

func WithObserver(o Observer) Option {
	return func(l *Loop) { l.observer = o }
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) { l.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Loop) { l.metrics = m }
}

// WithFallback replaces the document used when generation fails outright.
func WithFallback(f func(models.ContentRequest) *models.GeneratedDocument) Option {
	return func(l *Loop) { l.fallback = f }
}

// New creates a Loop.
func New(gen Generator, scorer Scorer, opts ...Option) *Loop {
	l := &Loop{
		gen:      gen,
		scorer:   scorer,
		fallback: generation.Synthesize,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run generates and scores up to maxAttempts candidates for req and returns
// the highest-scoring one. A score of at least minScore stops the loop
// early. Generation transport failures do not end the run: the attempt is
// scored on a fallback document and recorded with its error. Only an
// invalid request or a cancelled context is returned as an error.
func (l *Loop) Run(ctx context.Context, req models.ContentRequest, minScore, maxAttempts int) (*Result, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	log := l.logger.With(slog.String("keyword", req.Keyword))

	res := &Result{}
	current := req
	for n := 1; n <= maxAttempts; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		a := Attempt{Number: n, Feedback: current.Feedback}
		doc, err := l.gen.Generate(ctx, current)
		if err != nil {
			if errors.Is(err, apperr.ErrInvalidRequest) {
				return nil, err
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			log.Warn("optimizer: generation failed, scoring fallback",
				slog.Int("attempt", n),
				slog.String("error", err.Error()))
			a.Error = err.Error()
			a.Fallback = true
			doc = l.fallback(current)
		}

		score := l.scorer.ScoreDocument(ctx, doc, req.Keyword)
		a.Score, a.Grade = score.Score, score.Grade
		res.History = append(res.History, a)
		res.Attempts = n
		if l.observer != nil {
			l.observer(req, a)
		}
		log.Info("optimizer: attempt scored",
			slog.Int("attempt", n),
			slog.Int("score", score.Score),
			slog.String("grade", score.Grade))

		if res.Score == nil || score.Score > res.Score.Score {
			res.Document, res.Score, res.BestAttempt = doc, score, n
		}
		if score.Score >= minScore {
			break
		}
		if n < maxAttempts {
			current = current.WithFeedback(Feedback(score)...)
		}
	}

	res.Accepted = res.Score.Score >= minScore
	l.metrics.Run(res.Attempts, res.Accepted)
	log.Info("optimizer: run finished",
		slog.Bool("accepted", res.Accepted),
		slog.Int("attempts", res.Attempts),
		slog.Int("best_attempt", res.BestAttempt),
		slog.Int("best_score", res.Score.Score))
	return res, nil
}

// unactionable lists issue types the document contract cannot address:
// rendered documents carry no images.
var unactionable = map[string]bool{
	"semantic_unavailable": true,
	"image_count":          true,
	"image_alt_text":       true,
}

var severityRank = map[models.Severity]int{
	models.SeverityCritical: 0,
	models.SeverityHigh:     1,
	models.SeverityMedium:   2,
	models.SeverityLow:      3,
}

// Feedback turns a score into regeneration notes: the most severe issues
// first, then the recommendations. Issues the model cannot act on are dropped.
func Feedback(score *models.ScoreResult) []string {
	issues := slices.Clone(score.Issues)
	slices.SortStableFunc(issues, func(a, b models.Issue) int {
		return cmp.Compare(severityRank[a.Severity], severityRank[b.Severity])
	})

	var notes []string
	for _, is := range issues {
		if len(notes) == maxIssueNotes {
			break
		}
		if unactionable[is.Type] {
			continue
		}
		note := is.Message
		if is.Solution != "" {
			note = fmt.Sprintf("%s; fix: %s", is.Message, is.Solution)
		}
		notes = append(notes, note)
	}
	for i, r := range score.Recommendations {
		if i == maxRecommendationNotes {
			break
		}
		notes = append(notes, r)
	}
	return notes
}
