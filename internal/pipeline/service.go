// Package pipeline ties generation, scoring, enrichment and the optimization
// loop together behind the operations the API, MCP server, CLI and inbox call.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/starford/scribe/internal/apperr"
	"github.com/starford/scribe/internal/metrics"
	"github.com/starford/scribe/internal/models"
	"github.com/starford/scribe/internal/optimizer"
	"github.com/starford/scribe/internal/runstore"
	"github.com/starford/scribe/internal/sse"
)

// Run sources.
const (
	SourceAPI   = "api"
	SourceMCP   = "mcp"
	SourceCLI   = "cli"
	SourceInbox = "inbox"
)

// Scorer rates rendered documents and raw markup.
type Scorer interface {
	optimizer.Scorer
	Score(ctx context.Context, markup, keyword string) *models.ScoreResult
}

// Enricher attaches provider metrics to keywords.
type Enricher interface {
	Enrich(ctx context.Context, keywords []string, language, location string) ([]models.KeywordMetric, error)
}

// Events receives run progress.
type Events interface {
	RunStarted(keyword string)
	RunAttempt(ev sse.RunEvent)
	RunFinished(ev sse.RunEvent)
}

// Defaults fill in what callers leave empty.
type Defaults struct {
	Language    string
	Location    string
	MinScore    int
	MaxAttempts int
}

// Service is the application layer shared by every entry point.
type Service struct {
	gen      optimizer.Generator
	scorer   Scorer
	enricher Enricher
	runs     runstore.Store
	events   Events
	defaults Defaults
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures a Service.
type Option func(*Service)

func WithEnricher(e Enricher) Option {
	return func(s *Service) { s.enricher = e }
}

func WithRunStore(r runstore.Store) Option {
	return func(s *Service) { s.runs = r }
}

func WithEvents(e Events) Option {
	return func(s *Service) { s.events = e }
}

func WithDefaults(d Defaults) Option {
	return func(s *Service) { s.defaults = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates the pipeline service.
func NewService(gen optimizer.Generator, scorer Scorer, opts ...Option) *Service {
	s := &Service{
		gen:    gen,
		scorer: scorer,
		defaults: Defaults{
			Language:    "en",
			MinScore:    80,
			MaxAttempts: 3,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Defaults returns the configured defaults.
func (s *Service) Defaults() Defaults { return s.defaults }

func (s *Service) withDefaults(req models.ContentRequest) models.ContentRequest {
	req.Keyword = strings.TrimSpace(req.Keyword)
	if strings.TrimSpace(req.Language) == "" {
		req.Language = s.defaults.Language
	}
	return req
}

// Generate produces one document for req.
func (s *Service) Generate(ctx context.Context, req models.ContentRequest) (*models.GeneratedDocument, error) {
	return s.gen.Generate(ctx, s.withDefaults(req))
}

// ScoreInput is either raw markup or a structured document.
type ScoreInput struct {
	Keyword  string                    `json:"keyword"`
	Markup   string                    `json:"markup,omitempty"`
	Document *models.GeneratedDocument `json:"document,omitempty"`
}

// Score rates the markup or document in in.
func (s *Service) Score(ctx context.Context, in ScoreInput) (*models.ScoreResult, error) {
	kw := strings.TrimSpace(in.Keyword)
	if kw == "" {
		return nil, fmt.Errorf("%w: keyword is required", apperr.ErrInvalidRequest)
	}
	switch {
	case in.Document != nil:
		return s.scorer.ScoreDocument(ctx, in.Document, kw), nil
	case strings.TrimSpace(in.Markup) != "":
		return s.scorer.Score(ctx, in.Markup, kw), nil
	default:
		return nil, fmt.Errorf("%w: markup or document is required", apperr.ErrInvalidRequest)
	}
}

// EnrichInput names the keywords to look up.
type EnrichInput struct {
	Keywords []string `json:"keywords" yaml:"keywords"`
	Language string   `json:"language" yaml:"language"`
	Location string   `json:"location" yaml:"location"`
}

// Enrich returns one metric per input keyword, in input order.
func (s *Service) Enrich(ctx context.Context, in EnrichInput) ([]models.KeywordMetric, error) {
	if s.enricher == nil {
		return nil, fmt.Errorf("keyword metrics: %w", apperr.ErrUnavailable)
	}
	lang := in.Language
	if lang == "" {
		lang = s.defaults.Language
	}
	loc := in.Location
	if loc == "" {
		loc = s.defaults.Location
	}
	return s.enricher.Enrich(ctx, in.Keywords, lang, loc)
}

// OptimizeInput is one optimization job. Zero MinScore and MaxAttempts take
// the service defaults.
type OptimizeInput struct {
	Request     models.ContentRequest `json:"request" yaml:",inline"`
	MinScore    int                   `json:"min_score" yaml:"min_score"`
	MaxAttempts int                   `json:"max_attempts" yaml:"max_attempts"`
	Source      string                `json:"-" yaml:"-"`
}

// Optimize runs the loop for one request and records the run.
func (s *Service) Optimize(ctx context.Context, in OptimizeInput) (*runstore.Run, error) {
	req := s.withDefaults(in.Request)
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidRequest, err)
	}
	minScore := in.MinScore
	if minScore <= 0 {
		minScore = s.defaults.MinScore
	}
	maxAttempts := in.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = s.defaults.MaxAttempts
	}
	source := in.Source
	if source == "" {
		source = SourceAPI
	}

	if s.events != nil {
		s.events.RunStarted(req.Keyword)
	}
	loop := optimizer.New(s.gen, s.scorer,
		optimizer.WithLogger(s.logger),
		optimizer.WithMetrics(s.metrics),
		optimizer.WithObserver(s.observe))

	res, err := loop.Run(ctx, req, minScore, maxAttempts)
	if err != nil {
		return nil, err
	}

	run := runstore.NewRun(source, req, res)
	if s.runs != nil {
		if err := s.runs.SaveRun(ctx, run); err != nil {
			// the result is still valid without a history row
			s.logger.Warn("pipeline: save run failed",
				slog.String("keyword", req.Keyword),
				slog.String("error", err.Error()))
		}
	}
	if s.events != nil {
		s.events.RunFinished(sse.RunEvent{
			RunID:    run.ID,
			Keyword:  req.Keyword,
			Attempt:  res.BestAttempt,
			Score:    res.Score.Score,
			Grade:    res.Score.Grade,
			Accepted: res.Accepted,
		})
	}
	return run, nil
}

func (s *Service) observe(req models.ContentRequest, a optimizer.Attempt) {
	if s.events == nil {
		return
	}
	s.events.RunAttempt(sse.RunEvent{
		Keyword:  req.Keyword,
		Attempt:  a.Number,
		Score:    a.Score,
		Grade:    a.Grade,
		Fallback: a.Fallback,
	})
}

// BatchItem is the outcome of one job in a batch.
type BatchItem struct {
	Keyword string        `json:"keyword"`
	Run     *runstore.Run `json:"run,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// OptimizeBatch runs independent jobs with at most parallelism in flight.
// A failed job is reported on its item; only context cancellation aborts
// the batch.
func (s *Service) OptimizeBatch(ctx context.Context, jobs []OptimizeInput, parallelism int) ([]BatchItem, error) {
	if parallelism < 1 {
		parallelism = 1
	}
	out := make([]BatchItem, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for i, job := range jobs {
		g.Go(func() error {
			out[i].Keyword = job.Request.Keyword
			run, err := s.Optimize(gctx, job)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				out[i].Error = err.Error()
				return nil
			}
			out[i].Run = run
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListRuns pages through stored runs.
func (s *Service) ListRuns(ctx context.Context, opts runstore.ListOptions) ([]runstore.RunSummary, int, error) {
	if s.runs == nil {
		return []runstore.RunSummary{}, 0, nil
	}
	return s.runs.ListRuns(ctx, opts)
}

// GetRun returns one stored run.
func (s *Service) GetRun(ctx context.Context, id string) (*runstore.Run, error) {
	if s.runs == nil {
		return nil, apperr.ErrNotFound
	}
	return s.runs.GetRun(ctx, id)
}

// SearchRuns finds runs by keyword or generated copy.
func (s *Service) SearchRuns(ctx context.Context, query string, limit int) ([]runstore.RunSummary, error) {
	if s.runs == nil {
		return []runstore.RunSummary{}, nil
	}
	return s.runs.SearchRuns(ctx, query, limit)
}
