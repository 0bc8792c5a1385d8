// Package keywords enriches keyword lists with search metrics and an
// opportunity score.
package keywords

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/starford/scribe/internal/metrics"
	"github.com/starford/scribe/internal/models"
)

// BatchSize is the number of keywords sent per provider request.
const BatchSize = 80

// neutralCompetition stands in for a missing competition value.
const neutralCompetition = 0.5

// competitionFloor keeps the opportunity divisor away from zero.
const competitionFloor = 0.3

// Enricher batches keywords against a Provider and scores them.
type Enricher struct {
	provider    Provider
	batchSize   int
	parallelism int
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithParallelism lets up to n batches run at once. The default of 1 keeps
// requests sequential.
func WithParallelism(n int) Option {
	return func(e *Enricher) {
		if n > 0 {
			e.parallelism = n
		}
	}
}

// WithBatchSize lowers the number of keywords per provider request. Values
// above BatchSize are clamped to it.
func WithBatchSize(n int) Option {
	return func(e *Enricher) {
		if n > 0 {
			e.batchSize = min(n, BatchSize)
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Enricher) { e.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Enricher) { e.metrics = m }
}

// NewEnricher creates an Enricher around p.
func NewEnricher(p Provider, opts ...Option) *Enricher {
	e := &Enricher{
		provider:    p,
		batchSize:   BatchSize,
		parallelism: 1,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enrich returns one KeywordMetric per input keyword, in input order.
// Keywords the provider has no data for come back with every numeric field
// nil. A transport failure on any batch fails the whole call.
func (e *Enricher) Enrich(ctx context.Context, keywords []string, language, location string) ([]models.KeywordMetric, error) {
	out := make([]models.KeywordMetric, len(keywords))
	if len(keywords) == 0 {
		return out, nil
	}

	var batches [][]string
	for start := 0; start < len(keywords); start += e.batchSize {
		end := min(start+e.batchSize, len(keywords))
		batches = append(batches, keywords[start:end])
	}

	// Each batch writes only its own slot.
	results := make([][]Record, len(batches))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism)
	for i, batch := range batches {
		g.Go(func() error {
			recs, err := e.provider.Fetch(gctx, batch, language, location)
			if err != nil {
				return fmt.Errorf("keywords: batch %d/%d: %w", i+1, len(batches), err)
			}
			results[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := merge(results)

	// The maximum is taken over every matched input before any score is
	// computed.
	var maxVolume int64
	for _, kw := range keywords {
		if rec, ok := merged[Normalize(kw)]; ok && rec.Volume != nil && *rec.Volume > maxVolume {
			maxVolume = *rec.Volume
		}
	}

	matched := 0
	for i, kw := range keywords {
		out[i].Keyword = kw
		rec, ok := merged[Normalize(kw)]
		if !ok {
			continue
		}
		matched++
		out[i].Volume = rec.Volume
		out[i].CPC = rec.CPC
		if rec.Competition != nil {
			c := NormalizeCompetition(rec.Competition)
			out[i].Competition = &c
		}
		out[i].Opportunity = Opportunity(rec.Volume, maxVolume, rec.Competition)
	}

	e.metrics.KeywordsEnriched(matched, len(keywords)-matched)
	e.logger.Info("keywords: enrichment finished",
		slog.Int("keywords", len(keywords)),
		slog.Int("batches", len(batches)),
		slog.Int("matched", matched),
		slog.Int64("max_volume", maxVolume))
	return out, nil
}

// merge joins every batch by normalized keyword. For each field the first
// non-nil value seen wins.
func merge(batches [][]Record) map[string]Record {
	merged := make(map[string]Record)
	for _, recs := range batches {
		for _, r := range recs {
			key := Normalize(r.Keyword)
			if key == "" {
				continue
			}
			cur, ok := merged[key]
			if !ok {
				merged[key] = r
				continue
			}
			if cur.Volume == nil {
				cur.Volume = r.Volume
			}
			if cur.Competition == nil {
				cur.Competition = r.Competition
			}
			if cur.CPC == nil {
				cur.CPC = r.CPC
			}
			merged[key] = cur
		}
	}
	return merged
}

// NormalizeCompetition maps a competition value onto [0,1]. nil is the
// neutral 0.5, values above 1 are read as a 0-100 index.
func NormalizeCompetition(c *float64) float64 {
	if c == nil {
		return neutralCompetition
	}
	v := *c
	if v > 1 {
		v /= 100
	}
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// Opportunity is volume / maxVolume / (0.3 + competition). It is nil when
// volume is nil or zero, or when maxVolume is zero.
func Opportunity(volume *int64, maxVolume int64, competition *float64) *float64 {
	if volume == nil || *volume <= 0 || maxVolume <= 0 {
		return nil
	}
	score := float64(*volume) / float64(maxVolume) / (competitionFloor + NormalizeCompetition(competition))
	return &score
}
