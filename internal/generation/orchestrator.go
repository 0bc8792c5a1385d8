// Package generation turns a ContentRequest into a GeneratedDocument through
// a cached, throttled call to the generative-text service.
package generation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/scribe/internal/apperr"
	"github.com/starford/scribe/internal/cache"
	"github.com/starford/scribe/internal/checksum"
	"github.com/starford/scribe/internal/llm"
	"github.com/starford/scribe/internal/metrics"
	"github.com/starford/scribe/internal/models"
	"github.com/starford/scribe/internal/parser"
	"github.com/starford/scribe/internal/throttle"
)

// DefaultTTL is how long a generated document stays fresh in the cache.
const DefaultTTL = 24 * time.Hour

// Orchestrator owns the cache-check, throttle, call, parse and fallback
// sequence. It is safe for concurrent use; the cache and limiter it holds
// are the only shared state.
type Orchestrator struct {
	gen     llm.TextGenerator
	store   cache.Store
	limiter *throttle.Limiter
	ttl     time.Duration
	chain   []parser.Strategy
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCache sets the document cache. Without one every call goes out.
func WithCache(s cache.Store) Option {
	return func(o *Orchestrator) { o.store = s }
}

// WithLimiter sets the shared limiter.
func WithLimiter(l *throttle.Limiter) Option {
	return func(o *Orchestrator) { o.limiter = l }
}

func WithTTL(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.ttl = d
		}
	}
}

// WithParserChain replaces the JSON recovery chain.
func WithParserChain(chain []parser.Strategy) Option {
	return func(o *Orchestrator) { o.chain = chain }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// New creates an Orchestrator around gen.
func New(gen llm.TextGenerator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		gen:    gen,
		ttl:    DefaultTTL,
		chain:  parser.DefaultChain,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.limiter == nil {
		o.limiter = throttle.New(0, o.logger)
	}
	return o
}

// CacheKey returns the cache key for req.
func CacheKey(req models.ContentRequest) string {
	return checksum.Key("doc", req.Fingerprint())
}

// Generate returns a document for req. A fresh cached document is returned
// without an external call. Malformed or invariant-violating output is
// replaced by the fallback document. Only transport-class failures, which
// are *apperr.ExternalError values, and context errors are returned.
func (o *Orchestrator) Generate(ctx context.Context, req models.ContentRequest) (*models.GeneratedDocument, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidRequest, err)
	}
	log := o.logger.With(slog.String("keyword", req.Keyword), slog.String("language", req.Language))

	key := CacheKey(req)
	// Feedback makes the output request-specific; such documents neither
	// read from nor populate the shared cache.
	cacheable := o.store != nil && len(req.Feedback) == 0
	if cacheable {
		if doc, ok := o.store.Get(ctx, key); ok {
			log.Debug("generation: cache hit")
			o.metrics.Generation(metrics.OutcomeCacheHit)
			return doc, nil
		}
	}

	if err := o.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("generation: throttle: %w", err)
	}

	start := time.Now()
	text, err := o.gen.Complete(ctx, BuildPrompt(req))
	o.metrics.ExternalCall("llm", time.Since(start), err)
	if err != nil {
		o.metrics.Generation(metrics.OutcomeError)
		log.Error("generation: external call failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("generation: complete: %w", err)
	}

	doc, strategy, err := o.parse(text)
	if err != nil {
		log.Warn("generation: unusable response, using fallback",
			slog.String("error", err.Error()),
			slog.Int("response_bytes", len(text)))
		o.metrics.Generation(metrics.OutcomeFallback)
		return Synthesize(req), nil
	}
	log.Info("generation: document accepted",
		slog.String("strategy", strategy),
		slog.Int("sections", len(doc.Sections)),
		slog.Int("word_count", doc.WordCount))
	o.metrics.Generation(metrics.OutcomeGenerated)

	if cacheable {
		if err := o.store.Set(ctx, key, doc, o.ttl); err != nil {
			log.Warn("generation: cache store failed", slog.String("error", err.Error()))
		}
	}
	return doc, nil
}

// parse recovers a document from text and enforces its invariants. A zero
// word_count is derived from the bodies; any other mismatch is rejected.
func (o *Orchestrator) parse(text string) (*models.GeneratedDocument, string, error) {
	doc, strategy, err := parser.Decode[models.GeneratedDocument](text, o.chain)
	if err != nil {
		return nil, "", err
	}
	if doc.WordCount == 0 {
		doc.WordCount = doc.BodyWordCount()
	}
	if err := doc.Validate(); err != nil {
		return nil, strategy, fmt.Errorf("invalid document: %w", err)
	}
	return doc, strategy, nil
}
