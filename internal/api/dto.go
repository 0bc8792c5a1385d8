package api

import (
	"github.com/starford/scribe/internal/models"
	"github.com/starford/scribe/internal/pipeline"
	"github.com/starford/scribe/internal/runstore"
)

// GenerateRequest is the request body for POST /generate.
type GenerateRequest = models.ContentRequest

// ScoreRequest is the request body for POST /score. Exactly one of markup
// and document is used; document wins.
type ScoreRequest = pipeline.ScoreInput

// EnrichRequest is the request body for POST /keywords/enrich.
type EnrichRequest struct {
	Keywords []string `json:"keywords" example:"heat pumps,solar panels" validate:"required"`
	Language string   `json:"language" example:"en"`
	Location string   `json:"location" example:"United States"`
}

// EnrichResponse lists one metric per requested keyword, in request order.
type EnrichResponse struct {
	Keywords []models.KeywordMetric `json:"keywords" validate:"required"`
}

// OptimizeRequest is the request body for POST /optimize.
type OptimizeRequest struct {
	Request     models.ContentRequest `json:"request" validate:"required"`
	MinScore    int                   `json:"min_score" example:"80"`
	MaxAttempts int                   `json:"max_attempts" example:"3"`
}

func (o OptimizeRequest) input() pipeline.OptimizeInput {
	return pipeline.OptimizeInput{
		Request:     o.Request,
		MinScore:    o.MinScore,
		MaxAttempts: o.MaxAttempts,
		Source:      pipeline.SourceAPI,
	}
}

// BatchRequest is the request body for POST /optimize/batch.
type BatchRequest struct {
	Jobs        []OptimizeRequest `json:"jobs" validate:"required"`
	Parallelism int               `json:"parallelism" example:"2"`
}

// BatchResponse carries one item per job, in request order.
type BatchResponse struct {
	Items []pipeline.BatchItem `json:"items" validate:"required"`
}

// Run is a stored optimization run (aliased from the store).
type Run = runstore.Run

// RunListResponse wraps paginated run listings.
type RunListResponse struct {
	Runs  []runstore.RunSummary `json:"runs" validate:"required"`
	Total int                   `json:"total" example:"42" validate:"required"`
}
