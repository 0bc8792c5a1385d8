package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/scribe/internal/models"
	"github.com/starford/scribe/internal/pipeline"
	"github.com/starford/scribe/internal/runstore"
)

// Request limits.
const (
	maxEnrichKeywords = 1000
	maxBatchJobs      = 50
	maxParallelism    = 4
)

// Handler holds API route handlers.
type Handler struct {
	svc *pipeline.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *pipeline.Service) *Handler {
	return &Handler{svc: svc}
}

// Generate handles POST /api/generate.
//
//	@Summary		Generate one document for a keyword
//	@Tags			content
//	@Accept			json
//	@Produce		json
//	@Param			body	body		GenerateRequest	true	"Content request"
//	@Success		200		{object}	models.GeneratedDocument
//	@Failure		400		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/generate [post]
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	doc, err := h.svc.Generate(r.Context(), req)
	if err != nil {
		writeError(w, "generate", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// Score handles POST /api/score.
//
//	@Summary		Score markup or a generated document
//	@Tags			content
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ScoreRequest	true	"Markup or document plus keyword"
//	@Success		200		{object}	models.ScoreResult
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/score [post]
func (h *Handler) Score(w http.ResponseWriter, r *http.Request) {
	var req ScoreRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.Score(r.Context(), req)
	if err != nil {
		writeError(w, "score", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// EnrichKeywords handles POST /api/keywords/enrich.
//
//	@Summary		Attach search metrics and opportunity to keywords
//	@Tags			keywords
//	@Accept			json
//	@Produce		json
//	@Param			body	body		EnrichRequest	true	"Keywords"
//	@Success		200		{object}	EnrichResponse
//	@Failure		400		{object}	errResponse
//	@Failure		503		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/keywords/enrich [post]
func (h *Handler) EnrichKeywords(w http.ResponseWriter, r *http.Request) {
	var req EnrichRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Keywords) > maxEnrichKeywords {
		writeJSON(w, http.StatusBadRequest, errorBody("too many keywords, max "+strconv.Itoa(maxEnrichKeywords)))
		return
	}
	out, err := h.svc.Enrich(r.Context(), pipeline.EnrichInput{
		Keywords: req.Keywords,
		Language: req.Language,
		Location: req.Location,
	})
	if err != nil {
		writeError(w, "enrich keywords", err)
		return
	}
	if out == nil {
		out = []models.KeywordMetric{}
	}
	writeJSON(w, http.StatusOK, EnrichResponse{Keywords: out})
}

// Optimize handles POST /api/optimize.
//
//	@Summary		Generate, score and regenerate until the threshold is met
//	@Tags			content
//	@Accept			json
//	@Produce		json
//	@Param			body	body		OptimizeRequest	true	"Request and acceptance settings"
//	@Success		200		{object}	Run
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/optimize [post]
func (h *Handler) Optimize(w http.ResponseWriter, r *http.Request) {
	var req OptimizeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	run, err := h.svc.Optimize(r.Context(), req.input())
	if err != nil {
		writeError(w, "optimize", err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// OptimizeBatch handles POST /api/optimize/batch.
//
//	@Summary		Optimize independent requests concurrently
//	@Tags			content
//	@Accept			json
//	@Produce		json
//	@Param			body	body		BatchRequest	true	"Jobs"
//	@Success		200		{object}	BatchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/optimize/batch [post]
func (h *Handler) OptimizeBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Jobs) == 0 || len(req.Jobs) > maxBatchJobs {
		writeJSON(w, http.StatusBadRequest, errorBody("jobs must hold between 1 and "+strconv.Itoa(maxBatchJobs)+" entries"))
		return
	}
	parallelism := min(max(req.Parallelism, 1), maxParallelism)

	jobs := make([]pipeline.OptimizeInput, len(req.Jobs))
	for i, j := range req.Jobs {
		jobs[i] = j.input()
	}
	items, err := h.svc.OptimizeBatch(r.Context(), jobs, parallelism)
	if err != nil {
		writeError(w, "optimize batch", err)
		return
	}
	writeJSON(w, http.StatusOK, BatchResponse{Items: items})
}

// ListRuns handles GET /api/runs.
//
//	@Summary		List or search stored runs
//	@Tags			runs
//	@Produce		json
//	@Param			limit		query		int		false	"Page size"
//	@Param			offset		query		int		false	"Page offset"
//	@Param			keyword		query		string	false	"Exact keyword filter"
//	@Param			accepted	query		bool	false	"Only accepted runs"
//	@Param			q			query		string	false	"Search keywords and copy"
//	@Success		200			{object}	RunListResponse
//	@Security		BearerAuth
//	@Router			/runs [get]
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	if query := strings.TrimSpace(q.Get("q")); query != "" {
		runs, err := h.svc.SearchRuns(r.Context(), query, limit)
		if err != nil {
			writeError(w, "search runs", err)
			return
		}
		writeJSON(w, http.StatusOK, RunListResponse{Runs: runs, Total: len(runs)})
		return
	}

	accepted, _ := strconv.ParseBool(q.Get("accepted"))
	runs, total, err := h.svc.ListRuns(r.Context(), runstore.ListOptions{
		Limit:        limit,
		Offset:       offset,
		Keyword:      q.Get("keyword"),
		AcceptedOnly: accepted,
	})
	if err != nil {
		writeError(w, "list runs", err)
		return
	}
	writeJSON(w, http.StatusOK, RunListResponse{Runs: runs, Total: total})
}

// GetRun handles GET /api/runs/{id}.
//
//	@Summary		Get one stored run
//	@Tags			runs
//	@Produce		json
//	@Param			id	path		string	true	"Run ID"
//	@Success		200	{object}	Run
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/runs/{id} [get]
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.svc.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get run", err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}
