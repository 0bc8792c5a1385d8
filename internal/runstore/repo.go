package runstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/scribe/internal/apperr"
	"github.com/starford/scribe/internal/checksum"
	"github.com/starford/scribe/internal/models"
	"github.com/starford/scribe/internal/optimizer"
)

// Run is one stored optimization run.
type Run struct {
	ID          string                    `json:"id"`
	Source      string                    `json:"source"`
	Request     models.ContentRequest     `json:"request"`
	Document    *models.GeneratedDocument `json:"document"`
	Score       *models.ScoreResult       `json:"score"`
	Accepted    bool                      `json:"accepted"`
	Attempts    int                       `json:"attempts"`
	BestAttempt int                       `json:"best_attempt"`
	History     []optimizer.Attempt       `json:"history"`
	Checksum    string                    `json:"checksum"`
	CreatedAt   time.Time                 `json:"created_at"`
}

// NewRun builds a Run from a finished loop result.
func NewRun(source string, req models.ContentRequest, res *optimizer.Result) *Run {
	return &Run{
		Source:      source,
		Request:     req,
		Document:    res.Document,
		Score:       res.Score,
		Accepted:    res.Accepted,
		Attempts:    res.Attempts,
		BestAttempt: res.BestAttempt,
		History:     res.History,
	}
}

// RunSummary is the listing form of a Run.
type RunSummary struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Keyword   string    `json:"keyword"`
	Language  string    `json:"language"`
	Title     string    `json:"title"`
	Score     int       `json:"score"`
	Grade     string    `json:"grade"`
	Accepted  bool      `json:"accepted"`
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"created_at"`
}

// ListOptions filters and pages ListRuns.
type ListOptions struct {
	Limit        int
	Offset       int
	Keyword      string
	AcceptedOnly bool
}

// SaveRun inserts r, assigning an ID and timestamp when missing.
func (db *DB) SaveRun(ctx context.Context, r *Run) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if r.Source == "" {
		r.Source = "api"
	}
	if r.Document != nil {
		sum, err := checksum.JSON(r.Document)
		if err != nil {
			return fmt.Errorf("runstore: checksum document: %w", err)
		}
		r.Checksum = sum
	}

	reqJSON, _ := json.Marshal(r.Request)
	docJSON, _ := json.Marshal(r.Document)
	scoreJSON, _ := json.Marshal(r.Score)
	histJSON, _ := json.Marshal(r.History)

	var title, grade string
	var score int
	if r.Document != nil {
		title = r.Document.Title
	}
	if r.Score != nil {
		score, grade = r.Score.Score, r.Score.Grade
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("runstore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, source, keyword, language, category, title, score, grade,
		                  accepted, attempts, best_attempt, checksum,
		                  request, document, score_result, history, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.Source, r.Request.Keyword, r.Request.Language, r.Request.Category, title, score, grade,
		r.Accepted, r.Attempts, r.BestAttempt, r.Checksum,
		string(reqJSON), string(docJSON), string(scoreJSON), string(histJSON), r.CreatedAt)
	if err != nil {
		return fmt.Errorf("runstore: insert run: %w", err)
	}

	if err := ftsUpsert(tx, r.ID, r.Request.Keyword, title, documentText(r.Document)); err != nil {
		return err
	}
	return tx.Commit()
}

// GetRun returns the run with id, or apperr.ErrNotFound.
func (db *DB) GetRun(ctx context.Context, id string) (*Run, error) {
	var (
		r                                   Run
		reqJSON, docJSON, scoreJSON, histJS string
	)
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, source, accepted, attempts, best_attempt, checksum,
		       request, document, score_result, history, created_at
		FROM runs WHERE id = ?
	`, id).Scan(&r.ID, &r.Source, &r.Accepted, &r.Attempts, &r.BestAttempt, &r.Checksum,
		&reqJSON, &docJSON, &scoreJSON, &histJS, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("runstore: get run: %w", err)
	}

	if err := json.Unmarshal([]byte(reqJSON), &r.Request); err != nil {
		return nil, fmt.Errorf("runstore: decode request: %w", err)
	}
	if err := json.Unmarshal([]byte(docJSON), &r.Document); err != nil {
		return nil, fmt.Errorf("runstore: decode document: %w", err)
	}
	if err := json.Unmarshal([]byte(scoreJSON), &r.Score); err != nil {
		return nil, fmt.Errorf("runstore: decode score: %w", err)
	}
	if err := json.Unmarshal([]byte(histJS), &r.History); err != nil {
		return nil, fmt.Errorf("runstore: decode history: %w", err)
	}
	return &r, nil
}

// ListRuns returns a page of summaries, newest first, and the total count.
func (db *DB) ListRuns(ctx context.Context, opts ListOptions) ([]RunSummary, int, error) {
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	var where []string
	var args []any
	if opts.Keyword != "" {
		where = append(where, "keyword = ? COLLATE NOCASE")
		args = append(args, opts.Keyword)
	}
	if opts.AcceptedOnly {
		where = append(where, "accepted = 1")
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("runstore: count runs: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+summaryColumns+`
		FROM runs`+clause+`
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?
	`, append(args, opts.Limit, opts.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("runstore: list runs: %w", err)
	}
	defer rows.Close()

	out, err := scanSummaries(rows)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

const summaryColumns = `id, source, keyword, language, title, score, grade, accepted, attempts, created_at`

func scanSummaries(rows *sql.Rows) ([]RunSummary, error) {
	out := []RunSummary{}
	for rows.Next() {
		var s RunSummary
		if err := rows.Scan(&s.ID, &s.Source, &s.Keyword, &s.Language, &s.Title,
			&s.Score, &s.Grade, &s.Accepted, &s.Attempts, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("runstore: scan run: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// documentText flattens the searchable copy of doc.
func documentText(doc *models.GeneratedDocument) string {
	if doc == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(doc.Introduction)
	var walk func([]models.Section)
	walk = func(sections []models.Section) {
		for _, s := range sections {
			b.WriteString("\n")
			b.WriteString(s.Heading)
			b.WriteString("\n")
			b.WriteString(s.Body)
			walk(s.Subsections)
		}
	}
	walk(doc.Sections)
	for _, f := range doc.FAQ {
		b.WriteString("\n")
		b.WriteString(f.Question)
		b.WriteString("\n")
		b.WriteString(f.Answer)
	}
	return b.String()
}
