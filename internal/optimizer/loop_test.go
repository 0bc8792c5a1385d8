package optimizer

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/starford/scribe/internal/apperr"
	"github.com/starford/scribe/internal/generation"
	"github.com/starford/scribe/internal/models"
	"github.com/starford/scribe/internal/scoring"
	"github.com/starford/scribe/internal/testutil"
)

// seqGenerator hands out distinct documents and records the requests.
type seqGenerator struct {
	errs []error
	reqs []models.ContentRequest
}

func (g *seqGenerator) Generate(_ context.Context, req models.ContentRequest) (*models.GeneratedDocument, error) {
	n := len(g.reqs)
	g.reqs = append(g.reqs, req)
	if n < len(g.errs) && g.errs[n] != nil {
		return nil, g.errs[n]
	}
	doc := testutil.ValidDocument(req.Keyword)
	doc.Introduction = "attempt " + string(rune('1'+n))
	return &doc, nil
}

// seqScorer returns the scores in order.
type seqScorer struct {
	scores []int
	calls  int
}

func (s *seqScorer) ScoreDocument(_ context.Context, doc *models.GeneratedDocument, _ string) *models.ScoreResult {
	v := s.scores[s.calls]
	s.calls++
	return &models.ScoreResult{
		Score: v,
		Grade: models.GradeFor(v),
		Issues: []models.Issue{
			{Type: "word_count", Severity: models.SeverityLow, Message: "too short", Solution: "add words"},
			{Type: "single_h1", Severity: models.SeverityCritical, Message: "no h1"},
		},
		Recommendations: []string{"cite sources"},
	}
}

func request() models.ContentRequest {
	return models.ContentRequest{Keyword: "heat pumps", Language: "en"}
}

func TestRunReturnsBestNotLast(t *testing.T) {
	gen := &seqGenerator{}
	scorer := &seqScorer{scores: []int{40, 62, 55}}
	loop := New(gen, scorer, WithLogger(testutil.Logger()))

	res, err := loop.Run(context.Background(), request(), 90, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(gen.reqs) != 3 || scorer.calls != 3 {
		t.Fatalf("generations=%d scores=%d, want 3/3", len(gen.reqs), scorer.calls)
	}
	if res.Score.Score != 62 || res.BestAttempt != 2 {
		t.Errorf("best = %d at attempt %d, want 62 at 2", res.Score.Score, res.BestAttempt)
	}
	if res.Document.Introduction != "attempt 2" {
		t.Errorf("document from %q, want attempt 2", res.Document.Introduction)
	}
	if res.Accepted || res.Attempts != 3 || len(res.History) != 3 {
		t.Errorf("accepted=%v attempts=%d history=%d", res.Accepted, res.Attempts, len(res.History))
	}
}

func TestRunStopsWhenAccepted(t *testing.T) {
	gen := &seqGenerator{}
	loop := New(gen, &seqScorer{scores: []int{70, 86, 99}}, WithLogger(testutil.Logger()))

	res, err := loop.Run(context.Background(), request(), 85, 5)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Accepted || res.Attempts != 2 || res.Score.Score != 86 {
		t.Errorf("accepted=%v attempts=%d score=%d", res.Accepted, res.Attempts, res.Score.Score)
	}
	if len(gen.reqs) != 2 {
		t.Errorf("generations = %d", len(gen.reqs))
	}
}

func TestRunAppendsFeedback(t *testing.T) {
	gen := &seqGenerator{}
	loop := New(gen, &seqScorer{scores: []int{10, 20, 30}}, WithLogger(testutil.Logger()))
	if _, err := loop.Run(context.Background(), request(), 100, 3); err != nil {
		t.Fatal(err)
	}
	if len(gen.reqs[0].Feedback) != 0 {
		t.Errorf("first attempt carried feedback: %v", gen.reqs[0].Feedback)
	}
	fb := gen.reqs[1].Feedback
	if len(fb) != 3 || fb[0] != "no h1" || !strings.Contains(fb[1], "add images") || fb[2] != "cite sources" {
		t.Errorf("feedback = %q", fb)
	}
	// identical notes are not duplicated across attempts
	if len(gen.reqs[2].Feedback) != 3 {
		t.Errorf("third attempt feedback = %q", gen.reqs[2].Feedback)
	}
	if gen.reqs[2].Keyword != "heat pumps" {
		t.Errorf("request fields lost: %+v", gen.reqs[2])
	}
}

func TestRunSurvivesTransportErrors(t *testing.T) {
	boom := apperr.Classify("llm", 503, errors.New("unavailable"))
	gen := &seqGenerator{errs: []error{boom, boom}}
	var seen []Attempt
	loop := New(gen, &seqScorer{scores: []int{30, 30}},
		WithLogger(testutil.Logger()),
		WithObserver(func(_ models.ContentRequest, a Attempt) { seen = append(seen, a) }))

	res, err := loop.Run(context.Background(), request(), 80, 2)
	if err != nil {
		t.Fatal(err)
	}
	if res.Document == nil || res.Score == nil {
		t.Fatal("loop must always return a document and a score")
	}
	if err := res.Document.Validate(); err != nil {
		t.Errorf("fallback document invalid: %v", err)
	}
	if !res.History[0].Fallback || res.History[0].Error == "" {
		t.Errorf("attempt not marked as fallback: %+v", res.History[0])
	}
	if len(seen) != 2 {
		t.Errorf("observer saw %d attempts", len(seen))
	}
}

func TestRunInvalidRequest(t *testing.T) {
	gen := &seqGenerator{errs: []error{apperr.ErrInvalidRequest}}
	_, err := New(gen, &seqScorer{scores: []int{0}}, WithLogger(testutil.Logger())).
		Run(context.Background(), request(), 80, 3)
	if !errors.Is(err, apperr.ErrInvalidRequest) {
		t.Fatalf("err = %v", err)
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(&seqGenerator{}, &seqScorer{scores: []int{0}}, WithLogger(testutil.Logger())).
		Run(ctx, request(), 80, 3)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}

func TestRunClampsAttempts(t *testing.T) {
	gen := &seqGenerator{}
	res, err := New(gen, &seqScorer{scores: []int{10}}, WithLogger(testutil.Logger())).
		Run(context.Background(), request(), 80, 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.Attempts != 1 || len(gen.reqs) != 1 {
		t.Errorf("attempts = %d", res.Attempts)
	}
}

func TestFeedbackOrderAndLimits(t *testing.T) {
	score := &models.ScoreResult{}
	for i := 0; i < 12; i++ {
		score.Issues = append(score.Issues, models.Issue{Severity: models.SeverityLow, Message: "low"})
	}
	score.Issues = append(score.Issues,
		models.Issue{Type: "semantic_unavailable", Severity: models.SeverityHigh, Message: "down"},
		models.Issue{Severity: models.SeverityHigh, Message: "high"})
	for i := 0; i < 9; i++ {
		score.Recommendations = append(score.Recommendations, "rec")
	}

	notes := Feedback(score)
	if len(notes) != maxIssueNotes+maxRecommendationNotes {
		t.Fatalf("notes = %d", len(notes))
	}
	if notes[0] != "high" {
		t.Errorf("most severe first, got %q", notes[0])
	}
	for _, n := range notes {
		if n == "down" {
			t.Error("service outage fed back as content feedback")
		}
	}
}

func TestFeedbackSkipsImageIssues(t *testing.T) {
	doc := generation.Synthesize(request())
	score := scoring.NewEngine(nil, scoring.DefaultRules(), testutil.Logger(), nil).
		ScoreDocument(context.Background(), doc, "heat pumps")
	if !slices.Contains(score.FailedChecks, "image_count") {
		t.Fatalf("failed checks = %v, expected image_count", score.FailedChecks)
	}
	if !slices.Contains(score.PassedChecks, "internal_links") {
		t.Errorf("fallback document fails internal_links: %v", score.FailedChecks)
	}
	for _, n := range Feedback(score) {
		if strings.Contains(n, "image") {
			t.Errorf("feedback asks for images the document cannot carry: %q", n)
		}
	}

	notes := Feedback(&models.ScoreResult{Issues: []models.Issue{
		{Type: "image_alt_text", Severity: models.SeverityCritical, Message: "alt"},
		{Type: "internal_links", Severity: models.SeverityMedium, Message: "links"},
	}})
	if len(notes) != 1 || notes[0] != "links" {
		t.Errorf("notes = %v", notes)
	}
}
