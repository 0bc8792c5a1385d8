package runstore

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/starford/scribe/internal/apperr"
	"github.com/starford/scribe/internal/models"
	"github.com/starford/scribe/internal/optimizer"
	"github.com/starford/scribe/internal/testutil"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "scribe-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleRun(keyword string, score int, accepted bool, at time.Time) *Run {
	doc := testutil.ValidDocument(keyword)
	r := NewRun("api", models.ContentRequest{Keyword: keyword, Language: "en"}, &optimizer.Result{
		Document:    &doc,
		Score:       &models.ScoreResult{Score: score, Grade: models.GradeFor(score)},
		Accepted:    accepted,
		Attempts:    2,
		BestAttempt: 1,
		History:     []optimizer.Attempt{{Number: 1, Score: score}, {Number: 2, Score: score - 5}},
	})
	r.CreatedAt = at
	return r
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM runs`).Scan(&count); err != nil {
		t.Fatalf("runs table missing: %v", err)
	}
}

func TestSaveAndGetRun(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	r := sampleRun("solar panels", 82, true, time.Time{})
	if err := db.SaveRun(ctx, r); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if r.ID == "" || r.CreatedAt.IsZero() || r.Checksum == "" {
		t.Fatalf("save did not fill id/time/checksum: %+v", r)
	}

	got, err := db.GetRun(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Request.Keyword != "solar panels" || got.Source != "api" {
		t.Errorf("request = %+v source = %q", got.Request, got.Source)
	}
	if got.Document == nil || got.Document.Title != r.Document.Title {
		t.Errorf("document not round-tripped")
	}
	if got.Score == nil || got.Score.Score != 82 || got.Score.Grade != "B" {
		t.Errorf("score = %+v", got.Score)
	}
	if !got.Accepted || got.Attempts != 2 || got.BestAttempt != 1 || len(got.History) != 2 {
		t.Errorf("run fields = %+v", got)
	}
	if got.Checksum != r.Checksum {
		t.Errorf("checksum = %q, want %q", got.Checksum, r.Checksum)
	}
}

func TestGetRunNotFound(t *testing.T) {
	db := testDB(t)
	_, err := db.GetRun(context.Background(), "missing")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestListRuns(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	runs := []*Run{
		sampleRun("heat pumps", 50, false, base),
		sampleRun("solar panels", 90, true, base),
		sampleRun("heat pumps", 88, true, base),
	}
	for i, r := range runs {
		r.CreatedAt = r.CreatedAt.Add(time.Duration(i) * time.Minute)
		if err := db.SaveRun(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	all, total, err := db.ListRuns(ctx, ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 || len(all) != 3 {
		t.Fatalf("total=%d len=%d", total, len(all))
	}
	if all[0].ID != runs[2].ID {
		t.Errorf("newest first: got %s", all[0].ID)
	}

	page, total, err := db.ListRuns(ctx, ListOptions{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 || len(page) != 1 || page[0].ID != runs[1].ID {
		t.Errorf("page = %+v total = %d", page, total)
	}

	hp, total, err := db.ListRuns(ctx, ListOptions{Keyword: "HEAT PUMPS", AcceptedOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || len(hp) != 1 || hp[0].Score != 88 || !hp[0].Accepted {
		t.Errorf("filtered = %+v total = %d", hp, total)
	}
}

func TestListRunsEmpty(t *testing.T) {
	db := testDB(t)
	out, total, err := db.ListRuns(context.Background(), ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if out == nil || len(out) != 0 || total != 0 {
		t.Errorf("out = %v total = %d", out, total)
	}
}

func TestSearchRuns(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	_ = db.SaveRun(ctx, sampleRun("solar panels", 70, false, time.Time{}))
	_ = db.SaveRun(ctx, sampleRun("heat pumps", 70, false, time.Time{}))

	got, err := db.SearchRuns(ctx, "solar", 10)
	if err != nil {
		t.Fatalf("SearchRuns: %v", err)
	}
	if len(got) != 1 || got[0].Keyword != "solar panels" {
		t.Errorf("search = %+v", got)
	}
}

func TestDocumentText(t *testing.T) {
	doc := &models.GeneratedDocument{
		Introduction: "intro",
		Sections: []models.Section{{
			Heading: "h2", Body: "b2",
			Subsections: []models.Section{{Heading: "h3", Body: "b3"}},
		}},
		FAQ: []models.FAQItem{{Question: "q", Answer: "a"}},
	}
	want := "intro\nh2\nb2\nh3\nb3\nq\na"
	if got := documentText(doc); got != want {
		t.Errorf("documentText = %q, want %q", got, want)
	}
	if documentText(nil) != "" {
		t.Error("nil document should be empty")
	}
}
