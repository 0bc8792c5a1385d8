package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/scribe/internal/apperr"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.Generation(OutcomeFallback)
	m.ExternalCall("llm", time.Second, nil)
	m.Score(80, true)
	m.Run(3, false)
	m.KeywordsEnriched(1, 2)
}

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return string(body)
}

func TestCounters(t *testing.T) {
	m := New()
	m.Generation(OutcomeCacheHit)
	m.Generation(OutcomeCacheHit)
	m.Generation(OutcomeFallback)
	m.ExternalCall("llm", 10*time.Millisecond, apperr.Classify("llm", 429, errors.New("slow down")))
	m.ExternalCall("llm", 10*time.Millisecond, nil)
	m.Run(2, true)

	out := scrape(t, m)
	for _, want := range []string{
		`scribe_generation_requests_total{outcome="cache_hit"} 2`,
		`scribe_generation_requests_total{outcome="fallback"} 1`,
		`scribe_external_calls_total{result="rate_limited",service="llm"} 1`,
		`scribe_external_calls_total{result="ok",service="llm"} 1`,
		`scribe_optimizer_runs_total{state="accepted"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q", want)
		}
	}
}

func TestHandlerExposesNamespace(t *testing.T) {
	m := New()
	m.Generation(OutcomeGenerated)
	if !strings.Contains(scrape(t, m), "scribe_generation_requests_total") {
		t.Errorf("metrics output missing generation counter")
	}
}
