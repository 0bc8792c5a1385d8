package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/starford/scribe/internal/apperr"
)

func newAnthropicTestClient(t *testing.T, url string) *Anthropic {
	t.Helper()
	c, err := NewAnthropic(Config{APIKey: "sk-ant-test", BaseURL: url, Model: "m", System: "sys", Timeout: time.Second}, discard())
	if err != nil {
		t.Fatalf("NewAnthropic: %v", err)
	}
	return c
}

func TestAnthropicCompleteSendsPrompt(t *testing.T) {
	var got struct {
		Model string `json:"model"`

		System []struct {
			Text string `json:"text"`
		} `json:"system"`

		Messages []struct {
			Role    string `json:"role"`
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if key := r.Header.Get("X-Api-Key"); key != "sk-ant-test" {
			t.Errorf("X-Api-Key = %q", key)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"msg_1","type":"message","role":"assistant","model":"m",`+
			`"content":[{"type":"text","text":"{\"title\":"},{"type":"text","text":"\"x\"}"}],`+
			`"stop_reason":"end_turn","stop_sequence":null,"usage":{"input_tokens":3,"output_tokens":5}}`)
	}))
	defer srv.Close()

	out, err := newAnthropicTestClient(t, srv.URL).Complete(context.Background(), "write it")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != `{"title":"x"}` {
		t.Errorf("content = %q", out)
	}
	if got.Model != "m" || len(got.System) != 1 || got.System[0].Text != "sys" {
		t.Errorf("model = %q system = %+v", got.Model, got.System)
	}
	if len(got.Messages) != 1 || got.Messages[0].Role != "user" ||
		len(got.Messages[0].Content) != 1 || got.Messages[0].Content[0].Text != "write it" {
		t.Errorf("messages = %+v", got.Messages)
	}
}

func TestAnthropicClassifiesStatus(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, apperr.ErrRateLimited},
		{http.StatusUnauthorized, apperr.ErrUnauthorized},
		{http.StatusForbidden, apperr.ErrUnauthorized},
		{http.StatusInternalServerError, apperr.ErrServerError},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, `{"type":"error","error":{"type":"api_error","message":"nope"}}`)
			}))
			defer srv.Close()

			_, err := newAnthropicTestClient(t, srv.URL).Complete(context.Background(), "p")
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			var ext *apperr.ExternalError
			if !errors.As(err, &ext) || ext.StatusCode != tt.status || ext.Service != "llm" {
				t.Errorf("external error = %+v", ext)
			}
			if n := calls.Load(); n != 1 {
				t.Errorf("calls = %d, want 1", n)
			}
		})
	}
}

func TestAnthropicUnreachableIsClassified(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newAnthropicTestClient(t, url).Complete(context.Background(), "p")
	var ext *apperr.ExternalError
	if !errors.As(err, &ext) || ext.Service != "llm" {
		t.Fatalf("err = %v, want external llm error", err)
	}
}
