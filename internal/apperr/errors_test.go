package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestClassifyByStatus(t *testing.T) {
	tests := []struct {
		status int
		want   error
		kind   Kind
	}{
		{http.StatusTooManyRequests, ErrRateLimited, KindRateLimited},
		{http.StatusUnauthorized, ErrUnauthorized, KindUnauthorized},
		{http.StatusForbidden, ErrUnauthorized, KindUnauthorized},
		{http.StatusBadGateway, ErrServerError, KindServerError},
		{http.StatusGatewayTimeout, ErrTimeout, KindTimeout},
		{http.StatusTeapot, ErrUnknown, KindUnknown},
	}
	for _, tt := range tests {
		err := Classify("llm", tt.status, errors.New("boom"))
		if !errors.Is(err, tt.want) {
			t.Errorf("status %d: errors.Is(%v) = false", tt.status, tt.want)
		}
		if got := KindOf(err); got != tt.kind {
			t.Errorf("status %d: kind = %q, want %q", tt.status, got, tt.kind)
		}
	}
}

func TestClassifyDeadline(t *testing.T) {
	err := Classify("keywords", 0, fmt.Errorf("do request: %w", context.DeadlineExceeded))
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("deadline should classify as timeout: %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("cause should stay reachable through Unwrap")
	}
}

func TestClassifyKeepsExisting(t *testing.T) {
	first := Classify("llm", http.StatusTooManyRequests, nil)
	wrapped := fmt.Errorf("generation: %w", first)
	if got := Classify("other", 0, wrapped); got != wrapped {
		t.Errorf("already classified error should be returned unchanged, got %v", got)
	}
}

func TestExternalErrorMessage(t *testing.T) {
	err := Classify("llm", http.StatusUnauthorized, errors.New("bad key"))
	msg := err.Error()
	for _, part := range []string{"llm", "unauthorized", "http 401", "bad key", "API key"} {
		if !strings.Contains(msg, part) {
			t.Errorf("message %q missing %q", msg, part)
		}
	}
}

func TestKindHint(t *testing.T) {
	for _, k := range []Kind{KindRateLimited, KindUnauthorized, KindServerError, KindTimeout, KindUnknown} {
		if k.Hint() == "" {
			t.Errorf("%s has no hint", k)
		}
	}
	if Kind("bogus").Hint() != KindUnknown.Hint() {
		t.Error("unrecognised kind should fall back to the unknown hint")
	}
}
