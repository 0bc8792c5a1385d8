package parser

import (
	"errors"
	"testing"
)

type sample struct {
	Title string   `json:"title"`
	Tags  []string `json:"tags"`
}

func TestFenced(t *testing.T) {
	in := "Here you go:\n```json\n{\"title\": \"a\"}\n```\nThanks"
	got, ok := Fenced(in)
	if !ok || got != `{"title": "a"}` {
		t.Errorf("Fenced = %q, %v", got, ok)
	}

	got, ok = Fenced(`  {"title":"b"}  `)
	if !ok || got != `{"title":"b"}` {
		t.Errorf("unfenced passthrough = %q", got)
	}

	if _, ok := Fenced("   "); ok {
		t.Error("blank text should not apply")
	}
}

func TestBraceSlice(t *testing.T) {
	got, ok := BraceSlice(`Sure! {"title": "x", "tags": ["a"]} hope it helps`)
	if !ok || got != `{"title": "x", "tags": ["a"]}` {
		t.Errorf("BraceSlice = %q", got)
	}
	if _, ok := BraceSlice("no braces here"); ok {
		t.Error("expected no slice")
	}
	if _, ok := BraceSlice("} backwards {"); ok {
		t.Error("closing before opening should not apply")
	}
}

func TestRepaired(t *testing.T) {
	in := "// generated\n{\n  “title”: “Hello”,\n  \"tags\": [\"a\", \"b\",],\n}\n- note: ignore me"
	got, ok := Repaired(in)
	if !ok {
		t.Fatal("Repaired should apply")
	}
	want := "{\n  \"title\": \"Hello\",\n  \"tags\": [\"a\", \"b\"]}"
	if got != want {
		t.Errorf("Repaired =\n%q\nwant\n%q", got, want)
	}
}

func TestDecodeOrder(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		strategy string
		title    string
	}{
		{"plain", `{"title":"one"}`, "fenced", "one"},
		{"fenced", "```json\n{\"title\":\"two\"}\n```", "fenced", "two"},
		{"chatter", `The JSON: {"title":"three"} done.`, "brace_slice", "three"},
		{"trailing comma", `{"title":"four","tags":["x",],}`, "repaired", "four"},
		{"curly quotes", "{“title”: “five”}", "repaired", "five"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, strategy, err := Decode[sample](tt.in, nil)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if strategy != tt.strategy {
				t.Errorf("strategy = %q, want %q", strategy, tt.strategy)
			}
			if got.Title != tt.title {
				t.Errorf("title = %q, want %q", got.Title, tt.title)
			}
		})
	}
}

func TestDecodeFailure(t *testing.T) {
	for _, in := range []string{"", "no json at all", "{broken: [}"} {
		if _, _, err := Decode[sample](in, nil); !errors.Is(err, ErrNoJSON) {
			t.Errorf("Decode(%q) err = %v, want ErrNoJSON", in, err)
		}
	}
}
