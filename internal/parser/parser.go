// Package parser recovers a single JSON object from free-form model output.
//
// Recovery is a chain of strategies tried in order. Each strategy is a pure
// function that turns raw text into a JSON candidate; the first candidate that
// decodes wins.
package parser

import (
	"bufio"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

var (
	fenceRe         = regexp.MustCompile("(?s)```[A-Za-z0-9_-]*[ \t]*\r?\n?(.*?)```")
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
	quoteReplacer   = strings.NewReplacer(
		"“", `"`, "”", `"`, "„", `"`, "«", `"`, "»", `"`,
		"‘", "'", "’", "'",
	)
)

// ErrNoJSON is returned when no strategy yields a decodable object.
var ErrNoJSON = errors.New("parser: no JSON object found")

// Strategy turns raw text into a JSON candidate. ok is false when the
// strategy does not apply.
type Strategy struct {
	Name    string
	Extract func(text string) (candidate string, ok bool)
}

// DefaultChain is fenced block, then brace slice, then textual repair.
var DefaultChain = []Strategy{
	{Name: "fenced", Extract: Fenced},
	{Name: "brace_slice", Extract: BraceSlice},
	{Name: "repaired", Extract: Repaired},
}

// Fenced strips a surrounding fenced code block if present and returns the
// remaining text as is.
func Fenced(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}
	if m := fenceRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	return text, true
}

// BraceSlice returns the text between the first '{' and the last '}'.
func BraceSlice(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// Repaired applies light textual fixes: curly quotes are normalized,
// bullet and comment lines are dropped, trailing commas before a closing
// bracket are removed. The result is brace-sliced when possible.
func Repaired(text string) (string, bool) {
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	text = quoteReplacer.Replace(text)
	if inner, ok := Fenced(text); ok {
		text = inner
	}

	var b strings.Builder
	b.Grow(len(text))
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if isNoiseLine(line) {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	cleaned := trailingCommaRe.ReplaceAllString(b.String(), "$1")

	if sliced, ok := BraceSlice(cleaned); ok {
		return sliced, true
	}
	return strings.TrimSpace(cleaned), true
}

func isNoiseLine(line string) bool {
	t := strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(t, "//"), strings.HasPrefix(t, "#"):
		return true
	case strings.HasPrefix(t, "- "), strings.HasPrefix(t, "* "), strings.HasPrefix(t, "•"):
		return true
	}
	return false
}

// Decode runs chain over text and decodes the first candidate that parses
// into a fresh T. It also returns the name of the winning strategy.
func Decode[T any](text string, chain []Strategy) (*T, string, error) {
	if len(chain) == 0 {
		chain = DefaultChain
	}
	for _, s := range chain {
		candidate, ok := s.Extract(text)
		if !ok || candidate == "" {
			continue
		}
		var out T
		if err := json.Unmarshal([]byte(candidate), &out); err != nil {
			continue
		}
		return &out, s.Name, nil
	}
	return nil, "", ErrNoJSON
}
