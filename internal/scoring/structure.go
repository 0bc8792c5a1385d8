package scoring

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/starford/scribe/internal/models"
)

// page is the parsed form of one piece of markup.
type page struct {
	metrics models.StructuralMetrics
	text    string
}

// Measure runs the structural pass over markup. It makes no external call
// and returns identical metrics for identical input.
func Measure(markup, keyword string) (models.StructuralMetrics, error) {
	p, err := parsePage(markup, keyword)
	if err != nil {
		return models.StructuralMetrics{}, err
	}
	return p.metrics, nil
}

func parsePage(markup, keyword string) (*page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("scoring: parse markup: %w", err)
	}

	m := models.StructuralMetrics{Headings: make(map[string]int, 6)}

	m.Title = strings.TrimSpace(doc.Find("title").First().Text())
	m.TitleLength = utf8.RuneCountInString(m.Title)

	doc.Find("meta").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if name, _ := s.Attr("name"); strings.EqualFold(name, "description") {
			content, _ := s.Attr("content")
			m.MetaDescription = strings.TrimSpace(content)
			return false
		}
		return true
	})
	m.MetaDescriptionLength = utf8.RuneCountInString(m.MetaDescription)

	body := doc.Find("body")
	for level := 1; level <= 6; level++ {
		tag := fmt.Sprintf("h%d", level)
		m.Headings[tag] = body.Find(tag).Length()
	}

	body.Find("img").Each(func(_ int, s *goquery.Selection) {
		m.Images++
		if alt, ok := s.Attr("alt"); ok && strings.TrimSpace(alt) != "" {
			m.ImagesWithAlt++
		}
	})

	body.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		switch classifyLink(href) {
		case linkInternal:
			m.InternalLinks++
		case linkExternal:
			m.ExternalLinks++
		}
	})

	var b strings.Builder
	collectText(body, &b)
	text := b.String()
	tokens := words(text)
	m.WordCount = len(tokens)
	m.KeywordOccurrences = countKeyword(tokens, keyword)
	if len(tokens) > 0 {
		m.KeywordDensity = float64(m.KeywordOccurrences) / float64(len(tokens))
	}

	return &page{metrics: m, text: text}, nil
}

// collectText writes every visible text node under s in document order,
// separated by spaces.
func collectText(s *goquery.Selection, b *strings.Builder) {
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		switch goquery.NodeName(c) {
		case "#text":
			b.WriteString(c.Text())
			b.WriteByte(' ')
		case "script", "style", "noscript", "template", "#comment":
		default:
			collectText(c, b)
		}
	})
}

// words splits text on whitespace and keeps tokens that carry at least one
// letter or digit.
func words(text string) []string {
	fields := strings.Fields(text)
	out := fields[:0]
	for _, f := range fields {
		if strings.IndexFunc(f, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }) >= 0 {
			out = append(out, f)
		}
	}
	return out
}

// countKeyword counts case-insensitive keyword matches. A single-word keyword
// matches any token that contains it; a phrase matches a run of consecutive
// tokens that each contain the corresponding phrase word.
func countKeyword(tokens []string, keyword string) int {
	parts := strings.Fields(strings.ToLower(keyword))
	if len(parts) == 0 || len(tokens) < len(parts) {
		return 0
	}
	lower := make([]string, len(tokens))
	for i, t := range tokens {
		lower[i] = strings.ToLower(t)
	}

	n := 0
	for i := 0; i+len(parts) <= len(lower); i++ {
		match := true
		for j, p := range parts {
			if !strings.Contains(lower[i+j], p) {
				match = false
				break
			}
		}
		if match {
			n++
		}
	}
	return n
}

type linkKind int

const (
	linkOther linkKind = iota
	linkInternal
	linkExternal
)

// classifyLink treats fragments and relative paths as internal and absolute
// http(s) URLs, including protocol-relative ones, as external. Other schemes
// such as mailto: count as neither.
func classifyLink(href string) linkKind {
	href = strings.TrimSpace(href)
	if href == "" {
		return linkOther
	}
	u, err := url.Parse(href)
	if err != nil {
		return linkOther
	}
	switch {
	case u.Scheme == "" && u.Host == "":
		return linkInternal
	case u.Scheme == "" && u.Host != "":
		return linkExternal
	case strings.EqualFold(u.Scheme, "http"), strings.EqualFold(u.Scheme, "https"):
		return linkExternal
	default:
		return linkOther
	}
}
