package scoring

import (
	"fmt"
	"html"
	"strings"

	"github.com/starford/scribe/internal/models"
)

// Render produces the minimal markup used to score a document: head title
// and meta description, one h1, an h2 per section, an h3 per subsection,
// the FAQ and the internal links.
func Render(doc *models.GeneratedDocument) string {
	var b strings.Builder
	e := html.EscapeString

	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", e(doc.MetaTitle))
	fmt.Fprintf(&b, "<meta name=\"description\" content=\"%s\">\n", e(doc.MetaDescription))
	b.WriteString("</head>\n<body>\n")
	fmt.Fprintf(&b, "<h1>%s</h1>\n", e(doc.Title))
	if doc.Introduction != "" {
		fmt.Fprintf(&b, "<p>%s</p>\n", e(doc.Introduction))
	}

	var section func(s models.Section, level int)
	section = func(s models.Section, level int) {
		fmt.Fprintf(&b, "<h%d>%s</h%d>\n<p>%s</p>\n", level, e(s.Heading), level, e(s.Body))
		next := level + 1
		if next > 6 {
			next = 6
		}
		for _, sub := range s.Subsections {
			section(sub, next)
		}
	}
	for _, s := range doc.Sections {
		section(s, 2)
	}

	if len(doc.FAQ) > 0 {
		b.WriteString("<section id=\"faq\">\n")
		for _, f := range doc.FAQ {
			fmt.Fprintf(&b, "<h3>%s</h3>\n<p>%s</p>\n", e(f.Question), e(f.Answer))
		}
		b.WriteString("</section>\n")
	}

	if len(doc.InternalLinks) > 0 {
		b.WriteString("<ul>\n")
		for _, l := range doc.InternalLinks {
			fmt.Fprintf(&b, "<li><a href=\"%s\">%s</a></li>\n", e(l.URL), e(l.Anchor))
		}
		b.WriteString("</ul>\n")
	}
	b.WriteString("</body>\n</html>\n")
	return b.String()
}
