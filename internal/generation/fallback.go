package generation

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/starford/scribe/internal/models"
)

const defaultTopic = "this topic"

// Synthesize builds a minimal document for req from canned copy. The result
// satisfies every GeneratedDocument invariant for any keyword, including an
// empty or very long one.
func Synthesize(req models.ContentRequest) *models.GeneratedDocument {
	topic := strings.Join(strings.Fields(req.Keyword), " ")
	if topic == "" {
		topic = defaultTopic
	}
	titled := cases.Title(language.Und).String(topic)

	doc := &models.GeneratedDocument{
		Title: fit(titled+": A Complete Guide", " for Beginners and Experts",
			models.TitleMinRunes, models.TitleMaxRunes),
		MetaTitle: fit(titled+" Guide", " | Tips and Answers",
			models.MetaTitleMinRunes, models.MetaTitleMaxRunes),
		MetaDescription: fit(
			fmt.Sprintf("Everything you need to know about %s: how it works, what to look for, common mistakes and answers to the most frequent questions.", topic),
			" Read the full guide.",
			models.MetaDescriptionMinRunes, models.MetaDescriptionMaxRunes),
		Introduction: fmt.Sprintf("This guide covers %s from the basics to practical advice. "+
			"Use the sections below to find what matters to you.", topic),
	}

	for _, s := range fallbackSections {
		doc.Sections = append(doc.Sections, models.Section{
			Heading: fmt.Sprintf(s.heading, titled),
			Body:    fmt.Sprintf(s.body, topic, topic),
		})
	}
	for _, f := range fallbackFAQ {
		doc.FAQ = append(doc.FAQ, models.FAQItem{
			Question: fmt.Sprintf(f.question, topic),
			Answer:   fmt.Sprintf(f.answer, topic),
		})
	}

	slug := slugify(topic)
	doc.InternalLinks = []models.InternalLink{
		{Anchor: titled + " basics", URL: "/guides/" + slug, Context: "introduction"},
		{Anchor: "How " + topic + " works", URL: "/guides/" + slug + "/how-it-works", Context: "how it works"},
		{Anchor: "Frequently asked questions", URL: "/guides/" + slug + "#faq", Context: "faq"},
	}
	doc.WordCount = doc.BodyWordCount()
	return doc
}

// fit grows s with pad until it reaches lo runes, cuts it to hi runes and
// trims trailing spaces. Anything still short is filled with dots.
func fit(s, pad string, lo, hi int) string {
	if pad == "" {
		pad = "."
	}
	r := []rune(strings.TrimSpace(s))
	for len(r) < lo {
		r = append(r, []rune(pad)...)
	}
	if len(r) > hi {
		r = r[:hi]
	}
	r = []rune(strings.TrimRightFunc(string(r), unicode.IsSpace))
	for len(r) < lo {
		r = append(r, '.')
	}
	return string(r)
}

func slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

var fallbackSections = []struct{ heading, body string }{
	{
		"What Is %s?",
		"Understanding %s starts with the fundamentals. This section explains the core ideas, " +
			"the vocabulary you will meet and why %s matters for people comparing their options today.",
	},
	{
		"How %s Works",
		"Here we walk through how %s works in practice, step by step, so you can follow each stage " +
			"and know what to expect before you commit time or money to %s.",
	},
	{
		"Benefits of %s",
		"The main advantages of %s are easier to judge with concrete examples. We list the benefits " +
			"most people notice first and the situations where %s delivers the most value.",
	},
	{
		"Choosing the Right %s",
		"Not every option fits every need. Compare features, costs and support when evaluating %s, " +
			"and check independent reviews before deciding which kind of %s suits you.",
	},
	{
		"Common Mistakes With %s",
		"Many first attempts with %s fail for the same few reasons. Avoid rushing the decision, " +
			"ignoring the fine print and skipping maintenance, and %s will serve you well for longer.",
	},
}

var fallbackFAQ = []struct{ question, answer string }{
	{"What is %s?", "%s is explained in detail in the first section of this guide."},
	{"Who should consider %s?", "Anyone comparing options around %s will find the overview useful."},
	{"How much does %s cost?", "Prices for %s vary; compare several offers before deciding."},
	{"How do I get started with %s?", "Read the step-by-step section on %s, then compare providers."},
	{"Where can I learn more about %s?", "Follow the related guides linked on this page to go deeper into %s."},
}
