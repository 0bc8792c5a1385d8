package scoring

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/scribe/internal/models"
)

// Fixed technical penalties.
const (
	penaltyTitle       = 10
	penaltyMeta        = 10
	penaltyH1          = 15
	penaltyH2          = 10
	penaltyImages      = 10
	penaltyAltText     = 5
	penaltyInternal    = 10
	penaltyWordCount   = 15
	technicalMaxPoints = 100
)

// Rules holds the target bands of the technical pass.
type Rules struct {
	TitleMin, TitleMax int
	MetaMin, MetaMax   int
	H2Min, H2Max       int
	WordsMin, WordsMax int
	MinImages          int
	MinInternalLinks   int
}

// DefaultRules returns the standard bands.
func DefaultRules() Rules {
	return Rules{
		TitleMin: 30, TitleMax: 60,
		MetaMin: 120, MetaMax: 160,
		H2Min: 4, H2Max: 8,
		WordsMin: 2000, WordsMax: 2600,
		MinImages:        3,
		MinInternalLinks: 3,
	}
}

// Validate checks that every band is ordered.
func (r Rules) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.TitleMax, validation.Min(r.TitleMin)),
		validation.Field(&r.MetaMax, validation.Min(r.MetaMin)),
		validation.Field(&r.H2Max, validation.Min(r.H2Min)),
		validation.Field(&r.WordsMax, validation.Min(r.WordsMin)),
		validation.Field(&r.MinImages, validation.Min(0)),
		validation.Field(&r.MinInternalLinks, validation.Min(0)),
	)
}

// technicalResult is the outcome of the deterministic pass.
type technicalResult struct {
	score  int
	issues []models.Issue
	passed []string
	failed []string
}

type check struct {
	name    string
	ok      bool
	penalty int
	issue   models.Issue
}

func inBand(v, lo, hi int) bool { return v >= lo && v <= hi }

// technical applies the fixed penalties to m and clamps the result at 0.
func technical(m models.StructuralMetrics, r Rules) technicalResult {
	checks := []check{
		{
			name: "title_length", ok: inBand(m.TitleLength, r.TitleMin, r.TitleMax), penalty: penaltyTitle,
			issue: models.Issue{
				Severity: models.SeverityMedium,
				Message:  fmt.Sprintf("title is %d characters, target %d-%d", m.TitleLength, r.TitleMin, r.TitleMax),
				Impact:   "titles outside the band are truncated or look thin in search results",
				Solution: fmt.Sprintf("rewrite the title to %d-%d characters", r.TitleMin, r.TitleMax),
			},
		},
		{
			name: "meta_description_length", ok: inBand(m.MetaDescriptionLength, r.MetaMin, r.MetaMax), penalty: penaltyMeta,
			issue: models.Issue{
				Severity: models.SeverityMedium,
				Message:  fmt.Sprintf("meta description is %d characters, target %d-%d", m.MetaDescriptionLength, r.MetaMin, r.MetaMax),
				Impact:   "search engines may replace or cut the snippet",
				Solution: fmt.Sprintf("write a meta description of %d-%d characters", r.MetaMin, r.MetaMax),
			},
		},
		{
			name: "single_h1", ok: m.H(1) == 1, penalty: penaltyH1,
			issue: models.Issue{
				Severity: models.SeverityHigh,
				Message:  fmt.Sprintf("page has %d h1 headings, expected exactly 1", m.H(1)),
				Impact:   "the main topic of the page is ambiguous",
				Solution: "keep exactly one h1 that contains the keyword",
			},
		},
		{
			name: "h2_count", ok: inBand(m.H(2), r.H2Min, r.H2Max), penalty: penaltyH2,
			issue: models.Issue{
				Severity: models.SeverityMedium,
				Message:  fmt.Sprintf("page has %d h2 headings, target %d-%d", m.H(2), r.H2Min, r.H2Max),
				Impact:   "the outline is too flat or too fragmented to scan",
				Solution: fmt.Sprintf("structure the body into %d-%d h2 sections", r.H2Min, r.H2Max),
			},
		},
		{
			name: "image_count", ok: m.Images >= r.MinImages, penalty: penaltyImages,
			issue: models.Issue{
				Severity: models.SeverityLow,
				Message:  fmt.Sprintf("page has %d images, minimum %d", m.Images, r.MinImages),
				Impact:   "text-only pages hold attention less well",
				Solution: fmt.Sprintf("add at least %d relevant images", r.MinImages-m.Images),
			},
		},
		{
			name: "image_alt_text", ok: m.ImagesWithAlt >= m.Images, penalty: penaltyAltText,
			issue: models.Issue{
				Severity: models.SeverityMedium,
				Message:  fmt.Sprintf("%d of %d images lack alt text", m.Images-m.ImagesWithAlt, m.Images),
				Impact:   "images without alt text are invisible to screen readers and image search",
				Solution: "describe every image in its alt attribute",
			},
		},
		{
			name: "internal_links", ok: m.InternalLinks >= r.MinInternalLinks, penalty: penaltyInternal,
			issue: models.Issue{
				Severity: models.SeverityMedium,
				Message:  fmt.Sprintf("page has %d internal links, minimum %d", m.InternalLinks, r.MinInternalLinks),
				Impact:   "weak internal linking limits crawl depth and topical authority",
				Solution: "link to related pages of the same site",
			},
		},
		{
			name: "word_count", ok: inBand(m.WordCount, r.WordsMin, r.WordsMax), penalty: penaltyWordCount,
			issue: models.Issue{
				Severity: models.SeverityHigh,
				Message:  fmt.Sprintf("page has %d words, target %d-%d", m.WordCount, r.WordsMin, r.WordsMax),
				Impact:   "content length is off for a competitive landing page",
				Solution: fmt.Sprintf("bring the body to %d-%d words", r.WordsMin, r.WordsMax),
			},
		},
	}

	res := technicalResult{score: technicalMaxPoints}
	for _, c := range checks {
		if c.ok {
			res.passed = append(res.passed, c.name)
			continue
		}
		res.failed = append(res.failed, c.name)
		res.score -= c.penalty
		c.issue.Type = c.name
		res.issues = append(res.issues, c.issue)
	}
	if res.score < 0 {
		res.score = 0
	}
	return res
}
