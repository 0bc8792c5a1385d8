package generation

import (
	"fmt"

	"github.com/starford/scribe/internal/models"
)

// DocumentContract describes the JSON object the generative-text service
// must return. It is embedded in every generation prompt and served to MCP
// clients as-is.
var DocumentContract = fmt.Sprintf(`# Scribe Document Contract

Respond with exactly ONE JSON object and nothing else. A fenced code block
around it is tolerated; prose before or after it is not.

## Shape

`+"```"+`json
{
  "title": "string",
  "meta_title": "string",
  "meta_description": "string",
  "introduction": "string",
  "sections": [
    {
      "heading": "string",
      "body": "string",
      "subsections": [{"heading": "string", "body": "string"}]
    }
  ],
  "faq": [{"question": "string", "answer": "string"}],
  "internal_links": [{"anchor": "string", "url": "/relative/path", "context": "string"}],
  "word_count": 0
}
`+"```"+`

## Rules

1. **title** is %d-%d characters.
2. **meta_title** is %d-%d characters.
3. **meta_description** is %d-%d characters.
4. **sections** has at least %d entries. Every section has a heading and a body.
   **subsections** is optional and follows the same shape.
5. **faq** has exactly %d entries.
6. **word_count** is the number of words in all section and subsection bodies
   (the introduction is not counted). It must be within %d%% of the real count.
   Use 0 if unsure; it will be computed.
7. **internal_links** use site-relative URLs starting with "/".
8. Lengths are counted in characters (Unicode code points), not bytes.
9. Write in the requested language. JSON keys stay in English.
10. Plain text only inside values: no Markdown, no HTML.
`,
	models.TitleMinRunes, models.TitleMaxRunes,
	models.MetaTitleMinRunes, models.MetaTitleMaxRunes,
	models.MetaDescriptionMinRunes, models.MetaDescriptionMaxRunes,
	models.MinSections, models.FAQCount, int(models.WordCountTolerance*100),
)
