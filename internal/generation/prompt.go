package generation

import (
	"fmt"
	"strings"

	"github.com/starford/scribe/internal/models"
)

// BuildPrompt renders the single prompt sent for req.
func BuildPrompt(req models.ContentRequest) string {
	var b strings.Builder
	b.WriteString("You are an experienced web copywriter. Write one landing page.\n\n")
	b.WriteString("## Request\n\n")
	fmt.Fprintf(&b, "- keyword: %s\n", req.Keyword)
	fmt.Fprintf(&b, "- language: %s\n", req.Language)
	if req.Category != "" {
		fmt.Fprintf(&b, "- category: %s\n", req.Category)
	}
	if req.TargetWordCount > 0 {
		fmt.Fprintf(&b, "- target word count: %d\n", req.TargetWordCount)
	}
	if req.Authority {
		b.WriteString("- tone: authoritative, cite concrete facts and figures\n")
	}

	if len(req.Feedback) > 0 {
		b.WriteString("\n## Feedback on the previous attempt\n\n")
		b.WriteString("Fix every point below in this version.\n\n")
		for _, f := range req.Feedback {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}

	b.WriteString("\n")
	b.WriteString(DocumentContract)
	return b.String()
}
