package keywords

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/starford/scribe/internal/models"
)

// WriteTable prints metrics as an aligned text table. Column widths follow
// display width, so CJK and accented keywords line up.
func WriteTable(w io.Writer, rows []models.KeywordMetric) error {
	header := []string{"KEYWORD", "VOLUME", "COMPETITION", "CPC", "OPPORTUNITY"}
	cells := make([][]string, 0, len(rows)+1)
	cells = append(cells, header)
	for _, r := range rows {
		cells = append(cells, []string{
			r.Keyword,
			intCell(r.Volume),
			floatCell(r.Competition, 2),
			floatCell(r.CPC, 2),
			floatCell(r.Opportunity, 3),
		})
	}

	widths := make([]int, len(header))
	for _, row := range cells {
		for i, c := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(c))
		}
	}

	for _, row := range cells {
		var b strings.Builder
		for i, c := range row {
			if i > 0 {
				b.WriteString("  ")
			}
			if i == 0 {
				b.WriteString(runewidth.FillRight(c, widths[i]))
			} else {
				b.WriteString(runewidth.FillLeft(c, widths[i]))
			}
		}
		if _, err := fmt.Fprintln(w, strings.TrimRight(b.String(), " ")); err != nil {
			return err
		}
	}
	return nil
}

func intCell(v *int64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatInt(*v, 10)
}

func floatCell(v *float64, prec int) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', prec, 64)
}
