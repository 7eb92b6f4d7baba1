package terminal

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

const (
	columnGap = 2
	ellipsis  = "…"
)

// Table renders rows in fixed columns. The last column absorbs whatever
// width is left and is truncated to fit.
type Table struct {
	Headers []string
	Rows    [][]string
	Width   int
}

// Render returns the table as text, one line per row, headers first.
func (t Table) Render() string {
	if len(t.Headers) == 0 {
		return ""
	}
	cols := len(t.Headers)
	widths := make([]int, cols)
	for i, h := range t.Headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range t.Rows {
		for i := 0; i < cols && i < len(row); i++ {
			if w := runewidth.StringWidth(row[i]); w > widths[i] {
				widths[i] = w
			}
		}
	}

	total := t.Width
	if total <= 0 {
		total = defaultWidth
	}
	used := 0
	for i := 0; i < cols-1; i++ {
		used += widths[i] + columnGap
	}
	if last := total - used; last < widths[cols-1] {
		widths[cols-1] = max(last, runewidth.StringWidth(ellipsis)+1)
	}

	header := lipgloss.NewStyle().Bold(true)
	var b strings.Builder
	b.WriteString(header.Render(t.formatRow(t.Headers, widths)))
	b.WriteByte('\n')
	for _, row := range t.Rows {
		b.WriteString(t.formatRow(row, widths))
		b.WriteByte('\n')
	}
	return b.String()
}

func (t Table) formatRow(row []string, widths []int) string {
	cells := make([]string, len(widths))
	for i, w := range widths {
		cell := ""
		if i < len(row) {
			cell = strings.ReplaceAll(row[i], "\n", " ")
		}
		cell = runewidth.Truncate(cell, w, ellipsis)
		if i < len(widths)-1 {
			cell = runewidth.FillRight(cell, w+columnGap)
		}
		cells[i] = cell
	}
	return strings.TrimRight(strings.Join(cells, ""), " ")
}
