package extract

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// renderTable dumps rows as a markdown-style table. The first row is the header; short rows
// are padded so every row has the same column count and column order never shifts.
func renderTable(rows [][]string) string {
	width := 0
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}
	padded := make([][]string, len(rows))
	for i, r := range rows {
		row := make([]string, width)
		for j := range row {
			if j < len(r) {
				row[j] = cleanCell(r[j])
			}
		}
		padded[i] = row
	}

	t := table.New().
		Border(lipgloss.MarkdownBorder()).
		BorderTop(false).
		BorderBottom(false).
		Headers(padded[0]...)
	if len(padded) > 1 {
		t = t.Rows(padded[1:]...)
	}
	return t.String()
}

// cleanCell keeps a cell on one line so the table stays aligned.
func cleanCell(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}

// dataRows drops fully blank rows, which spreadsheets and CSV exports often trail.
func dataRows(rows [][]string) [][]string {
	out := rows[:0:0]
	for _, r := range rows {
		for _, c := range r {
			if strings.TrimSpace(c) != "" {
				out = append(out, r)
				break
			}
		}
	}
	return out
}
