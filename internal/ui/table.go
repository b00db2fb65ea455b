package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Table renders static rows with aligned columns.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// NewTable creates a table with the given title and headers.
func NewTable(title string, headers ...string) *Table {
	return &Table{Title: title, Headers: headers}
}

// AddRow appends a row. Extra cells beyond the headers are dropped when
// rendering.
func (t *Table) AddRow(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

// View renders the table. An empty table renders as "".
func (t *Table) View(styles Styles) string {
	if len(t.Rows) == 0 {
		return ""
	}

	widths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < len(widths) {
				if w := lipgloss.Width(cell); w > widths[i] {
					widths[i] = w
				}
			}
		}
	}
	// Room for the one-cell padding on each side.
	total := len(widths) - 1
	for i := range widths {
		widths[i] += 2
		total += widths[i]
	}

	header := styles.Bold.Padding(0, 1)
	body := styles.Body.Padding(0, 1)
	sep := styles.Muted.Render("|")

	var sb strings.Builder
	if t.Title != "" {
		sb.WriteString(styles.Title.Render(t.Title))
		sb.WriteString("\n")
	}

	cells := make([]string, len(t.Headers))
	for i, h := range t.Headers {
		cells[i] = header.Width(widths[i]).Render(h)
	}
	sb.WriteString(strings.Join(cells, sep) + "\n")
	sb.WriteString(styles.Muted.Render(strings.Repeat("-", total)) + "\n")

	for _, row := range t.Rows {
		cells = cells[:0]
		for i := range t.Headers {
			v := ""
			if i < len(row) {
				v = row[i]
			}
			cells = append(cells, body.Width(widths[i]).Render(v))
		}
		sb.WriteString(strings.Join(cells, sep) + "\n")
	}
	return sb.String()
}
