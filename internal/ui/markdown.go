package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
)

// RenderMarkdown renders md for the terminal, wrapped at width. When the
// renderer cannot be built the raw markdown is returned.
func RenderMarkdown(md string, width int) string {
	if width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n") + "\n"
}

// MarkdownList renders items as a bullet list, or "_none_" when empty.
func MarkdownList(items []string) string {
	if len(items) == 0 {
		return "_none_\n"
	}
	var sb strings.Builder
	for _, it := range items {
		fmt.Fprintf(&sb, "- `%s`\n", it)
	}
	return sb.String()
}
