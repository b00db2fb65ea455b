package ui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable(t *testing.T) {
	table := NewTable("Runs", "ID", "Source", "Status")
	table.AddRow("1", "train.csv", "ok")
	table.AddRow("2", "a-much-longer-file-name.jsonl")

	view := table.View(DefaultStyles())
	t.Logf("View:\n%s", view)

	assert.Contains(t, view, "Runs")
	assert.Contains(t, view, "a-much-longer-file-name.jsonl")
	lines := strings.Split(strings.TrimRight(view, "\n"), "\n")
	require.Len(t, lines, 5)
}

func TestTableEmpty(t *testing.T) {
	assert.Empty(t, NewTable("Runs", "ID").View(DefaultStyles()))
}

func TestDetectTheme(t *testing.T) {
	t.Setenv("COLORFGBG", "15;0")
	assert.True(t, DetectTheme().IsDark)

	t.Setenv("COLORFGBG", "")
	t.Setenv("FTPREP_DARK_MODE", "")
	assert.False(t, DetectTheme().IsDark)

	t.Setenv("FTPREP_DARK_MODE", "1")
	assert.True(t, DetectTheme().IsDark)
}

func TestStatusBadge(t *testing.T) {
	s := DefaultStyles()
	for _, status := range []string{"ok", "failed", "aborted"} {
		assert.Contains(t, s.StatusBadge(status), status)
	}
}

func keyPress(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestConfirmModel(t *testing.T) {
	cases := []struct {
		key     string
		answer  bool
		aborted bool
	}{
		{"y", true, false},
		{"Y", true, false},
		{"enter", true, false},
		{"n", false, false},
		{"esc", false, true},
	}
	for _, tc := range cases {
		t.Run(tc.key, func(t *testing.T) {
			m := newConfirmModel("Proceed [Y/n]: ", DefaultStyles())
			assert.Contains(t, m.View(), "Proceed [Y/n]: ")

			next, cmd := m.Update(keyPress(tc.key))
			got := next.(confirmModel)
			assert.True(t, got.done)
			assert.Equal(t, tc.answer, got.answer)
			assert.Equal(t, tc.aborted, got.aborted)
			assert.NotNil(t, cmd)
			assert.Empty(t, got.View())
		})
	}
}

func TestConfirmModelIgnoresOtherKeys(t *testing.T) {
	m := newConfirmModel("Proceed? ", DefaultStyles())
	next, cmd := m.Update(keyPress("x"))
	assert.False(t, next.(confirmModel).done)
	assert.Nil(t, cmd)
}

func TestRenderMarkdown(t *testing.T) {
	out := RenderMarkdown("# Run\n\nWrote **two** files.\n\n"+MarkdownList([]string{"a.jsonl"}), 60)
	assert.Contains(t, out, "Run")
	assert.Contains(t, out, "two")
	assert.Contains(t, out, "a.jsonl")
	assert.Equal(t, "_none_\n", MarkdownList(nil))
}
