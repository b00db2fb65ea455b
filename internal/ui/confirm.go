package ui

import (
	"fmt"
	"io"

	"ftprep/internal/remediation"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

type confirmKeys struct {
	Yes   key.Binding
	No    key.Binding
	Enter key.Binding
	Quit  key.Binding
}

func defaultConfirmKeys() confirmKeys {
	return confirmKeys{
		Yes:   key.NewBinding(key.WithKeys("y", "Y"), key.WithHelp("y", "yes")),
		No:    key.NewBinding(key.WithKeys("n", "N"), key.WithHelp("n", "no")),
		Enter: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "accept")),
		Quit:  key.NewBinding(key.WithKeys("ctrl+c", "esc"), key.WithHelp("esc", "abort")),
	}
}

// confirmModel asks a single yes/no question. Enter takes the default, yes.
type confirmModel struct {
	question string
	keys     confirmKeys
	styles   Styles
	answer   bool
	done     bool
	aborted  bool
}

func newConfirmModel(question string, styles Styles) confirmModel {
	return confirmModel{question: question, keys: defaultConfirmKeys(), styles: styles}
}

func (m confirmModel) Init() tea.Cmd { return nil }

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	k, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(k, m.keys.Yes), key.Matches(k, m.keys.Enter):
		m.answer, m.done = true, true
		return m, tea.Quit
	case key.Matches(k, m.keys.No):
		m.answer, m.done = false, true
		return m, tea.Quit
	case key.Matches(k, m.keys.Quit):
		m.aborted, m.done = true, true
		return m, tea.Quit
	}
	return m, nil
}

func (m confirmModel) View() string {
	if m.done {
		return ""
	}
	help := fmt.Sprintf("%s · %s · %s", m.keys.Yes.Help().Key+" "+m.keys.Yes.Help().Desc,
		m.keys.No.Help().Key+" "+m.keys.No.Help().Desc, m.keys.Quit.Help().Key+" "+m.keys.Quit.Help().Desc)
	return m.styles.Prompt.Render(m.question) + "\n" + m.styles.Muted.Render(help) + "\n"
}

// Prompter is a remediation.Acceptor that asks each question in a small
// terminal UI. The answered question is echoed to the transcript writer
// passed to Accept.
type Prompter struct {
	in     io.Reader
	out    io.Writer
	styles Styles
}

// NewPrompter reads keys from in and draws on out.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: in, out: out, styles: DefaultStyles()}
}

var _ remediation.Acceptor = (*Prompter)(nil)

func (p *Prompter) Accept(w io.Writer, question string) (bool, error) {
	prog := tea.NewProgram(newConfirmModel(question, p.styles), tea.WithInput(p.in), tea.WithOutput(p.out))
	final, err := prog.Run()
	if err != nil {
		return false, fmt.Errorf("prompt failed: %w", err)
	}
	m := final.(confirmModel)
	if m.aborted {
		return false, remediation.ErrAborted
	}
	answer := "n"
	if m.answer {
		answer = "Y"
	}
	fmt.Fprint(w, question+answer+"\n")
	return m.answer, nil
}
