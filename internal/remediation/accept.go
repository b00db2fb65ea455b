package remediation

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrAborted is returned when an interactive answer cannot be read.
var ErrAborted = errors.New("aborted: no answer available")

// Acceptor decides whether a suggested change is applied. Implementations
// write the question to w themselves so the transcript stays complete.
type Acceptor interface {
	Accept(w io.Writer, question string) (bool, error)
}

// AutoAccept agrees to every suggestion and echoes the answer.
type AutoAccept struct{}

func (AutoAccept) Accept(w io.Writer, question string) (bool, error) {
	fmt.Fprint(w, question)
	fmt.Fprint(w, "Y\n")
	return true, nil
}

// AutoDecline refuses every suggestion. It is used for read-only analysis.
type AutoDecline struct{}

func (AutoDecline) Accept(w io.Writer, question string) (bool, error) {
	fmt.Fprint(w, question)
	fmt.Fprint(w, "n\n")
	return false, nil
}

// LinePrompter reads one answer per question from a line-oriented reader.
// Anything other than "n" (case-insensitive) counts as yes, so an empty line
// accepts the default.
type LinePrompter struct {
	in *bufio.Reader
}

// NewLinePrompter wraps r.
func NewLinePrompter(r io.Reader) *LinePrompter {
	return &LinePrompter{in: bufio.NewReader(r)}
}

func (p *LinePrompter) Accept(w io.Writer, question string) (bool, error) {
	fmt.Fprint(w, question)
	line, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		if err == io.EOF {
			return false, ErrAborted
		}
		return false, fmt.Errorf("failed to read answer: %w", err)
	}
	return strings.ToLower(strings.TrimSpace(line)) != "n", nil
}

