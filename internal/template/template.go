// Package template turns raw tabular rows into prompt/completion pairs.
//
// A template is prompt text with {{column}} placeholders. Each row of the
// source data fills the placeholders to build the prompt; the completion is
// the value of the output column followed by the stop sequence.
package template

import (
	"fmt"
	"regexp"
	"strings"

	"ftprep/internal/dataset"
	"ftprep/internal/logging"
)

var placeholder = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)

// Template describes how to build one example from a row.
type Template struct {
	Text         string
	OutputColumn string
	StopSequence string
}

// Fields returns the distinct placeholder names in the order they first
// appear.
func (t Template) Fields() []string {
	var names []string
	for _, m := range placeholder.FindAllStringSubmatch(t.Text, -1) {
		names = append(names, m[1])
	}
	return dataset.Unique(names)
}

// Validate checks that every placeholder and the output column exist in
// columns.
func (t Template) Validate(columns []string) error {
	if strings.TrimSpace(t.Text) == "" {
		return fmt.Errorf("template text is empty")
	}
	if t.OutputColumn == "" {
		return fmt.Errorf("output column is required")
	}
	have := make(map[string]bool, len(columns))
	for _, c := range columns {
		have[c] = true
	}
	var missing []string
	for _, f := range t.Fields() {
		if !have[f] {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("template references unknown columns: %s", strings.Join(missing, ", "))
	}
	if !have[t.OutputColumn] {
		return fmt.Errorf("output column %q not found", t.OutputColumn)
	}
	return nil
}

// Render fills the placeholders from row. Unknown names render empty.
func (t Template) Render(row map[string]string) string {
	return placeholder.ReplaceAllStringFunc(t.Text, func(m string) string {
		return row[placeholder.FindStringSubmatch(m)[1]]
	})
}

// Apply builds a prompt/completion dataset from ds.
func (t Template) Apply(ds *dataset.Dataset) (*dataset.Dataset, error) {
	if err := t.Validate(ds.Columns()); err != nil {
		return nil, err
	}
	pairs := make([][2]string, ds.Len())
	for i := range pairs {
		row := ds.Row(i)
		pairs[i] = [2]string{t.Render(row), row[t.OutputColumn] + t.StopSequence}
	}
	logging.Template("applied template with %d fields to %d rows", len(t.Fields()), len(pairs))
	return dataset.FromRecords(pairs...), nil
}

// Classes returns the distinct values of column in first-seen order.
func Classes(ds *dataset.Dataset, column string) ([]string, error) {
	if !ds.HasColumn(column) {
		return nil, fmt.Errorf("column %q not found", column)
	}
	return dataset.Unique(ds.Column(column)), nil
}
