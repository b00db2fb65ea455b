// Package validators holds the catalogue of dataset checks run before a file
// is used for fine-tuning, and ApplyValidators, which runs them and hands the
// result to an output writer.
//
// Every validator inspects a dataset and returns a remediation.Remediation
// describing what it found. Validators never modify the dataset themselves.
package validators

import (
	"fmt"
	"strings"
	"unicode"

	"ftprep/internal/dataset"
	"ftprep/internal/remediation"
)

// Validator inspects a dataset and reports findings.
type Validator func(*dataset.Dataset) remediation.Remediation

const (
	minExamples            = 100
	maxExampleChars        = 10000
	maxPromptPrefixLen     = 12
	minCompletionPrefixLen = 5
	longSuffixLen          = 10
)

const guideURL = "https://platform.openai.com/docs/guides/fine-tuning/preparing-your-dataset"

// GetValidators returns the full validator list in evaluation order. Order
// matters: column checks must run before any check that reads prompt or
// completion.
func GetValidators() []Validator {
	return []Validator{
		NumExamples,
		func(d *dataset.Dataset) remediation.Remediation { return NecessaryColumn(d, dataset.ColumnPrompt) },
		func(d *dataset.Dataset) remediation.Remediation { return NecessaryColumn(d, dataset.ColumnCompletion) },
		AdditionalColumns,
		func(d *dataset.Dataset) remediation.Remediation { return NonEmptyField(d, dataset.ColumnCompletion) },
		FormatInferrer,
		DuplicatedRows,
		LongExamples,
		func(d *dataset.Dataset) remediation.Remediation { return LowerCase(d, dataset.ColumnPrompt) },
		func(d *dataset.Dataset) remediation.Remediation { return LowerCase(d, dataset.ColumnCompletion) },
		CommonPromptSuffix,
		CommonPromptPrefix,
		CommonCompletionPrefix,
		CommonCompletionSuffix,
		CompletionsSpaceStart,
	}
}

// escapeNewlines makes separators printable inside backticks.
func escapeNewlines(s string) string {
	return strings.ReplaceAll(s, "\n", "\\n")
}

// =============================================================================
// SHAPE CHECKS
// =============================================================================

// NumExamples reports the number of examples and recommends more when there
// are fewer than a hundred.
func NumExamples(d *dataset.Dataset) remediation.Remediation {
	suggestion := ""
	if d.Len() < minExamples {
		suggestion = ". In general, we recommend having at least a few hundred examples. We've found that performance tends to linearly increase for every doubling of the number of examples"
	}
	return remediation.Remediation{
		Name:         "num_examples",
		ImmediateMsg: fmt.Sprintf("\n- Your file contains %d prompt-completion pairs%s", d.Len(), suggestion),
	}
}

// NecessaryColumn requires column to exist. A column that differs only in case
// is renamed as a necessary fix; a missing column is fatal.
func NecessaryColumn(d *dataset.Dataset, column string) remediation.Remediation {
	r := remediation.Remediation{Name: "necessary_column"}
	if d.HasColumn(column) {
		return r
	}
	for _, c := range d.Columns() {
		if strings.ToLower(c) == column {
			found := c
			r.ImmediateMsg = fmt.Sprintf("\n- The `%s` column/key should be lowercase", column)
			r.NecessaryMsg = fmt.Sprintf("Lower case column name to `%s`", column)
			r.NecessaryFn = func(x *dataset.Dataset) *dataset.Dataset { return x.RenameColumn(found, column) }
			return r
		}
	}
	r.ErrorMsg = fmt.Sprintf("`%s` column/key is missing. Please make sure you name your columns/keys appropriately, then retry", column)
	return r
}

// AdditionalColumns drops every column except prompt and completion.
func AdditionalColumns(d *dataset.Dataset) remediation.Remediation {
	r := remediation.Remediation{Name: "additional_column"}
	columns := d.Columns()
	if len(columns) <= len(dataset.Fields) {
		return r
	}

	var additional []string
	for _, c := range columns {
		if c != dataset.ColumnPrompt && c != dataset.ColumnCompletion {
			additional = append(additional, c)
		}
	}

	var warn strings.Builder
	for _, field := range dataset.Fields {
		for _, c := range additional {
			if strings.Contains(c, field) {
				fmt.Fprintf(&warn, "\n  WARNING: Some of the additional columns/keys contain `%s` in their name. These will be ignored, and the column/key `%s` will be used instead. This could also result from a duplicate column/key in the provided file.", field, field)
				break
			}
		}
	}

	list := "['" + strings.Join(additional, "', '") + "']"
	r.ImmediateMsg = fmt.Sprintf("\n- The input file should contain exactly two columns/keys per row. Additional columns/keys present are: %s%s", list, warn.String())
	r.NecessaryMsg = fmt.Sprintf("Remove additional columns/keys: %s", list)
	r.NecessaryFn = func(x *dataset.Dataset) *dataset.Dataset {
		out, err := x.Select(dataset.Fields...)
		if err != nil {
			return x
		}
		return out
	}
	return r
}

// NonEmptyField drops rows whose field is empty.
func NonEmptyField(d *dataset.Dataset, field string) remediation.Remediation {
	r := remediation.Remediation{Name: "empty_" + field}
	var empty []int
	for i, v := range d.Column(field) {
		if v == "" {
			empty = append(empty, i)
		}
	}
	if len(empty) == 0 {
		return r
	}
	r.ImmediateMsg = fmt.Sprintf("\n- `%s` column/key should not contain empty strings. These are rows: %s", field, formatIndexes(empty))
	r.NecessaryMsg = fmt.Sprintf("Remove %d rows with empty %ss", len(empty), field)
	r.NecessaryFn = func(x *dataset.Dataset) *dataset.Dataset {
		return x.Filter(func(_ int, row map[string]string) bool { return row[field] != "" })
	}
	return r
}

// FormatInferrer explains what the data looks like when it is classification.
func FormatInferrer(d *dataset.Dataset) remediation.Remediation {
	r := remediation.Remediation{Name: "num_examples"}
	if ft := dataset.InferTaskType(d); ft == dataset.TaskClassify {
		r.ImmediateMsg = fmt.Sprintf("\n- Based on your data it seems like you're trying to fine-tune a model for %s\n- For classification, we recommend you try one of the faster and cheaper models, such as `ada`\n- For classification, you can estimate the expected model performance by keeping a held out dataset, which is not used for training", ft)
	}
	return r
}

// DuplicatedRows offers to drop repeated prompt-completion pairs.
func DuplicatedRows(d *dataset.Dataset) remediation.Remediation {
	r := remediation.Remediation{Name: "duplicated_rows"}
	dups := d.DuplicatePositions(dataset.Fields...)
	if len(dups) == 0 {
		return r
	}
	r.ImmediateMsg = fmt.Sprintf("\n- There are %d duplicated %s sets. These are rows: %s", len(dups), strings.Join(dataset.Fields, "-"), formatIndexes(dups))
	r.OptionalMsg = fmt.Sprintf("Remove %d duplicate rows", len(dups))
	r.OptionalFn = func(x *dataset.Dataset) *dataset.Dataset { return x.DropDuplicates(dataset.Fields...) }
	return r
}

// LongExamples offers to drop examples longer than the model can take.
// Open-ended generation is exempt.
func LongExamples(d *dataset.Dataset) remediation.Remediation {
	r := remediation.Remediation{Name: "long_examples"}
	if dataset.InferTaskType(d) == dataset.TaskOpenEnded {
		return r
	}
	long := longIndexes(d)
	if len(long) == 0 {
		return r
	}
	r.ImmediateMsg = fmt.Sprintf("\n- There are %d examples that are very long. These are rows: %s\nFor conditional generation, and for classification the examples shouldn't be longer than 2048 tokens.", len(long), formatIndexes(long))
	r.OptionalMsg = fmt.Sprintf("Remove %d long examples", len(long))
	r.OptionalFn = func(x *dataset.Dataset) *dataset.Dataset {
		// Earlier fixes may have shifted row positions since the check ran.
		return x.DropRows(longIndexes(x))
	}
	return r
}

func longIndexes(d *dataset.Dataset) []int {
	prompts := d.Column(dataset.ColumnPrompt)
	completions := d.Column(dataset.ColumnCompletion)
	var out []int
	for i := range prompts {
		if len([]rune(prompts[i]))+len([]rune(completions[i])) > maxExampleChars {
			out = append(out, i)
		}
	}
	return out
}

// LowerCase offers to lower-case a column when uppercase letters make up more
// than a third of its letters.
func LowerCase(d *dataset.Dataset, column string) remediation.Remediation {
	var upper, lower int
	for _, v := range d.Column(column) {
		for _, c := range v {
			if !unicode.IsLetter(c) {
				continue
			}
			switch {
			case unicode.IsUpper(c):
				upper++
			case unicode.IsLower(c):
				lower++
			}
		}
	}
	r := remediation.Remediation{Name: "lower_case"}
	if upper*2 <= lower {
		return r
	}
	r.ImmediateMsg = fmt.Sprintf("\n- More than a third of your `%s` column/key is uppercase. Uppercase %ss tends to perform worse than a mixture of case encountered in normal language. We recommend to lower case the data if that makes sense in your domain. See %s for more details", column, column, guideURL)
	r.OptionalMsg = fmt.Sprintf("Lowercase all your data in column/key `%s`", column)
	r.OptionalFn = func(x *dataset.Dataset) *dataset.Dataset { return x.MapColumn(column, strings.ToLower) }
	return r
}

// formatIndexes renders row positions the way the messages list them: [1, 4, 7].
func formatIndexes(idx []int) string {
	parts := make([]string, len(idx))
	for i, v := range idx {
		parts[i] = fmt.Sprint(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
