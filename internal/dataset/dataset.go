// Package dataset provides the in-memory table that every preparation step
// reads and rewrites. A Dataset is a list of named columns and rows of string
// cells. Operations never mutate the receiver; they return a new Dataset so a
// caller holding an earlier value keeps seeing the data it was given.
package dataset

import (
	"fmt"
	"strings"
)

// Well-known column names for fine-tuning data.
const (
	ColumnPrompt     = "prompt"
	ColumnCompletion = "completion"
)

// Fields are the columns written to prepared files, in output order.
var Fields = []string{ColumnPrompt, ColumnCompletion}

// Dataset is a rectangular table of string cells.
type Dataset struct {
	columns []string
	rows    [][]string
}

// New builds a dataset from column names and rows. Short rows are padded with
// empty cells and long rows are truncated to the column count.
func New(columns []string, rows [][]string) *Dataset {
	cols := append([]string(nil), columns...)
	out := make([][]string, len(rows))
	for i, r := range rows {
		row := make([]string, len(cols))
		copy(row, r)
		out[i] = row
	}
	return &Dataset{columns: cols, rows: out}
}

// FromRecords builds a dataset from prompt/completion pairs.
func FromRecords(pairs ...[2]string) *Dataset {
	rows := make([][]string, len(pairs))
	for i, p := range pairs {
		rows[i] = []string{p[0], p[1]}
	}
	return New(Fields, rows)
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.rows)
}

// Columns returns a copy of the column names.
func (d *Dataset) Columns() []string {
	if d == nil {
		return nil
	}
	return append([]string(nil), d.columns...)
}

// HasColumn reports whether a column with exactly this name exists.
func (d *Dataset) HasColumn(name string) bool {
	return d.columnIndex(name) >= 0
}

func (d *Dataset) columnIndex(name string) int {
	if d == nil {
		return -1
	}
	for i, c := range d.columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns a copy of every cell in the named column.
// It returns nil when the column does not exist.
func (d *Dataset) Column(name string) []string {
	idx := d.columnIndex(name)
	if idx < 0 {
		return nil
	}
	out := make([]string, len(d.rows))
	for i, r := range d.rows {
		out[i] = r[idx]
	}
	return out
}

// Get returns the cell at row i of the named column.
func (d *Dataset) Get(i int, column string) string {
	idx := d.columnIndex(column)
	if idx < 0 || i < 0 || i >= len(d.rows) {
		return ""
	}
	return d.rows[i][idx]
}

// Row returns a column->value view of row i.
func (d *Dataset) Row(i int) map[string]string {
	out := make(map[string]string, len(d.columns))
	for c, name := range d.columns {
		if _, seen := out[name]; !seen {
			out[name] = d.rows[i][c]
		}
	}
	return out
}

// Rows returns a deep copy of the rows.
func (d *Dataset) Rows() [][]string {
	if d == nil {
		return nil
	}
	out := make([][]string, len(d.rows))
	for i, r := range d.rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}

// Clone returns a deep copy.
func (d *Dataset) Clone() *Dataset {
	if d == nil {
		return nil
	}
	return New(d.columns, d.rows)
}

// =============================================================================
// COLUMN OPERATIONS
// =============================================================================

// Select returns a dataset holding only the given columns, in the given order.
func (d *Dataset) Select(columns ...string) (*Dataset, error) {
	idx := make([]int, len(columns))
	for i, c := range columns {
		idx[i] = d.columnIndex(c)
		if idx[i] < 0 {
			return nil, fmt.Errorf("column %q not found", c)
		}
	}
	rows := make([][]string, len(d.rows))
	for r, row := range d.rows {
		out := make([]string, len(idx))
		for i, j := range idx {
			out[i] = row[j]
		}
		rows[r] = out
	}
	return &Dataset{columns: append([]string(nil), columns...), rows: rows}, nil
}

// RenameColumn renames the first column called from to to.
func (d *Dataset) RenameColumn(from, to string) *Dataset {
	out := d.Clone()
	if idx := out.columnIndex(from); idx >= 0 {
		out.columns[idx] = to
	}
	return out
}

// MapColumn applies fn to every cell of a column.
func (d *Dataset) MapColumn(column string, fn func(string) string) *Dataset {
	out := d.Clone()
	idx := out.columnIndex(column)
	if idx < 0 {
		return out
	}
	for _, r := range out.rows {
		r[idx] = fn(r[idx])
	}
	return out
}

// =============================================================================
// ROW OPERATIONS
// =============================================================================

// Filter keeps the rows for which keep returns true. keep receives the row
// position and a column->value view of the row.
func (d *Dataset) Filter(keep func(i int, row map[string]string) bool) *Dataset {
	out := &Dataset{columns: append([]string(nil), d.columns...)}
	for i, r := range d.rows {
		if keep(i, d.Row(i)) {
			out.rows = append(out.rows, append([]string(nil), r...))
		}
	}
	return out
}

// DropRows removes the rows at the given positions. Out-of-range positions are
// ignored.
func (d *Dataset) DropRows(positions []int) *Dataset {
	drop := make(map[int]bool, len(positions))
	for _, p := range positions {
		drop[p] = true
	}
	return d.Filter(func(i int, _ map[string]string) bool { return !drop[i] })
}

// TakeRows returns the rows at the given positions, in that order.
func (d *Dataset) TakeRows(positions []int) *Dataset {
	out := &Dataset{columns: append([]string(nil), d.columns...)}
	for _, p := range positions {
		if p >= 0 && p < len(d.rows) {
			out.rows = append(out.rows, append([]string(nil), d.rows[p]...))
		}
	}
	return out
}

// DuplicatePositions returns the positions of rows whose values in the given
// columns repeat an earlier row. The first occurrence is not reported.
func (d *Dataset) DuplicatePositions(columns ...string) []int {
	idx := make([]int, 0, len(columns))
	for _, c := range columns {
		if i := d.columnIndex(c); i >= 0 {
			idx = append(idx, i)
		}
	}
	seen := make(map[string]bool, len(d.rows))
	var dups []int
	for r, row := range d.rows {
		var key strings.Builder
		for _, i := range idx {
			key.WriteString(row[i])
			key.WriteByte(0)
		}
		k := key.String()
		if seen[k] {
			dups = append(dups, r)
			continue
		}
		seen[k] = true
	}
	return dups
}

// DropDuplicates removes rows that repeat an earlier row on the given columns.
func (d *Dataset) DropDuplicates(columns ...string) *Dataset {
	return d.DropRows(d.DuplicatePositions(columns...))
}

// ByteSize approximates the in-memory size of the cell data in bytes.
func (d *Dataset) ByteSize() int {
	if d == nil {
		return 0
	}
	n := 0
	for _, r := range d.rows {
		for _, c := range r {
			n += len(c)
		}
	}
	return n
}
