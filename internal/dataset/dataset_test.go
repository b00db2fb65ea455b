package dataset

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPadsAndTruncates(t *testing.T) {
	d := New([]string{"a", "b"}, [][]string{{"1"}, {"1", "2", "3"}})

	want := [][]string{{"1", ""}, {"1", "2"}}
	if diff := cmp.Diff(want, d.Rows()); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestOperationsDoNotMutateReceiver(t *testing.T) {
	orig := FromRecords([2]string{"a", "x"}, [2]string{"b", "y"})

	_ = orig.MapColumn(ColumnPrompt, strings.ToUpper)
	_ = orig.RenameColumn(ColumnPrompt, "Prompt")
	_ = orig.DropRows([]int{0})

	assert.Equal(t, []string{"a", "b"}, orig.Column(ColumnPrompt))
	assert.Equal(t, Fields, orig.Columns())
	assert.Equal(t, 2, orig.Len())
}

func TestSelect(t *testing.T) {
	d := New([]string{"extra", "completion", "prompt"}, [][]string{{"e", "c", "p"}})

	sel, err := d.Select(Fields...)
	require.NoError(t, err)
	assert.Equal(t, Fields, sel.Columns())
	assert.Equal(t, [][]string{{"p", "c"}}, sel.Rows())

	_, err = d.Select("missing")
	assert.Error(t, err)
}

func TestDuplicatePositions(t *testing.T) {
	d := FromRecords(
		[2]string{"a", "1"},
		[2]string{"b", "2"},
		[2]string{"a", "1"},
		[2]string{"a", "2"},
		[2]string{"b", "2"},
	)

	assert.Equal(t, []int{2, 4}, d.DuplicatePositions(Fields...))
	assert.Equal(t, 3, d.DropDuplicates(Fields...).Len())
}

func TestFilterAndTake(t *testing.T) {
	d := FromRecords([2]string{"a", ""}, [2]string{"b", "y"}, [2]string{"c", "z"})

	kept := d.Filter(func(_ int, row map[string]string) bool { return row[ColumnCompletion] != "" })
	assert.Equal(t, []string{"b", "c"}, kept.Column(ColumnPrompt))

	taken := d.TakeRows([]int{2, 0, 9})
	assert.Equal(t, []string{"c", "a"}, taken.Column(ColumnPrompt))
}

func TestCommonXfix(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		prefix string
		suffix string
	}{
		{"empty", nil, "", ""},
		{"shared", []string{"Q: one ->", "Q: two ->"}, "Q: ", " ->"},
		{"nothing shared", []string{"abc", "xyz"}, "", ""},
		{"identical", []string{"same", "same"}, "same", "same"},
		{"shorter value", []string{"ab", "abc"}, "ab", ""},
		{"unicode", []string{"héllo→", "hé→"}, "hé", "→"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.prefix, CommonPrefix(tt.values))
			assert.Equal(t, tt.suffix, CommonSuffix(tt.values))
		})
	}
}

func TestInferTaskType(t *testing.T) {
	open := FromRecords([2]string{"", "story one"}, [2]string{"", "story two"})
	assert.Equal(t, TaskOpenEnded, InferTaskType(open))

	var pairs [][2]string
	for i := 0; i < 9; i++ {
		label := "pos"
		if i%2 == 0 {
			label = "neg"
		}
		pairs = append(pairs, [2]string{strings.Repeat("x", i+1), label})
	}
	assert.Equal(t, TaskClassify, InferTaskType(FromRecords(pairs...)))

	cond := FromRecords([2]string{"a", "1"}, [2]string{"b", "2"}, [2]string{"c", "3"})
	assert.Equal(t, TaskConditional, InferTaskType(cond))
}

func TestValueCounts(t *testing.T) {
	got := ValueCounts([]string{"b", "a", "a", "b", "c", "a"})
	want := []ValueCount{{"a", 3}, {"b", 2}, {"c", 1}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("counts mismatch (-want +got):\n%s", diff)
	}
}
