package dataset

import "sort"

// TaskType is the kind of fine-tuning job a dataset looks like.
type TaskType string

const (
	TaskOpenEnded   TaskType = "open-ended generation"
	TaskClassify    TaskType = "classification"
	TaskConditional TaskType = "conditional generation"
)

// classificationThreshold is the minimum average number of examples per class.
const classificationThreshold = 3

// InferTaskType guesses the task from the prompt/completion columns.
// Empty prompts mean open-ended generation; few distinct completions relative
// to the row count mean classification.
func InferTaskType(d *Dataset) TaskType {
	total := 0
	for _, p := range d.Column(ColumnPrompt) {
		total += len([]rune(p))
	}
	if total == 0 {
		return TaskOpenEnded
	}
	if float64(len(Unique(d.Column(ColumnCompletion)))) < float64(d.Len())/classificationThreshold {
		return TaskClassify
	}
	return TaskConditional
}

// Unique returns the distinct values in first-seen order.
func Unique(values []string) []string {
	seen := make(map[string]bool, len(values))
	var out []string
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// ValueCount is one entry of a frequency table.
type ValueCount struct {
	Value string
	Count int
}

// ValueCounts returns value frequencies, most frequent first. Ties keep
// first-seen order.
func ValueCounts(values []string) []ValueCount {
	counts := make(map[string]int, len(values))
	for _, v := range values {
		counts[v]++
	}
	uniq := Unique(values)
	out := make([]ValueCount, len(uniq))
	for i, v := range uniq {
		out[i] = ValueCount{Value: v, Count: counts[v]}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// CommonPrefix returns the longest prefix shared by every value, measured in
// characters. An empty input yields "".
func CommonPrefix(values []string) string {
	return commonXfix(values, func(r []rune, n int) []rune {
		if n > len(r) {
			return r
		}
		return r[:n]
	})
}

// CommonSuffix returns the longest suffix shared by every value.
func CommonSuffix(values []string) string {
	return commonXfix(values, func(r []rune, n int) []rune {
		if n > len(r) {
			return r
		}
		return r[len(r)-n:]
	})
}

// commonXfix grows the candidate one character at a time until the values
// disagree or the candidate stops growing because every value is exhausted.
func commonXfix(values []string, cut func([]rune, int) []rune) string {
	if len(values) == 0 {
		return ""
	}
	runes := make([][]rune, len(values))
	for i, v := range values {
		runes[i] = []rune(v)
	}
	common := ""
	n := 0
	for {
		first := string(cut(runes[0], n+1))
		for _, r := range runes[1:] {
			if string(cut(r, n+1)) != first {
				return common
			}
		}
		if first == common {
			return common
		}
		common = first
		n++
	}
}

// AllEqual reports whether every value equals s. An empty input is true.
func AllEqual(values []string, s string) bool {
	for _, v := range values {
		if v != s {
			return false
		}
	}
	return true
}
