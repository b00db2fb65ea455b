package validators

import (
	"fmt"
	"strings"

	"ftprep/internal/dataset"
	"ftprep/internal/remediation"
)

// Separator candidates, tried in order; the first one that appears in no
// prompt (or completion) is suggested.
var (
	promptSeparators        = []string{" ->", "\n\n###\n\n", "\n\n===\n\n", "\n\n---\n\n", "\n\n===>\n\n", "\n\n--->\n\n"}
	defaultPromptSeparator  = "\n\n### =>\n\n"
	completionEndings       = []string{"\n", ".", " END", "***", "+++", "&&&", "$$$", "@@@", "%%%"}
	defaultCompletionEnding = " [END]"
)

func anyContains(values []string, sub string) bool {
	for _, v := range values {
		if strings.Contains(v, sub) {
			return true
		}
	}
	return false
}

// repeatsSuffix reports whether suffix also occurs in some value before its
// final occurrence.
func repeatsSuffix(values []string, suffix string) bool {
	for _, v := range values {
		if strings.Contains(strings.TrimSuffix(v, suffix), suffix) {
			return true
		}
	}
	return false
}

func appendTo(column, suffix string) remediation.Fn {
	return func(x *dataset.Dataset) *dataset.Dataset {
		return x.MapColumn(column, func(s string) string { return s + suffix })
	}
}

func trimRunes(s string, n int) string {
	r := []rune(s)
	if n > len(r) {
		return ""
	}
	return string(r[n:])
}

// CommonPromptSuffix checks for a separator at the end of every prompt and
// offers to add one when there is none.
func CommonPromptSuffix(d *dataset.Dataset) remediation.Remediation {
	r := remediation.Remediation{Name: "common_suffix"}
	prompts := d.Column(dataset.ColumnPrompt)

	suggested := defaultPromptSeparator
	for _, opt := range promptSeparators {
		if opt == " ->" && anyContains(prompts, "\n") {
			continue
		}
		if anyContains(prompts, opt) {
			continue
		}
		suggested = opt
		break
	}
	display := escapeNewlines(suggested)

	if dataset.InferTaskType(d) == dataset.TaskOpenEnded {
		return r
	}

	common := dataset.CommonSuffix(prompts)
	if dataset.AllEqual(prompts, common) {
		r.ErrorMsg = fmt.Sprintf("All prompts are identical: `%s`\nConsider leaving the prompts blank if you want to do open-ended generation, otherwise ensure prompts are different", common)
		return r
	}

	if common != "" {
		r.ImmediateMsg = fmt.Sprintf("\n- All prompts end with suffix `%s`", escapeNewlines(common))
		if len([]rune(common)) > longSuffixLen {
			r.ImmediateMsg += fmt.Sprintf(". This suffix seems very long. Consider replacing with a shorter suffix, such as `%s`", display)
		}
		if repeatsSuffix(prompts, common) {
			r.ImmediateMsg += fmt.Sprintf("\n  WARNING: Some of your prompts contain the suffix `%s` more than once. We strongly suggest that you review your prompts and add a unique suffix", common)
		}
		return r
	}

	r.ImmediateMsg = fmt.Sprintf("\n- Your data does not contain a common separator at the end of your prompts. Having a separator string appended to the end of the prompt makes it clearer to the fine-tuned model where the completion should begin. See %s for more detail and examples. If you intend to do open-ended generation, then you should leave the prompts empty", guideURL)
	r.OptionalMsg = fmt.Sprintf("Add a suffix separator `%s` to all prompts", display)
	r.OptionalFn = appendTo(dataset.ColumnPrompt, suggested)
	return r
}

// CommonPromptPrefix reports a shared prompt prefix and offers to remove it
// when it is long enough to look like an instruction.
func CommonPromptPrefix(d *dataset.Dataset) remediation.Remediation {
	r := remediation.Remediation{Name: "common_prefix"}
	if dataset.InferTaskType(d) == dataset.TaskOpenEnded {
		return r
	}
	prompts := d.Column(dataset.ColumnPrompt)
	common := dataset.CommonPrefix(prompts)
	// Identical prompts are already fatal in CommonPromptSuffix.
	if common == "" || dataset.AllEqual(prompts, common) {
		return r
	}

	r.ImmediateMsg = fmt.Sprintf("\n- All prompts start with prefix `%s`", common)
	if len([]rune(common)) > maxPromptPrefixLen {
		r.ImmediateMsg += ". Fine-tuning doesn't require the instruction specifying the task, or a few-shot example scenario. Most of the time you should only add the input data into the prompt, and the desired output into the completion"
		r.OptionalMsg = fmt.Sprintf("Remove prefix `%s` from all prompts", common)
		n := len([]rune(common))
		r.OptionalFn = func(x *dataset.Dataset) *dataset.Dataset {
			return x.MapColumn(dataset.ColumnPrompt, func(s string) string { return trimRunes(s, n) })
		}
	}
	return r
}

// CommonCompletionPrefix offers to remove a shared completion prefix of five
// or more characters, keeping a single leading space if there was one.
func CommonCompletionPrefix(d *dataset.Dataset) remediation.Remediation {
	r := remediation.Remediation{Name: "common_prefix"}
	completions := d.Column(dataset.ColumnCompletion)
	common := dataset.CommonPrefix(completions)
	n := len([]rune(common))
	if n < minCompletionPrefixLen || dataset.AllEqual(completions, common) {
		return r
	}
	keepSpace := strings.HasPrefix(common, " ")

	r.ImmediateMsg = fmt.Sprintf("\n- All completions start with prefix `%s`. Most of the time you should only add the output data into the completion, without any prefix", common)
	r.OptionalMsg = fmt.Sprintf("Remove prefix `%s` from all completions", common)
	r.OptionalFn = func(x *dataset.Dataset) *dataset.Dataset {
		return x.MapColumn(dataset.ColumnCompletion, func(s string) string {
			s = trimRunes(s, n)
			if keepSpace {
				s = " " + s
			}
			return s
		})
	}
	return r
}

// CommonCompletionSuffix checks for a common ending on completions of
// conditional generation data and offers to add one when there is none.
func CommonCompletionSuffix(d *dataset.Dataset) remediation.Remediation {
	r := remediation.Remediation{Name: "common_suffix"}
	if ft := dataset.InferTaskType(d); ft == dataset.TaskOpenEnded || ft == dataset.TaskClassify {
		return r
	}
	completions := d.Column(dataset.ColumnCompletion)
	common := dataset.CommonSuffix(completions)
	if dataset.AllEqual(completions, common) {
		r.ErrorMsg = fmt.Sprintf("All completions are identical: `%s`\nEnsure completions are different, otherwise the model will just repeat `%s`", common, common)
		return r
	}

	suggested := defaultCompletionEnding
	for _, opt := range completionEndings {
		if !anyContains(completions, opt) {
			suggested = opt
			break
		}
	}
	display := escapeNewlines(suggested)

	if common != "" {
		r.ImmediateMsg = fmt.Sprintf("\n- All completions end with suffix `%s`", escapeNewlines(common))
		if len([]rune(common)) > longSuffixLen {
			r.ImmediateMsg += fmt.Sprintf(". This suffix seems very long. Consider replacing with a shorter suffix, such as `%s`", display)
		}
		if repeatsSuffix(completions, common) {
			r.ImmediateMsg += fmt.Sprintf("\n  WARNING: Some of your completions contain the suffix `%s` more than once. We suggest that you review your completions and add a unique ending", common)
		}
		return r
	}

	r.ImmediateMsg = fmt.Sprintf("\n- Your data does not contain a common ending at the end of your completions. Having a common ending string appended to the end of the completion makes it clearer to the fine-tuned model where the completion should end. See %s for more detail and examples.", guideURL)
	r.OptionalMsg = fmt.Sprintf("Add a suffix ending `%s` to all completions", display)
	r.OptionalFn = appendTo(dataset.ColumnCompletion, suggested)
	return r
}

// CompletionsSpaceStart offers to start every completion with a space, which
// tokenizes better.
func CompletionsSpaceStart(d *dataset.Dataset) remediation.Remediation {
	r := remediation.Remediation{Name: "completion_space_start"}
	completions := d.Column(dataset.ColumnCompletion)
	if len(completions) > 0 && allStartWithSpace(completions) {
		return r
	}
	r.ImmediateMsg = fmt.Sprintf("\n- The completion should start with a whitespace character (` `). This tends to produce better results due to the tokenization we use. See %s for more details", guideURL)
	r.OptionalMsg = "Add a whitespace character to the beginning of the completion"
	r.OptionalFn = func(x *dataset.Dataset) *dataset.Dataset {
		return x.MapColumn(dataset.ColumnCompletion, func(s string) string {
			if strings.HasPrefix(s, " ") {
				return s
			}
			return " " + s
		})
	}
	return r
}

func allStartWithSpace(values []string) bool {
	for _, v := range values {
		if !strings.HasPrefix(v, " ") {
			return false
		}
	}
	return true
}
