// Package output writes prepared datasets to disk and tells the user how to
// fine-tune on them.
package output

import (
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"ftprep/internal/dataset"
	"ftprep/internal/formats"
	"ftprep/internal/logging"
	"ftprep/internal/remediation"
	"ftprep/internal/validators"
)

const (
	maxValidExamples = 1000
	trainFraction    = 0.8
	splitSeed        = 42

	secondsPerExample = 1.44
	secondsPerByte    = 0.0515
	queueOverhead     = 140
)

// Hyperparams are the classification settings suggested for a split dataset.
type Hyperparams struct {
	NClasses      int
	PositiveClass string // set only for binary classification
}

// Args renders the hyper-parameters as fine-tune command flags.
func (h Hyperparams) Args() string {
	if h.NClasses == 0 {
		return ""
	}
	args := " --compute_classification_metrics"
	if h.NClasses == 2 {
		return args + fmt.Sprintf(" --classification_positive_class %q", h.PositiveClass)
	}
	return args + fmt.Sprintf(" --classification_n_classes %d", h.NClasses)
}

// Result describes what WriteOutFile did.
type Result struct {
	Files       []string
	Split       bool
	TaskType    dataset.TaskType
	Hyperparams Hyperparams
	Estimate    string
	Aborted     bool
}

// Writer writes prepared files and prints the follow-up instructions to Out.
type Writer struct {
	Out io.Writer
}

// NewWriter returns a Writer printing to out. A nil out discards messages.
func NewWriter(out io.Writer) *Writer {
	if out == nil {
		out = io.Discard
	}
	return &Writer{Out: out}
}

// WriteOutFile is the validators.WriteFunc backed by Write.
func (w *Writer) WriteOutFile(ds *dataset.Dataset, path string, anyRemediations bool, acc remediation.Acceptor) (validators.Written, error) {
	res, err := w.Write(ds, path, anyRemediations, acc)
	if res == nil {
		return validators.Written{}, err
	}
	return validators.Written{Files: res.Files, Aborted: res.Aborted}, err
}

// Write persists ds next to path when it was changed or the user asks for a
// train/valid split. Classification data is offered a split first. When
// nothing changed the original file is recommended as is.
func (w *Writer) Write(ds *dataset.Dataset, path string, anyRemediations bool, acc remediation.Acceptor) (*Result, error) {
	res := &Result{TaskType: dataset.InferTaskType(ds)}
	promptSuffix := escape(dataset.CommonSuffix(ds.Column(dataset.ColumnPrompt)))
	completionSuffix := escape(dataset.CommonSuffix(ds.Column(dataset.ColumnCompletion)))

	if res.TaskType == dataset.TaskClassify {
		ok, err := acc.Accept(w.Out, "- [Recommended] Would you like to split into training and validation set? [Y/n]: ")
		if err != nil {
			return res, err
		}
		res.Split = ok
	}

	stopHint := ""
	if completionSuffix != "" {
		stopHint = fmt.Sprintf(" Make sure to include `stop=[\"%s\"]` so that the generated texts ends at the expected place.", completionSuffix)
	}

	if !anyRemediations && !res.Split {
		fmt.Fprintf(w.Out, "\nYou can use your file for fine-tuning:\n> openai api fine_tunes.create -t \"%s\"\n\nAfter you've fine-tuned a model, remember that your prompt has to end with the indicator string `%s` for the model to start generating completions, rather than continuing with the prompt.%s\n",
			path, promptSuffix, stopHint)
		res.Estimate = w.printEstimate(ds, res.TaskType)
		logging.Output("%s: no changes, original file is ready", path)
		return res, nil
	}

	ok, err := acc.Accept(w.Out, "\n\nYour data will be written to a new JSONL file. Proceed [Y/n]: ")
	if err != nil {
		return res, err
	}
	if !ok {
		fmt.Fprint(w.Out, "Aborting... did not write the file\n")
		res.Aborted = true
		logging.Output("%s: write declined", path)
		return res, nil
	}

	names := OutputNames(path, res.Split)
	if res.Split {
		train, valid := Split(ds)
		if err := formats.WriteJSONL(train, names[0], dataset.Fields...); err != nil {
			return res, fmt.Errorf("failed to write %s: %w", names[0], err)
		}
		res.Files = append(res.Files, names[0])
		if err := formats.WriteJSONL(valid, names[1], dataset.Fields...); err != nil {
			return res, fmt.Errorf("failed to write %s: %w", names[1], err)
		}
		res.Files = append(res.Files, names[1])
		res.Hyperparams = ClassificationHyperparams(ds)
		logging.OutputDebug("%s: split into %d train / %d valid rows", path, train.Len(), valid.Len())
	} else {
		if err := formats.WriteJSONL(ds, names[0], dataset.Fields...); err != nil {
			return res, fmt.Errorf("failed to write %s: %w", names[0], err)
		}
		res.Files = append(res.Files, names[0])
	}
	logging.Output("%s: wrote %s", path, strings.Join(res.Files, ", "))

	plural, validArg := "", ""
	if res.Split {
		plural = "s"
		validArg = fmt.Sprintf(` -v "%s"`, names[1])
	}
	reminder := ""
	if promptSuffix != "" {
		reminder = fmt.Sprintf("After you've fine-tuned a model, remember that your prompt has to end with the indicator string `%s` for the model to start generating completions, rather than continuing with the prompt.", promptSuffix)
	}
	fmt.Fprintf(w.Out, "\nWrote modified file%s to `%s`\nFeel free to take a look!\n\nNow use that file when fine-tuning:\n> openai api fine_tunes.create -t \"%s\"%s%s\n\n%s%s\n",
		plural, strings.Join(names, "` and `"), names[0], validArg, res.Hyperparams.Args(), reminder, stopHint)
	res.Estimate = w.printEstimate(ds, res.TaskType)
	return res, nil
}

func (w *Writer) printEstimate(ds *dataset.Dataset, ft dataset.TaskType) string {
	est := EstimateTrainingTime(ds, ft)
	fmt.Fprintf(w.Out, "Once your model starts training, it'll approximately take %s to train a `curie` model, and less for `ada` and `babbage`. Queue will approximately take half an hour per job ahead of you.\n", est)
	return est
}

// =============================================================================
// NAMING AND SPLITTING
// =============================================================================

// OutputNames returns the first set of output paths for path that do not exist
// yet: "<stem>_prepared.jsonl", or the _train/_valid pair when split. A " (i)"
// counter is added until every candidate is free.
func OutputNames(path string, split bool) []string {
	stem := strings.TrimSuffix(path, filepath.Ext(path))
	suffixes := []string{""}
	if split {
		suffixes = []string{"_train", "_valid"}
	}
	for i := 0; ; i++ {
		counter := ""
		if i > 0 {
			counter = fmt.Sprintf(" (%d)", i)
		}
		names := make([]string, len(suffixes))
		taken := false
		for j, s := range suffixes {
			names[j] = stem + "_prepared" + s + counter + ".jsonl"
			if _, err := os.Stat(names[j]); err == nil {
				taken = true
			}
		}
		if !taken {
			return names
		}
	}
}

// Split divides ds into training and validation rows. The validation set holds
// at most 1000 rows and at most a fifth of the data. The shuffle is seeded so
// the same input always splits the same way.
func Split(ds *dataset.Dataset) (train, valid *dataset.Dataset) {
	n := ds.Len()
	nTrain := n - maxValidExamples
	if f := int(float64(n) * trainFraction); f > nTrain {
		nTrain = f
	}
	perm := rand.New(rand.NewSource(splitSeed)).Perm(n)
	picked := make(map[int]bool, nTrain)
	for _, p := range perm[:nTrain] {
		picked[p] = true
	}
	var rest []int
	for i := 0; i < n; i++ {
		if !picked[i] {
			rest = append(rest, i)
		}
	}
	return ds.TakeRows(perm[:nTrain]), ds.TakeRows(rest)
}

// ClassificationHyperparams counts the classes in the completion column. For
// two classes the most frequent one is the positive class.
func ClassificationHyperparams(ds *dataset.Dataset) Hyperparams {
	counts := dataset.ValueCounts(ds.Column(dataset.ColumnCompletion))
	h := Hyperparams{NClasses: len(counts)}
	if h.NClasses == 2 {
		h.PositiveClass = counts[0].Value
	}
	return h
}

// =============================================================================
// TRAINING TIME
// =============================================================================

// EstimateTrainingTime guesses how long a fine-tune takes, including queueing.
// Classification scales with rows, everything else with data size.
func EstimateTrainingTime(ds *dataset.Dataset, ft dataset.TaskType) string {
	var seconds float64
	if ft == dataset.TaskClassify {
		seconds = float64(ds.Len()) * secondsPerExample
	} else {
		seconds = float64(ds.ByteSize()) * secondsPerByte
	}
	return FormatDuration(seconds + queueOverhead)
}

// FormatDuration renders seconds in the largest unit that keeps the value
// above one, rounded to two decimals.
func FormatDuration(seconds float64) string {
	switch {
	case seconds < 60:
		return round2(seconds) + " seconds"
	case seconds < 3600:
		return round2(seconds/60) + " minutes"
	case seconds < 86400:
		return round2(seconds/3600) + " hours"
	default:
		return round2(seconds/86400) + " days"
	}
}

func round2(v float64) string {
	s := strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\n", "\\n")
}
