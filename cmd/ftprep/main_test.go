package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ftprep/internal/config"
	"ftprep/internal/dataset"
	"ftprep/internal/formats"
	"ftprep/internal/remediation"
	"ftprep/internal/store"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const cleanJSONL = `{"prompt":"item 1 ->","completion":" one\n"}
{"prompt":"item 2 ->","completion":" two\n"}
{"prompt":"item 3 ->","completion":" three\n"}
`

// setupTest resets the package globals for a command test.
func setupTest(t *testing.T) {
	t.Helper()
	logger = zap.NewNop()
	workspace = t.TempDir()
	cfg = config.DefaultConfig()
	verbose = false
	trainFile, validFile = "", ""
	autoAccept, watchFiles, noHistory = true, false, false
	templateText, templateOutCol, templateStop, templateOut = "", "", "", ""
	classesColumn = dataset.ColumnCompletion
	historyLimit = 20
}

// newTestCmd returns a command with a background context writing to out.
func newTestCmd(out io.Writer) *cobra.Command {
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	cmd.SetOut(out)
	cmd.SetErr(out)
	return cmd
}

func captureOutput(t *testing.T, fn func()) string {
	t.Helper()

	origOut := os.Stdout
	origErr := os.Stderr
	rOut, wOut, _ := os.Pipe()
	rErr, wErr, _ := os.Pipe()
	os.Stdout = wOut
	os.Stderr = wErr

	done := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, rOut)
		_, _ = io.Copy(&buf, rErr)
		done <- buf.String()
	}()

	fn()

	_ = wOut.Close()
	_ = wErr.Close()
	os.Stdout = origOut
	os.Stderr = origErr
	return <-done
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(workspace, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRootCommandRegistration(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"prepare-data", "check", "template", "classes", "history"} {
		assert.True(t, names[want], "missing command %s", want)
	}
	for _, flag := range []string{"verbose", "workspace", "config"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(flag), "missing flag %s", flag)
	}
}

// =============================================================================
// PREPARE-DATA
// =============================================================================

func TestPrepareWellFormedFile(t *testing.T) {
	setupTest(t)
	train := writeFile(t, "train.jsonl", cleanJSONL)

	var out bytes.Buffer
	require.NoError(t, runPrepare(newTestCmd(&out), []string{train}))
	assert.Contains(t, out.String(), "You can use your file for fine-tuning")

	runs, err := store.Open(cfg.DatabasePath(workspace))
	require.NoError(t, err)
	defer runs.Close()
	list, err := runs.List(0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, train, list[0].Source)
	assert.Equal(t, store.StatusOK, list[0].Status)
	assert.Equal(t, 3, list[0].Rows)
}

func TestPrepareWritesFixedFile(t *testing.T) {
	setupTest(t)
	noHistory = true
	train := writeFile(t, "train.csv", "prompt,completion\nitem 1 ->, one\nitem 2 ->, two\nitem 3 ->, three\n")

	trainFile = train

	var out bytes.Buffer
	require.NoError(t, runPrepare(newTestCmd(&out), nil))
	assert.Contains(t, out.String(), "Your format `CSV` will be converted to `JSONL`")

	want := filepath.Join(workspace, "train_prepared.jsonl")
	assert.Contains(t, out.String(), want)
	ds, rem := formats.ReadAnyFormat(want)
	require.Empty(t, rem.ErrorMsg)
	assert.Equal(t, 3, ds.Len())
	assert.Equal(t, dataset.Fields, ds.Columns())
}

func TestPrepareRequiresTrainingFile(t *testing.T) {
	setupTest(t)

	err := runPrepare(newTestCmd(io.Discard), nil)
	assert.ErrorContains(t, err, "training file is required")
}

func TestPrepareMissingFile(t *testing.T) {
	setupTest(t)
	noHistory = true

	var out bytes.Buffer
	err := runPrepare(newTestCmd(&out), []string{filepath.Join(workspace, "nope.csv")})
	require.Error(t, err)

	var rerr *remediation.Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "read_any_format", rerr.Validator)
	assert.Contains(t, rerr.Message, "does not exist")
}

func TestNewAcceptor(t *testing.T) {
	assert.IsType(t, remediation.AutoAccept{}, newAcceptor(true, "tui", io.Discard))
	assert.IsType(t, &remediation.LinePrompter{}, newAcceptor(false, "line", io.Discard))
}

// =============================================================================
// CHECK
// =============================================================================

func TestCheckReportsEveryFile(t *testing.T) {
	setupTest(t)
	good := writeFile(t, "good.jsonl", cleanJSONL)
	bad := writeFile(t, "bad.parquet", "x")

	var out bytes.Buffer
	err := runCheck(newTestCmd(&out), []string{good, bad})
	assert.ErrorContains(t, err, "1 of 2 files failed validation")

	text := out.String()
	assert.Contains(t, text, "Check summary")
	assert.Contains(t, text, good)
	assert.Contains(t, text, "ERROR in read_any_format validator")
	assert.Contains(t, text, "Failed check")
	assert.Less(t, strings.Index(text, good), strings.Index(text, bad), "results keep argument order")

	entries, err := os.ReadDir(workspace)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "check must not write files")
}

func TestFailedCheck(t *testing.T) {
	assert.Equal(t, "-", failedCheck(nil))
	assert.Equal(t, "-", failedCheck(errors.New("disk full")))

	err := fmt.Errorf("train.csv: %w", &remediation.Error{Validator: "necessary_column", Message: "missing"})
	assert.Equal(t, "necessary_column", failedCheck(err))
}

func TestReportErrorDropsFilePrefix(t *testing.T) {
	var out bytes.Buffer
	reportError(&out, fmt.Errorf("train.csv: %w", &remediation.Error{Validator: "read_any_format", Message: "File train.csv does not exist."}))
	assert.Equal(t, "\nERROR in read_any_format validator: File train.csv does not exist.\n", out.String())

	out.Reset()
	reportError(&out, errors.New("a training file is required"))
	assert.Equal(t, "a training file is required\n", out.String())
}

func TestCheckAllGood(t *testing.T) {
	setupTest(t)
	cfg.Check.MaxConcurrency = 1
	a := writeFile(t, "a.jsonl", cleanJSONL)
	b := writeFile(t, "b.jsonl", cleanJSONL)

	var out bytes.Buffer
	require.NoError(t, runCheck(newTestCmd(&out), []string{a, b}))
	assert.Contains(t, out.String(), "conditional generation")
}

// =============================================================================
// TEMPLATE AND CLASSES
// =============================================================================

func TestTemplateWritesJSONL(t *testing.T) {
	setupTest(t)
	src := writeFile(t, "tickets.csv", "body,label\nprinter on fire,hardware\nforgot password,account\n")
	templateText = `Ticket: {{ body }}\nCategory:`
	templateOutCol = "label"
	templateStop = `\n`

	var out bytes.Buffer
	require.NoError(t, runTemplate(newTestCmd(&out), []string{src}))

	dest := filepath.Join(workspace, "tickets_templated.jsonl")
	assert.Contains(t, out.String(), "Wrote 2 examples")

	ds, rem := formats.ReadAnyFormat(dest)
	require.Empty(t, rem.ErrorMsg)
	assert.Equal(t, []string{"Ticket: printer on fire\nCategory:", "Ticket: forgot password\nCategory:"}, ds.Column(dataset.ColumnPrompt))
	assert.Equal(t, []string{"hardware\n", "account\n"}, ds.Column(dataset.ColumnCompletion))
}

func TestTemplateUnknownColumn(t *testing.T) {
	setupTest(t)
	src := writeFile(t, "tickets.csv", "body,label\na,b\n")
	templateText = "{{ title }}"
	templateOutCol = "label"

	err := runTemplate(newTestCmd(io.Discard), []string{src})
	assert.ErrorContains(t, err, "unknown columns: title")
}

func TestClasses(t *testing.T) {
	setupTest(t)
	src := writeFile(t, "labels.csv", "prompt,completion\na,yes\nb,no\nc,yes\nd,yes\ne,no\nf,yes\ng,yes\n")

	var out bytes.Buffer
	require.NoError(t, runClasses(newTestCmd(&out), []string{src}))

	text := out.String()
	assert.Contains(t, text, `2 classes in "completion"`)
	assert.Less(t, strings.Index(text, `"yes"`), strings.Index(text, `"no"`), "most frequent first")
	assert.Contains(t, text, "classification task")
}

func TestClassesMissingColumn(t *testing.T) {
	setupTest(t)
	src := writeFile(t, "labels.csv", "prompt,completion\na,yes\n")
	classesColumn = "label"

	err := runClasses(newTestCmd(io.Discard), []string{src})
	assert.ErrorContains(t, err, `column "label" not found`)
}

// =============================================================================
// HISTORY
// =============================================================================

func TestHistory(t *testing.T) {
	setupTest(t)

	runs, err := store.Open(cfg.DatabasePath(workspace))
	require.NoError(t, err)
	id, err := runs.Record(&store.Run{
		StartedAt:    time.Now().Add(-time.Minute),
		Source:       "train.csv",
		Outputs:      []string{"train_prepared.jsonl"},
		TaskType:     string(dataset.TaskConditional),
		Rows:         12,
		Remediations: []string{"necessary_column"},
	})
	require.NoError(t, err)
	_, err = runs.Record(&store.Run{Source: "valid.csv", Status: store.StatusFailed, Error: "boom"})
	require.NoError(t, err)
	require.NoError(t, runs.Close())

	t.Run("list", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, runHistory(newTestCmd(&out), nil))
		text := out.String()
		assert.Contains(t, text, "Recent runs")
		assert.Contains(t, text, shortID(id))
		assert.Less(t, strings.Index(text, "valid.csv"), strings.Index(text, "train.csv"), "newest first")
	})

	t.Run("detail", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, runHistory(newTestCmd(&out), []string{id}))
		text := out.String()
		assert.Contains(t, text, id)
		assert.Contains(t, text, "necessary_column")
		assert.Contains(t, text, "train_prepared.jsonl")
	})

	t.Run("unknown id", func(t *testing.T) {
		err := runHistory(newTestCmd(io.Discard), []string{"missing"})
		assert.ErrorContains(t, err, "no run with id missing")
	})
}

func TestHistoryEmpty(t *testing.T) {
	setupTest(t)

	output := captureOutput(t, func() {
		require.NoError(t, runHistory(&cobra.Command{}, nil))
	})
	assert.Contains(t, output, "No runs recorded yet.")
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "abc", shortID("abc"))
	assert.Equal(t, "01234567", shortID("0123456789"))
}
