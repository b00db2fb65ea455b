package prep

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ftprep/internal/dataset"
	"ftprep/internal/formats"
	"ftprep/internal/remediation"
	"ftprep/internal/store"
	"ftprep/internal/validators"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// FAKES
// =============================================================================

type fakePipeline struct {
	calls      []string
	datasets   map[string]*dataset.Dataset
	rems       map[string]remediation.Remediation
	validators []validators.Validator

	gotNecessary []remediation.Remediation
	gotApply     []applyArgs
}

type applyArgs struct {
	ds   *dataset.Dataset
	path string
	rem  remediation.Remediation
	n    int
}

func newFakePipeline() *fakePipeline {
	noop := func(*dataset.Dataset) remediation.Remediation { return remediation.Remediation{} }
	return &fakePipeline{
		datasets:   map[string]*dataset.Dataset{},
		rems:       map[string]remediation.Remediation{},
		validators: []validators.Validator{noop, noop, noop},
	}
}

func (f *fakePipeline) ReadAnyFormat(path string) (*dataset.Dataset, remediation.Remediation) {
	f.calls = append(f.calls, "read:"+path)
	return f.datasets[path], f.rems[path]
}

func (f *fakePipeline) ApplyNecessaryRemediation(ds *dataset.Dataset, rem remediation.Remediation) (*dataset.Dataset, error) {
	f.calls = append(f.calls, "necessary:"+rem.Name)
	f.gotNecessary = append(f.gotNecessary, rem)
	if rem.ErrorMsg != "" {
		return ds, &remediation.Error{Validator: rem.Name, Message: rem.ErrorMsg}
	}
	return ds, nil
}

func (f *fakePipeline) GetValidators() []validators.Validator {
	f.calls = append(f.calls, "validators")
	return f.validators
}

func (f *fakePipeline) ApplyValidators(ds *dataset.Dataset, path string, rem remediation.Remediation, vs []validators.Validator, acc remediation.Acceptor, write validators.WriteFunc) (*validators.Report, error) {
	f.calls = append(f.calls, "apply:"+path)
	f.gotApply = append(f.gotApply, applyArgs{ds: ds, path: path, rem: rem, n: len(vs)})
	written, err := write(ds, path, false, acc)
	return &validators.Report{Path: path, Rows: ds.Len(), Outputs: written.Files, Aborted: written.Aborted}, err
}

type fakeRecorder struct {
	runs []*store.Run
}

func (r *fakeRecorder) Record(run *store.Run) (string, error) {
	r.runs = append(r.runs, run)
	return "id", nil
}

func noWrite(*dataset.Dataset, string, bool, remediation.Acceptor) (validators.Written, error) {
	return validators.Written{}, nil
}

// =============================================================================
// ORCHESTRATION
// =============================================================================

func TestPrepareDataCallOrder(t *testing.T) {
	p := newFakePipeline()
	p.datasets["train.csv"] = dataset.FromRecords([2]string{"a", " b"})
	p.datasets["valid.csv"] = dataset.FromRecords([2]string{"c", " d"})
	p.rems["train.csv"] = remediation.Remediation{Name: "read_train"}
	p.rems["valid.csv"] = remediation.Remediation{Name: "read_valid"}

	d := &Driver{Pipeline: p, Acceptor: remediation.AutoAccept{}, Write: noWrite}
	reports, err := d.PrepareData(context.Background(), "train.csv", "valid.csv")
	require.NoError(t, err)
	require.Len(t, reports, 2)

	want := []string{
		"read:train.csv", "necessary:read_train", "validators", "apply:train.csv",
		"read:valid.csv", "necessary:read_valid", "validators", "apply:valid.csv",
	}
	if diff := cmp.Diff(want, p.calls); diff != "" {
		t.Fatalf("call order mismatch (-want +got):\n%s", diff)
	}
}

func TestPrepareDataPassesThroughArguments(t *testing.T) {
	p := newFakePipeline()
	train := dataset.FromRecords([2]string{"a", " b"})
	rem := remediation.Remediation{Name: "read_any_format", NecessaryMsg: "convert"}
	p.datasets["train.csv"] = train
	p.rems["train.csv"] = rem

	d := &Driver{Pipeline: p, Acceptor: remediation.AutoAccept{}, Write: noWrite}
	_, err := d.PrepareData(context.Background(), "train.csv", "")
	require.NoError(t, err)

	require.Len(t, p.gotNecessary, 1)
	assert.Equal(t, "convert", p.gotNecessary[0].NecessaryMsg)

	require.Len(t, p.gotApply, 1)
	got := p.gotApply[0]
	assert.Same(t, train, got.ds)
	assert.Equal(t, "train.csv", got.path)
	assert.Equal(t, "read_any_format", got.rem.Name)
	assert.Equal(t, len(p.validators), got.n)
}

func TestPrepareDataStopsOnTrainingFailure(t *testing.T) {
	p := newFakePipeline()
	p.rems["missing.csv"] = remediation.Remediation{Name: "read_any_format", ErrorMsg: "File missing.csv does not exist."}
	rec := &fakeRecorder{}

	d := &Driver{Pipeline: p, Acceptor: remediation.AutoAccept{}, Write: noWrite, History: rec}
	reports, err := d.PrepareData(context.Background(), "missing.csv", "valid.csv")
	require.Error(t, err)
	assert.Empty(t, reports)

	var rerr *remediation.Error
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, "read_any_format", rerr.Validator)
	assert.Contains(t, err.Error(), "missing.csv")

	assert.Equal(t, []string{"read:missing.csv", "necessary:read_any_format"}, p.calls)
	require.Len(t, rec.runs, 1)
	assert.Equal(t, store.StatusFailed, rec.runs[0].Status)
}

func TestPrepareDataCancelled(t *testing.T) {
	p := newFakePipeline()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := &Driver{Pipeline: p, Acceptor: remediation.AutoAccept{}, Write: noWrite}
	_, err := d.PrepareData(ctx, "train.csv", "valid.csv")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, p.calls)
}

func TestPrepareDataRecordsHistory(t *testing.T) {
	p := newFakePipeline()
	p.datasets["train.csv"] = dataset.FromRecords([2]string{"a", " b"}, [2]string{"c", " d"})
	rec := &fakeRecorder{}
	write := func(_ *dataset.Dataset, path string, _ bool, _ remediation.Acceptor) (validators.Written, error) {
		return validators.Written{Files: []string{path + ".out"}}, nil
	}

	d := &Driver{Pipeline: p, Acceptor: remediation.AutoAccept{}, Write: write, History: rec}
	_, err := d.PrepareData(context.Background(), "train.csv", "")
	require.NoError(t, err)

	require.Len(t, rec.runs, 1)
	run := rec.runs[0]
	assert.Equal(t, "train.csv", run.Source)
	assert.Equal(t, []string{"train.csv.out"}, run.Outputs)
	assert.Equal(t, 2, run.Rows)
	assert.Equal(t, store.StatusOK, run.Status)
	assert.False(t, run.StartedAt.IsZero())
}

// =============================================================================
// END TO END
// =============================================================================

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const cleanJSONL = `{"prompt":"item 1 ->","completion":" one\n"}
{"prompt":"item 2 ->","completion":" two\n"}
{"prompt":"item 3 ->","completion":" three\n"}
`

func TestPrepareDataWellFormedFileIsLeftAlone(t *testing.T) {
	dir := t.TempDir()
	train := writeFile(t, dir, "train.jsonl", cleanJSONL)
	var out bytes.Buffer

	reports, err := NewDriver(&out, remediation.AutoAccept{}).PrepareData(context.Background(), train, "")
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Empty(t, reports[0].Outputs)
	assert.Contains(t, out.String(), "No remediations found.")
	assert.Contains(t, out.String(), "You can use your file for fine-tuning")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no prepared file should be written")

	data, err := os.ReadFile(train)
	require.NoError(t, err)
	assert.Equal(t, cleanJSONL, string(data))
}

func TestPrepareDataAppliesMandatoryRemediation(t *testing.T) {
	dir := t.TempDir()
	train := writeFile(t, dir, "train.jsonl", strings.ReplaceAll(cleanJSONL, `"prompt"`, `"Prompt"`))
	valid := writeFile(t, dir, "valid.jsonl", cleanJSONL)
	var out bytes.Buffer

	reports, err := NewDriver(&out, remediation.AutoAccept{}).PrepareData(context.Background(), train, valid)
	require.NoError(t, err)
	require.Len(t, reports, 2)

	want := filepath.Join(dir, "train_prepared.jsonl")
	assert.Equal(t, []string{want}, reports[0].Outputs)
	assert.Contains(t, reports[0].Applied, "necessary_column")
	assert.Contains(t, out.String(), "- [Necessary] Lower case column name to `prompt`")

	ds, rem := formats.ReadAnyFormat(want)
	require.Empty(t, rem.ErrorMsg)
	assert.Equal(t, dataset.Fields, ds.Columns())
	assert.Equal(t, []string{"item 1 ->", "item 2 ->", "item 3 ->"}, ds.Column(dataset.ColumnPrompt))

	assert.Empty(t, reports[1].Outputs)
}

func TestPrepareDataDeclinedWriteIsRecordedAsAborted(t *testing.T) {
	dir := t.TempDir()
	train := writeFile(t, dir, "train.jsonl", strings.ReplaceAll(cleanJSONL, `"prompt"`, `"Prompt"`))
	var out bytes.Buffer
	rec := &fakeRecorder{}

	d := NewDriver(&out, remediation.AutoDecline{})
	d.History = rec
	reports, err := d.PrepareData(context.Background(), train, "")
	require.NoError(t, err)
	require.Len(t, reports, 1)

	assert.True(t, reports[0].Aborted)
	assert.Empty(t, reports[0].Outputs)
	assert.Contains(t, out.String(), "Aborting... did not write the file")

	require.Len(t, rec.runs, 1)
	assert.Equal(t, store.StatusAborted, rec.runs[0].Status)
	assert.Empty(t, rec.runs[0].Error)

	_, statErr := os.Stat(filepath.Join(dir, "train_prepared.jsonl"))
	assert.True(t, os.IsNotExist(statErr))
}
