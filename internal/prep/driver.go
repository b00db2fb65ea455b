// Package prep drives the preparation of a training and a validation file.
//
// The driver itself owns no data logic. For each file it reads the data,
// applies the mandatory part of the reader's remediation, fetches the
// validator list and hands everything to ApplyValidators together with the
// output writer. The files are processed one after the other and the first
// failure ends the run.
package prep

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"ftprep/internal/dataset"
	"ftprep/internal/formats"
	"ftprep/internal/logging"
	"ftprep/internal/output"
	"ftprep/internal/remediation"
	"ftprep/internal/store"
	"ftprep/internal/validators"
)

// Pipeline is the set of collaborators the driver calls, in order, for each
// file.
type Pipeline interface {
	ReadAnyFormat(path string) (*dataset.Dataset, remediation.Remediation)
	ApplyNecessaryRemediation(ds *dataset.Dataset, rem remediation.Remediation) (*dataset.Dataset, error)
	GetValidators() []validators.Validator
	ApplyValidators(ds *dataset.Dataset, path string, rem remediation.Remediation, vs []validators.Validator, acc remediation.Acceptor, write validators.WriteFunc) (*validators.Report, error)
}

// Recorder stores one history entry per processed file.
type Recorder interface {
	Record(run *store.Run) (string, error)
}

// Driver runs the preparation steps over the input files.
type Driver struct {
	Pipeline Pipeline
	Acceptor remediation.Acceptor
	Write    validators.WriteFunc
	History  Recorder // optional
}

// NewDriver wires the default pipeline printing to out. Suggestions are
// accepted through acc.
func NewDriver(out io.Writer, acc remediation.Acceptor) *Driver {
	if out == nil {
		out = io.Discard
	}
	return &Driver{
		Pipeline: Library{Out: out},
		Acceptor: acc,
		Write:    output.NewWriter(out).WriteOutFile,
	}
}

// PrepareData processes the training file and then the validation file. An
// empty validation path is skipped. Processing stops at the first error; the
// validation file is never read when the training file fails.
func (d *Driver) PrepareData(ctx context.Context, trainPath, validPath string) ([]*validators.Report, error) {
	var reports []*validators.Report
	for _, path := range []string{trainPath, validPath} {
		if path == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		report, err := d.PrepareFile(path)
		if report != nil {
			reports = append(reports, report)
		}
		if err != nil {
			return reports, err
		}
	}
	return reports, nil
}

// PrepareFile runs the four preparation steps on one file.
func (d *Driver) PrepareFile(path string) (*validators.Report, error) {
	started := time.Now()
	logging.Prep("preparing %s", path)

	ds, rem := d.Pipeline.ReadAnyFormat(path)
	logging.PrepDebug("%s: read %d rows", path, ds.Len())

	ds, err := d.Pipeline.ApplyNecessaryRemediation(ds, rem)
	if err != nil {
		d.record(&store.Run{StartedAt: started, Source: path}, nil, err)
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	vs := d.Pipeline.GetValidators()
	report, err := d.Pipeline.ApplyValidators(ds, path, rem, vs, d.Acceptor, d.Write)
	d.record(&store.Run{StartedAt: started, Source: path}, report, err)
	if err != nil {
		return report, fmt.Errorf("%s: %w", path, err)
	}
	logging.Prep("%s: done in %s", path, time.Since(started).Round(time.Millisecond))
	return report, nil
}

func (d *Driver) record(run *store.Run, report *validators.Report, err error) {
	if d.History == nil {
		return
	}
	if report != nil {
		run.Outputs = report.Outputs
		run.TaskType = string(report.TaskType)
		run.Rows = report.Rows
		run.Remediations = report.Applied
	}
	switch {
	case errors.Is(err, remediation.ErrAborted):
		run.Status = store.StatusAborted
		run.Error = err.Error()
	case err != nil:
		run.Status = store.StatusFailed
		run.Error = err.Error()
	case report != nil && report.Aborted:
		run.Status = store.StatusAborted
	default:
		run.Status = store.StatusOK
	}
	if _, rerr := d.History.Record(run); rerr != nil {
		logging.Get(logging.CategoryPrep).Warn("failed to record history for %s: %v", run.Source, rerr)
	}
}

// =============================================================================
// DEFAULT PIPELINE
// =============================================================================

// Library is the Pipeline backed by this module's packages.
type Library struct {
	Out io.Writer
}

func (l Library) ReadAnyFormat(path string) (*dataset.Dataset, remediation.Remediation) {
	return formats.ReadAnyFormat(path)
}

func (l Library) ApplyNecessaryRemediation(ds *dataset.Dataset, rem remediation.Remediation) (*dataset.Dataset, error) {
	return remediation.ApplyNecessaryRemediation(l.Out, ds, rem)
}

func (l Library) GetValidators() []validators.Validator {
	return validators.GetValidators()
}

func (l Library) ApplyValidators(ds *dataset.Dataset, path string, rem remediation.Remediation, vs []validators.Validator, acc remediation.Acceptor, write validators.WriteFunc) (*validators.Report, error) {
	return validators.ApplyValidators(l.Out, ds, path, rem, vs, acc, write)
}
