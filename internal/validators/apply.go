package validators

import (
	"fmt"
	"io"

	"ftprep/internal/dataset"
	"ftprep/internal/logging"
	"ftprep/internal/remediation"
)

// Written is what a WriteFunc did with the dataset.
type Written struct {
	Files   []string // may be empty
	Aborted bool     // the user declined writing
}

// WriteFunc persists the validated dataset. anyRemediations reports whether
// any necessary or optional fix changed the data.
type WriteFunc func(ds *dataset.Dataset, path string, anyRemediations bool, acc remediation.Acceptor) (Written, error)

// Report summarises one ApplyValidators run.
type Report struct {
	Path     string
	Rows     int
	TaskType dataset.TaskType
	Findings []string // names of remediations that reported something
	Applied  []string // names of remediations whose fix changed the data
	Outputs  []string
	Aborted  bool // writing was declined
}

// ApplyValidators runs every validator against ds, applying necessary fixes as
// it goes, then offers the optional fixes through acc and finally calls write.
// readRem is the remediation produced when the file was read; its necessary
// message is announced with the others. A fatal finding stops the run before
// anything is written.
func ApplyValidators(
	w io.Writer,
	ds *dataset.Dataset,
	path string,
	readRem remediation.Remediation,
	validators []Validator,
	acc remediation.Acceptor,
	write WriteFunc,
) (*Report, error) {
	report := &Report{Path: path}
	found := []remediation.Remediation{readRem}

	for _, v := range validators {
		rem := v(ds)
		if rem.IsZero() {
			continue
		}
		logging.ValidatorDebug("%s: %s", path, rem.Name)
		found = append(found, rem)
		var err error
		ds, err = remediation.ApplyNecessaryRemediation(w, ds, rem)
		if err != nil {
			return report, err
		}
	}

	anyAction := false
	anyNecessary := false
	for _, rem := range found {
		if rem.HasAction() {
			anyAction = true
		}
		if rem.NecessaryMsg != "" {
			anyNecessary = true
			report.Applied = append(report.Applied, rem.Name)
		}
		if !rem.IsZero() {
			report.Findings = append(report.Findings, rem.Name)
		}
	}

	anyOptional := false
	if anyAction {
		fmt.Fprint(w, "\n\nBased on the analysis we will perform the following actions:\n")
		for _, rem := range found {
			var (
				applied bool
				err     error
			)
			ds, applied, err = remediation.ApplyOptionalRemediation(w, ds, rem, acc)
			if err != nil {
				return report, err
			}
			if applied {
				anyOptional = true
				report.Applied = append(report.Applied, rem.Name)
			}
		}
	} else {
		fmt.Fprint(w, "\n\nNo remediations found.\n")
	}

	report.Rows = ds.Len()
	report.TaskType = dataset.InferTaskType(ds)
	logging.Validator("%s: %d findings, %d fixes applied, %d rows remain", path, len(report.Findings), len(report.Applied), report.Rows)

	written, err := write(ds, path, anyOptional || anyNecessary, acc)
	report.Outputs = written.Files
	report.Aborted = written.Aborted
	if err != nil {
		return report, err
	}
	return report, nil
}
