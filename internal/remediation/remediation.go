// Package remediation defines the fixes that validators and readers suggest
// for a dataset, and how those fixes get applied.
//
// A Remediation carries up to three kinds of content:
//   - an immediate message, printed as soon as the issue is found
//   - a necessary fix, applied without asking
//   - an optional fix, applied only when the Acceptor agrees
//
// A non-empty ErrorMsg makes the remediation fatal.
package remediation

import (
	"fmt"
	"io"

	"ftprep/internal/dataset"
	"ftprep/internal/logging"
)

// Fn transforms a dataset. Implementations must not mutate their argument.
type Fn func(*dataset.Dataset) *dataset.Dataset

// Remediation is one finding plus its fixes.
type Remediation struct {
	Name         string
	ImmediateMsg string
	NecessaryMsg string
	NecessaryFn  Fn
	OptionalMsg  string
	OptionalFn   Fn
	ErrorMsg     string
}

// IsZero reports whether the remediation carries no content at all.
func (r Remediation) IsZero() bool {
	return r.ImmediateMsg == "" && r.NecessaryMsg == "" && r.NecessaryFn == nil &&
		r.OptionalMsg == "" && r.OptionalFn == nil && r.ErrorMsg == ""
}

// HasAction reports whether the remediation would change or announce a change
// to the dataset.
func (r Remediation) HasAction() bool {
	return r.OptionalMsg != "" || r.NecessaryMsg != ""
}

// ApplyNecessaryRemediation prints the immediate message and applies the
// necessary fix. A remediation with an ErrorMsg is returned as *Error and the
// dataset is left untouched.
func ApplyNecessaryRemediation(w io.Writer, ds *dataset.Dataset, r Remediation) (*dataset.Dataset, error) {
	if r.ErrorMsg != "" {
		logging.RemediationDebug("%s: fatal: %s", r.Name, r.ErrorMsg)
		return ds, &Error{Validator: r.Name, Message: r.ErrorMsg}
	}
	if r.ImmediateMsg != "" {
		fmt.Fprint(w, r.ImmediateMsg)
	}
	if r.NecessaryFn != nil {
		before := ds.Len()
		ds = r.NecessaryFn(ds)
		logging.RemediationDebug("%s: necessary fix applied (rows %d -> %d)", r.Name, before, ds.Len())
	}
	return ds, nil
}

// ApplyOptionalRemediation offers the optional fix through acc and announces
// the necessary one. It reports whether the optional fix was applied.
func ApplyOptionalRemediation(w io.Writer, ds *dataset.Dataset, r Remediation, acc Acceptor) (*dataset.Dataset, bool, error) {
	applied := false
	if r.OptionalMsg != "" {
		ok, err := acc.Accept(w, fmt.Sprintf("- [Recommended] %s [Y/n]: ", r.OptionalMsg))
		if err != nil {
			return ds, false, err
		}
		if ok {
			if r.OptionalFn == nil {
				return ds, false, fmt.Errorf("remediation %s: optional message without optional fix", r.Name)
			}
			ds = r.OptionalFn(ds)
			applied = true
			logging.Remediation("%s: optional fix accepted", r.Name)
		} else {
			logging.Remediation("%s: optional fix declined", r.Name)
		}
	}
	if r.NecessaryMsg != "" {
		fmt.Fprintf(w, "- [Necessary] %s\n", r.NecessaryMsg)
	}
	return ds, applied, nil
}
