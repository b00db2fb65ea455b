package main

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"ftprep/internal/dataset"
	"ftprep/internal/prep"
	"ftprep/internal/remediation"
	"ftprep/internal/store"
	"ftprep/internal/ui"
	"ftprep/internal/validators"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var checkCmd = &cobra.Command{
	Use:   "check FILE...",
	Short: "Analyse files without changing or writing anything",
	Long: `Runs every validator over each file and prints what prepare-data would
report. Suggested fixes are declined and no output file is written. Files are
analysed concurrently (check.max_concurrency).`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

// checkResult is the outcome of checking one file.
type checkResult struct {
	path       string
	transcript string
	report     *validators.Report
	err        error
}

func runCheck(cmd *cobra.Command, args []string) error {
	limit := appConfig().Check.MaxConcurrency
	results := make([]checkResult, len(args))

	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(limit)
	for i, path := range args {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = checkFile(path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	styles := ui.DefaultStyles()
	table := ui.NewTable("Check summary", "File", "Rows", "Task", "Findings", "Status", "Failed check")
	failed := 0
	for _, r := range results {
		fmt.Fprintf(out, "%s\n", styles.Title.Render(r.path))
		fmt.Fprint(out, r.transcript)
		fmt.Fprintln(out)

		status := store.StatusOK
		if r.err != nil {
			status = store.StatusFailed
			failed++
			fmt.Fprintf(out, "%s\n\n", styles.Error.Render(r.err.Error()))
		}
		rows, task, findings := "-", "-", "-"
		if r.report != nil {
			rows = strconv.Itoa(r.report.Rows)
			if r.report.TaskType != "" {
				task = string(r.report.TaskType)
			}
			findings = strconv.Itoa(len(r.report.Findings))
		}
		table.AddRow(r.path, rows, task, findings, styles.StatusBadge(status), failedCheck(r.err))
	}
	fmt.Fprint(out, table.View(styles))

	appLogger().Debug("check finished",
		zap.Int("files", len(args)),
		zap.Int("failed", failed),
		zap.Int("concurrency", limit))

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed validation", failed, len(args))
	}
	return nil
}

// checkFile runs the preparation steps on path with every suggestion declined
// and writing disabled. The transcript is buffered so concurrent checks do not
// interleave.
func checkFile(path string) checkResult {
	var buf bytes.Buffer
	driver := &prep.Driver{
		Pipeline: prep.Library{Out: &buf},
		Acceptor: remediation.AutoDecline{},
		Write:    skipWrite,
	}
	report, err := driver.PrepareFile(path)
	return checkResult{
		path:       path,
		transcript: strings.TrimLeft(buf.String(), "\n"),
		report:     report,
		err:        err,
	}
}

// failedCheck names the validator behind err, or "-".
func failedCheck(err error) string {
	if v := remediation.ValidatorOf(err); v != "" {
		return v
	}
	return "-"
}

func skipWrite(*dataset.Dataset, string, bool, remediation.Acceptor) (validators.Written, error) {
	return validators.Written{}, nil
}

var _ validators.WriteFunc = skipWrite
