package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"ftprep/internal/logging"
	"ftprep/internal/prep"
	"ftprep/internal/remediation"
	"ftprep/internal/store"
	"ftprep/internal/ui"
	"ftprep/internal/watch"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	trainFile  string
	validFile  string
	autoAccept bool
	watchFiles bool
	noHistory  bool

	// promptInput is where interactive answers are read from.
	promptInput io.Reader = os.Stdin
)

var prepareCmd = &cobra.Command{
	Use:   "prepare-data [TRAIN] [VALID]",
	Short: "Check and fix a training and a validation file",
	Long: `Reads the training file and then the validation file, reports problems
found in each, applies the fixes you accept and writes JSONL files ready for
fine-tuning. The validation file is optional.`,
	Args: cobra.MaximumNArgs(2),
	RunE: runPrepare,
}

func init() {
	prepareCmd.Flags().StringVar(&trainFile, "train", "", "Training file")
	prepareCmd.Flags().StringVar(&validFile, "valid", "", "Validation file")
	prepareCmd.Flags().BoolVar(&autoAccept, "auto-accept", true, "Accept every recommended fix without asking")
	prepareCmd.Flags().BoolVar(&watchFiles, "watch", false, "Re-run when the input files change")
	prepareCmd.Flags().BoolVar(&noHistory, "no-history", false, "Do not record this run in the history database")
}

func runPrepare(cmd *cobra.Command, args []string) error {
	train, valid := trainFile, validFile
	if len(args) > 0 {
		train = args[0]
	}
	if len(args) > 1 {
		valid = args[1]
	}
	if train == "" {
		return fmt.Errorf("a training file is required")
	}

	c := appConfig()
	log := appLogger()

	accept := c.Prepare.AutoAccept
	if f := cmd.Flags().Lookup("auto-accept"); f != nil && f.Changed {
		accept = autoAccept
	}

	driver := prep.NewDriver(cmd.OutOrStdout(), newAcceptor(accept, c.Prepare.Prompt, cmd.ErrOrStderr()))

	if c.History.Enabled && !noHistory {
		runs, err := openHistory()
		if err != nil {
			log.Warn("history disabled", zap.Error(err))
		} else {
			defer runs.Close()
			driver.History = runs
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Debug("preparing data",
		zap.String("train", train),
		zap.String("valid", valid),
		zap.Bool("auto_accept", accept))

	_, err := driver.PrepareData(ctx, train, valid)
	if !watchFiles {
		return err
	}
	if err != nil {
		reportError(cmd.ErrOrStderr(), err)
	}
	return watchAndPrepare(ctx, cmd, driver, train, valid)
}

// newAcceptor picks how suggestions are answered.
func newAcceptor(accept bool, prompt string, out io.Writer) remediation.Acceptor {
	switch {
	case accept:
		return remediation.AutoAccept{}
	case prompt == "tui":
		return ui.NewPrompter(promptInput, out)
	default:
		return remediation.NewLinePrompter(promptInput)
	}
}

// openHistory opens the run history and drops entries past the retention.
func openHistory() (*store.Store, error) {
	c := appConfig()
	runs, err := store.Open(c.DatabasePath(workspace))
	if err != nil {
		return nil, err
	}
	if n, err := runs.Prune(c.GetHistoryRetention()); err != nil {
		appLogger().Warn("failed to prune history", zap.Error(err))
	} else if n > 0 {
		logging.Store("pruned %d old runs", n)
	}
	return runs, nil
}

func watchAndPrepare(ctx context.Context, cmd *cobra.Command, driver *prep.Driver, train, valid string) error {
	out := cmd.OutOrStdout()
	w, err := watch.New([]string{train, valid}, func(ctx context.Context, paths []string) error {
		fmt.Fprintf(out, "\n%s changed, preparing again\n", strings.Join(paths, " and "))
		_, err := driver.PrepareData(ctx, train, valid)
		if err != nil {
			reportError(cmd.ErrOrStderr(), err)
		}
		return err
	})
	if err != nil {
		return err
	}
	w.SetDebounce(appConfig().GetWatchDebounce())
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()

	fmt.Fprintln(out, "\nWatching for changes. Press Ctrl+C to stop.")
	select {
	case <-ctx.Done():
	case <-w.Done():
	}
	stats := w.GetStats()
	appLogger().Debug("watch stopped",
		zap.Int("events", stats.Events),
		zap.Int("runs", stats.Triggered),
		zap.Int("errors", stats.Errors))
	return nil
}

// reportError prints err. Validator failures are printed without the file
// prefix the driver adds.
func reportError(w io.Writer, err error) {
	var rerr *remediation.Error
	if errors.As(err, &rerr) {
		fmt.Fprintf(w, "\n%s\n", rerr.Error())
		return
	}
	fmt.Fprintln(w, err)
}
