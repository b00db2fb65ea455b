package main

import (
	"fmt"
	"strconv"

	"ftprep/internal/dataset"
	"ftprep/internal/ui"

	"github.com/spf13/cobra"
)

var classesColumn string

var classesCmd = &cobra.Command{
	Use:   "classes FILE",
	Short: "List the distinct values of a column with their counts",
	Args:  cobra.ExactArgs(1),
	RunE:  runClasses,
}

func init() {
	classesCmd.Flags().StringVarP(&classesColumn, "column", "c", dataset.ColumnCompletion, "Column to count")
}

func runClasses(cmd *cobra.Command, args []string) error {
	ds, err := readTable(args[0])
	if err != nil {
		return err
	}
	if !ds.HasColumn(classesColumn) {
		return fmt.Errorf("column %q not found in %s (columns: %v)", classesColumn, args[0], ds.Columns())
	}

	counts := dataset.ValueCounts(ds.Column(classesColumn))
	table := ui.NewTable(fmt.Sprintf("%d classes in %q", len(counts), classesColumn), "Class", "Count")
	for _, vc := range counts {
		table.AddRow(strconv.Quote(vc.Value), strconv.Itoa(vc.Count))
	}

	out := cmd.OutOrStdout()
	fmt.Fprint(out, table.View(ui.DefaultStyles()))
	if task := dataset.InferTaskType(ds); task == dataset.TaskClassify {
		fmt.Fprintln(out, "The data looks like a classification task.")
	}
	return nil
}
