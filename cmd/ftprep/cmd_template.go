package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"ftprep/internal/dataset"
	"ftprep/internal/formats"
	"ftprep/internal/remediation"
	"ftprep/internal/template"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	templateText   string
	templateOutCol string
	templateStop   string
	templateOut    string
)

var templateCmd = &cobra.Command{
	Use:   "template FILE",
	Short: "Build prompt/completion pairs from a table and a prompt template",
	Long: `Renders a prompt for every row of FILE from a template with {{column}}
placeholders and takes the completion from --output-column, followed by the
stop sequence. The result is written as JSONL ready for prepare-data.

Example:
  ftprep template tickets.csv --template "Ticket: {{body}}\nCategory:" --output-column label --stop "\n"`,
	Args: cobra.ExactArgs(1),
	RunE: runTemplate,
}

func init() {
	templateCmd.Flags().StringVarP(&templateText, "template", "t", "", "Prompt template with {{column}} placeholders")
	templateCmd.Flags().StringVar(&templateOutCol, "output-column", "", "Column holding the completion")
	templateCmd.Flags().StringVar(&templateStop, "stop", "", "Stop sequence appended to every completion")
	templateCmd.Flags().StringVarP(&templateOut, "out", "o", "", "Output file (default: <name>_templated.jsonl)")
	_ = templateCmd.MarkFlagRequired("template")
	_ = templateCmd.MarkFlagRequired("output-column")
}

func runTemplate(cmd *cobra.Command, args []string) error {
	path := args[0]
	ds, err := readTable(path)
	if err != nil {
		return err
	}

	tmpl := template.Template{
		Text:         unescapeFlag(templateText),
		OutputColumn: templateOutCol,
		StopSequence: unescapeFlag(templateStop),
	}
	result, err := tmpl.Apply(ds)
	if err != nil {
		return err
	}

	dest := templateOut
	if dest == "" {
		dest = strings.TrimSuffix(path, filepath.Ext(path)) + "_templated.jsonl"
	}
	if err := formats.WriteJSONL(result, dest, dataset.Fields...); err != nil {
		return err
	}

	classes, _ := template.Classes(ds, templateOutCol)
	appLogger().Debug("template applied",
		zap.String("source", path),
		zap.String("dest", dest),
		zap.Int("rows", result.Len()),
		zap.Int("classes", len(classes)))
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d examples to `%s`\nNext: ftprep prepare-data %q\n", result.Len(), dest, dest)
	return nil
}

// readTable reads path and applies the reader's mandatory fixes silently.
func readTable(path string) (*dataset.Dataset, error) {
	ds, rem := formats.ReadAnyFormat(path)
	return remediation.ApplyNecessaryRemediation(io.Discard, ds, rem)
}

// unescapeFlag turns the \n and \t escapes typed on a shell into characters.
func unescapeFlag(s string) string {
	return strings.NewReplacer(`\n`, "\n", `\t`, "\t").Replace(s)
}
