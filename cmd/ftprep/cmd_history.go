package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"ftprep/internal/store"
	"ftprep/internal/ui"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [ID]",
	Short: "List past prepare-data runs or show one in detail",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to list")
}

func runHistory(cmd *cobra.Command, args []string) error {
	runs, err := store.Open(appConfig().DatabasePath(workspace))
	if err != nil {
		return err
	}
	defer runs.Close()

	out := cmd.OutOrStdout()
	if len(args) == 1 {
		run, err := runs.Get(args[0])
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no run with id %s", args[0])
		}
		if err != nil {
			return err
		}
		fmt.Fprint(out, ui.RenderMarkdown(runMarkdown(run), 100))
		return nil
	}

	list, err := runs.List(historyLimit)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(out, "No runs recorded yet.")
		return nil
	}

	styles := ui.DefaultStyles()
	table := ui.NewTable("Recent runs", "ID", "Started", "Source", "Rows", "Task", "Status")
	for _, r := range list {
		table.AddRow(
			shortID(r.ID),
			r.StartedAt.Local().Format(time.DateTime),
			r.Source,
			strconv.Itoa(r.Rows),
			r.TaskType,
			styles.StatusBadge(r.Status),
		)
	}
	fmt.Fprint(out, table.View(styles))
	return nil
}

func runMarkdown(r *store.Run) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Run %s\n\n", r.ID)
	fmt.Fprintf(&sb, "- **Started:** %s\n", r.StartedAt.Local().Format(time.RFC1123))
	fmt.Fprintf(&sb, "- **Source:** `%s`\n", r.Source)
	fmt.Fprintf(&sb, "- **Status:** %s\n", r.Status)
	if r.TaskType != "" {
		fmt.Fprintf(&sb, "- **Task:** %s\n", r.TaskType)
	}
	fmt.Fprintf(&sb, "- **Rows:** %d\n\n", r.Rows)
	if r.Error != "" {
		fmt.Fprintf(&sb, "## Error\n\n```\n%s\n```\n\n", r.Error)
	}
	sb.WriteString("## Remediations\n\n")
	sb.WriteString(ui.MarkdownList(r.Remediations))
	sb.WriteString("\n## Outputs\n\n")
	sb.WriteString(ui.MarkdownList(r.Outputs))
	return sb.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
