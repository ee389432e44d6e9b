package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/kingrea/agency/internal/history"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List recent pipeline runs",
	Long: `Without arguments, lists the most recent runs recorded in
.agency/state/history.db. With a run id, lists the tasks of that run.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to show")
}

var headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))

func runHistory(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer s.Close()

	ledger, err := history.Open(s.cfg.HistoryPath())
	if err != nil {
		return err
	}
	defer ledger.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	if len(args) == 1 {
		tasks, err := ledger.Tasks(ctx, args[0])
		if err != nil {
			return err
		}
		if len(tasks) == 0 {
			fmt.Fprintf(out, "No tasks recorded for run %s.\n", args[0])
			return nil
		}
		t := table.New().
			Border(lipgloss.NormalBorder()).
			StyleFunc(headerRow).
			Headers("TASK", "AGENT", "STATUS", "ATTEMPTS", "DURATION", "FILE / ERROR")
		for _, rec := range tasks {
			detail := rec.File
			if rec.Error != "" {
				detail = rec.Error
			}
			t.Row(rec.TaskID, rec.Agent, rec.Status, fmt.Sprint(rec.Attempts), rec.Duration.Round(time.Second).String(), detail)
		}
		fmt.Fprintln(out, t.String())
		return nil
	}

	runs, err := ledger.Runs(ctx, historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded yet.")
		return nil
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(headerRow).
		Headers("RUN", "STARTED", "PHASE", "STATUS", "TASKS", "IDEA")
	for _, r := range runs {
		t.Row(r.ID, r.StartedAt.Local().Format("2006-01-02 15:04"), r.Phase, r.Status, fmt.Sprint(r.TaskCount), r.Idea)
	}
	fmt.Fprintln(out, t.String())
	return nil
}

func headerRow(row, col int) lipgloss.Style {
	if row == table.HeaderRow {
		return headerStyle
	}
	return lipgloss.NewStyle()
}
