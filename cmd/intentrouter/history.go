package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/intentrouter/internal/state"
	"github.com/ShayCichocki/intentrouter/pkg/models"
)

var (
	historyLimit     int
	historyOlderThan time.Duration
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recently routed requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		db, err := a.stateDB()
		if err != nil {
			return err
		}
		runs, err := db.ListRuns(historyLimit)
		if err != nil {
			return fmt.Errorf("list runs: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(runs) == 0 {
			fmt.Fprintln(out, "No runs recorded yet. Run 'intentrouter route <text>' to start.")
			return nil
		}
		for _, r := range runs {
			fmt.Fprintf(out, "%s  %s  %-8s %-14s %d/%d ok  %s\n",
				r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04"), r.Execution, r.TaskType,
				r.Succeeded, r.Total, truncateText(r.Request, 50))
		}
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one run and its subtasks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		db, err := a.stateDB()
		if err != nil {
			return err
		}
		run, err := db.GetRun(args[0])
		if err != nil {
			return fmt.Errorf("get run: %w", err)
		}
		if run == nil {
			return fmt.Errorf("run %s not found", args[0])
		}
		renderRun(cmd.OutOrStdout(), run)
		return nil
	},
}

var historyPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete runs older than the retention period",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		db, err := a.stateDB()
		if err != nil {
			return err
		}
		age := a.cfg.History.Retention
		if historyOlderThan > 0 {
			age = historyOlderThan
		}
		n, err := db.PurgeOldRuns(age)
		if err != nil {
			return fmt.Errorf("purge runs: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Purged %d runs older than %s.\n", n, age)
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to list")
	historyPurgeCmd.Flags().DurationVar(&historyOlderThan, "older-than", 0, "Age cutoff (default: history.retention)")
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyPurgeCmd)
}

func renderRun(w io.Writer, run *state.RunRecord) {
	fmt.Fprintln(w, titleStyle.Render("Run "+run.ID))
	field(w, "request", run.Request)
	field(w, "task type", fmt.Sprintf("%s (%s, %s)", run.TaskType, run.Mode, run.Source))
	field(w, "execution", run.Execution)
	field(w, "created", run.CreatedAt.Local().Format(time.RFC3339))
	field(w, "outcome", fmt.Sprintf("%d succeeded, %d failed, %d skipped of %d in %.2fs",
		run.Succeeded, run.Failed, run.Skipped, run.Total, run.DurationSeconds))
	if run.Cancelled {
		field(w, "cancelled", "yes")
	}
	for _, st := range run.Subtasks {
		status := models.SubtaskStatus(st.Status)
		fmt.Fprintf(w, "  %s %-8s %6.2fs  %s", statusColor(status).Sprint(statusSymbol(status)), st.SubtaskID, st.DurationSeconds, st.Description)
		if st.Error != "" {
			fmt.Fprintf(w, "  (%s)", st.Error)
		}
		fmt.Fprintln(w)
	}
}
