package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/tabpilot/audit"
	"github.com/hazyhaar/tabpilot/pilot"
)

func newRunsCmd() *cobra.Command {
	var f audit.Filter
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded action runs, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, _, err := openPilot(cmd.Context(), newTerminalPrompter())
			if err != nil {
				return err
			}
			defer p.Close()

			runs, err := p.Runs(cmd.Context(), f)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, dimStyle.Render("no runs recorded"))
				return nil
			}
			fmt.Fprintln(out, sectionStyle.Render("Runs"))
			for _, r := range runs {
				printRun(out, r)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&f.Action, "action", "", "only runs of this action (RUN, SAVE_TASK_ID, CAPTURE_QA_FEEDBACK)")
	cmd.Flags().StringVar(&f.Status, "status", "", "only runs with this status (success, error)")
	cmd.Flags().IntVar(&f.Limit, "limit", 20, "maximum runs to list")
	return cmd
}

func printRun(w io.Writer, r pilot.RunEntry) {
	status := onStyle.Render(r.Status)
	if r.Status == audit.StatusError {
		status = errorStyle.Render(r.Status)
	}
	fmt.Fprintf(w, "  %s %s %s %s\n",
		keyStyle.Render(r.Action), status,
		dimStyle.Render(fmt.Sprintf("%s %dms %s", r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.DurationMs, r.RunID)),
		r.Error)
}
