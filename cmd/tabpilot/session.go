package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/tabpilot/pilot"
)

func newSessionCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Print the session record and recent downloads",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, _, err := openPilot(cmd.Context(), newTerminalPrompter())
			if err != nil {
				return err
			}
			defer p.Close()

			snap, err := p.Session(cmd.Context())
			if err != nil {
				return err
			}
			printSession(cmd.OutOrStdout(), snap)

			dls, err := p.Downloads(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(dls) > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), sectionStyle.Render("Downloads"))
				for _, d := range dls {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s %s %s\n",
						keyStyle.Render(fmt.Sprintf("#%d", d.ID)), d.Path,
						dimStyle.Render(d.CreatedAt.Format("2006-01-02 15:04:05")))
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "downloads", 5, "number of recent downloads to list")
	return cmd
}

func printSession(w io.Writer, s pilot.SessionSnapshot) {
	fmt.Fprintln(w, sectionStyle.Render("Session"))
	if s.FoundTaskID {
		row(w, "task id", s.TaskID)
	} else {
		row(w, "task id", dimStyle.Render("none"))
	}
	if s.CapturedFeedback && len(s.LastQAFeedback) == 2 {
		row(w, "last capture", fmt.Sprintf("%s (%d bytes)", s.LastQAFeedback[1], len(s.LastQAFeedback[0])))
	} else {
		row(w, "last capture", dimStyle.Render("none"))
	}
	if s.LastTaskURL != "" {
		row(w, "last task url", s.LastTaskURL)
	}
	if r := s.LastRatings; r != nil {
		row(w, "last ratings", fmt.Sprintf("avg %.2f  exceptional %g  meets %g  some issues %g  major %g",
			r.Average, r.Exceptional, r.MeetsExpectations, r.SomeIssues, r.MajorIssues))
	}
}
