package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/tabpilot/audit"
	"github.com/hazyhaar/tabpilot/pilot"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Save the task id, then capture the QA feedback page",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return postAndShow(cmd, pilot.RunMessage{})
		},
	}
}

func newSaveTaskIDCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "save-task-id",
		Short: "Extract the task id from the best task tab and store it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return postAndShow(cmd, pilot.SaveTaskIDMessage{})
		},
	}
}

func newCaptureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "capture",
		Short: "Capture the QA feedback page and store the screenshot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return postAndShow(cmd, pilot.CaptureQAFeedbackMessage{})
		},
	}
}

func newOpenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open",
		Short: "Show the session record, running first when runOnClick is set and a task page is active",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			p, _, err := openPilot(ctx, newTerminalPrompter())
			if err != nil {
				return err
			}
			defer p.Close()

			runID, err := p.OnOpen(ctx)
			if err != nil {
				return err
			}
			if runID != "" {
				return showRun(cmd, p, pilot.RunMessage{}, runID)
			}
			snap, err := p.Session(ctx)
			if err != nil {
				return err
			}
			printSession(cmd.OutOrStdout(), snap)
			return nil
		},
	}
}

// postAndShow posts msg to the dispatcher, waits for the routine, and prints
// its recorded outcome and the session record it left behind.
func postAndShow(cmd *cobra.Command, msg pilot.Message) error {
	ctx := cmd.Context()
	p, _, err := openPilot(ctx, newTerminalPrompter())
	if err != nil {
		return err
	}
	defer p.Close()

	return showRun(cmd, p, msg, p.Dispatcher.Post(ctx, msg))
}

func showRun(cmd *cobra.Command, p *pilot.Pilot, msg pilot.Message, runID string) error {
	ctx := cmd.Context()
	fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render(fmt.Sprintf("%s posted (%s)", msg.Action(), runID)))
	if err := waitDispatcher(ctx, p); err != nil {
		return err
	}

	run, err := p.Run(ctx, runID)
	if err != nil {
		return fmt.Errorf("read run %s: %w", runID, err)
	}
	printRun(cmd.OutOrStdout(), run)

	snap, err := p.Session(ctx)
	if err != nil {
		return err
	}
	printSession(cmd.OutOrStdout(), snap)
	if run.Status == audit.StatusError {
		return fmt.Errorf("%s failed", msg.Action())
	}
	return nil
}

func waitDispatcher(ctx context.Context, p *pilot.Pilot) error {
	done := make(chan struct{})
	go func() {
		p.Dispatcher.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		p.Dispatcher.Close()
		return ctx.Err()
	}
}
