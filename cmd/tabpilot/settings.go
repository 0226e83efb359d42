package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/tabpilot/pilot"
)

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or edit the stored settings",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the current settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, _, err := openPilot(cmd.Context(), newTerminalPrompter())
			if err != nil {
				return err
			}
			defer p.Close()
			s, err := p.Settings.Load(cmd.Context())
			if err != nil {
				return err
			}
			printSettings(cmd.OutOrStdout(), s)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set key=value...",
		Short: "Change one or more settings",
		Long: "Change one or more settings. Keys: " + strings.Join(pilot.SettingNames(), ", ") + `.
Changes that need a permission ask for it first; if it is refused nothing is saved.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch, err := parseAssignments(args)
			if err != nil {
				return err
			}
			p, _, err := openPilot(cmd.Context(), newTerminalPrompter())
			if err != nil {
				return err
			}
			defer p.Close()
			s, err := p.UpdateSettings(cmd.Context(), patch)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), p.Status.Snapshot().Render())
				return err
			}
			printSettings(cmd.OutOrStdout(), s)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Restore the default settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, _, err := openPilot(cmd.Context(), newTerminalPrompter())
			if err != nil {
				return err
			}
			defer p.Close()
			s, err := p.Settings.Reset(cmd.Context())
			if err != nil {
				return err
			}
			printSettings(cmd.OutOrStdout(), s)
			return nil
		},
	})
	return cmd
}

func parseAssignments(args []string) (pilot.Patch, error) {
	var patch pilot.Patch
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok {
			return pilot.Patch{}, fmt.Errorf("expected key=value, got %q", a)
		}
		if err := patch.Set(strings.TrimSpace(k), strings.TrimSpace(v)); err != nil {
			return pilot.Patch{}, err
		}
	}
	return patch, nil
}

func printSettings(w io.Writer, s pilot.Settings) {
	s = s.View()
	fmt.Fprintln(w, sectionStyle.Render("Tasks"))
	row(w, "runOnClick", s.RunOnClick)
	row(w, "runOnTaskChange", s.RunOnTaskChange)
	row(w, "tasksAlwaysPickFirst", s.TasksAlwaysPickFirst)
	row(w, "tasksRememberLast", s.TasksRememberLast)
	row(w, "storageLastTaskUrl", s.StorageLastTaskURL)

	fmt.Fprintln(w, sectionStyle.Render("QA feedback"))
	row(w, "feedbackRememberRatings", s.FeedbackRememberRatings)
	row(w, "storageRatings", s.StorageRatings)
	row(w, "feedbackScreenshot", s.FeedbackScreenshot)
	row(w, "openSaveAsDialog", s.OpenSaveAsDialog)
	row(w, "useTimestamp", s.UseTimestamp)
	row(w, "defaultFileName", s.DefaultFileName)

	fmt.Fprintln(w, sectionStyle.Render("Element polling"))
	row(w, "epMaxTries", s.EPMaxTries)
	row(w, "epInterval", s.EPInterval)
	row(w, "epTimeout", s.EPTimeout)
}

func row(w io.Writer, key string, v any) {
	val := fmt.Sprint(v)
	switch b := v.(type) {
	case bool:
		if b {
			val = onStyle.Render("on")
		} else {
			val = offStyle.Render("off")
		}
	}
	fmt.Fprintf(w, "  %s %s\n", keyStyle.Render(key), val)
}
