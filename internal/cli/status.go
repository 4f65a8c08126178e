package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/hostconf/internal/state"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the last apply run",
	Long:  `Display the record of the most recent apply run: its plan, outcome and failures.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}

		record, err := s.engine.LastRun()
		if errors.Is(err, state.ErrNoRuns) {
			if jsonOutput {
				return outputJSON(nil)
			}
			PrintEmptyState("No apply runs recorded yet")
			return nil
		}
		if err != nil {
			return err
		}

		if jsonOutput {
			return outputJSON(record)
		}
		printRunRecord(record)
		return nil
	},
}

func printRunRecord(r *state.RunRecord) {
	PrintSection("Last Run")
	PrintLabelValue("ID", r.ID)
	PrintLabelValue("Started", r.StartedAt.Local().Format(time.RFC1123))
	PrintLabelValue("Duration", r.Duration().String())
	PrintLabelValue("Paranoia", r.Paranoia)
	PrintLabelValue("Left-only policy", r.LeftOnly)
	PrintLabelValue("Planned", fmt.Sprintf("%s, %s",
		PrintCount(r.Plan.Pkgs, "package change", "package changes"),
		PrintCount(r.Plan.Fs, "file change", "file changes")))
	if r.Plan.Notes > 0 || r.Plan.Diagnostics > 0 {
		PrintLabelValue("Reported", fmt.Sprintf("%s, %s",
			PrintCount(r.Plan.Notes, "note", "notes"),
			PrintCount(r.Plan.Diagnostics, "diagnostic", "diagnostics")))
	}
	PrintLabelValue("Outcome", fmt.Sprintf("%d succeeded, %d failed, %d skipped",
		r.Outcome.Succeeded, r.Outcome.Failed, r.Outcome.Skipped))
	if r.Aborted {
		PrintLabelValueWithColor("Aborted", "yes", warningColor)
	}

	if len(r.Failures) > 0 {
		PrintSubsection("Failures:")
		for _, f := range r.Failures {
			PrintError(fmt.Sprintf("%s: %s: %s", f.Subject, f.Instruction, f.Error))
		}
	}
}
