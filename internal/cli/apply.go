package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/hostconf/internal/config"
	"github.com/danieljhkim/hostconf/internal/confirm"
	"github.com/danieljhkim/hostconf/internal/engine"
)

var (
	applyParanoia     string
	applyPrune        bool
	applyRemoveUnused bool
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Bring the host in line with the desired state",
	Long: `Compute a plan and apply it: package transactions first, then file changes.

--paranoia selects how changes are applied:
  interactive  ask before each package manager transaction and each path
  silent       apply everything without asking
  dry-run      log what would be done and change nothing

A failed change does not stop the others. The run is recorded and can be
reviewed with 'hostconf status'.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}

		paranoia := s.cfg.Apply.Paranoia
		if applyParanoia != "" {
			paranoia = config.Paranoia(applyParanoia)
		}
		removeUnused := s.cfg.Apply.RemoveUnused || applyRemoveUnused

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		planned, err := s.plan(ctx, applyPrune)
		if err != nil {
			return err
		}
		if !jsonOutput {
			printPlan(planned)
		}
		if planned.Plan.HasConflicts() {
			return fmt.Errorf("%w: resolve them in the desired state", engine.ErrConflict)
		}
		if planned.Plan.IsEmpty() {
			if jsonOutput {
				return outputJSON(applyView{Plan: newPlanView(planned), Paranoia: string(paranoia)})
			}
			return nil
		}

		applicator, err := s.newApplicator(paranoia, removeUnused)
		if err != nil {
			return err
		}

		result, err := s.engine.Apply(ctx, engine.ApplyRequest{
			Plan:        planned.Plan,
			Applicator:  applicator,
			Paranoia:    string(paranoia),
			Diagnostics: len(planned.Diagnostics),
		})
		if result == nil {
			return err
		}

		if jsonOutput {
			if jerr := outputJSON(newApplyView(planned, string(paranoia), result)); jerr != nil {
				return jerr
			}
			return err
		}

		printApplyResult(result, paranoia)
		if errors.Is(err, confirm.ErrAborted) {
			PrintWarning("Aborted; changes applied before the abort are kept")
		}
		return err
	},
}

func init() {
	applyCmd.Flags().StringVar(&applyParanoia, "paranoia", "", "How to apply: silent, interactive, or dry-run (default from config)")
	applyCmd.Flags().BoolVar(&applyPrune, "prune", false, "Revert entries not in the desired state")
	applyCmd.Flags().BoolVar(&applyRemoveUnused, "remove-unused", false, "Remove packages no longer required after each transaction")
}

// applyView is the JSON form of an apply run.
type applyView struct {
	Plan     planView      `json:"plan"`
	Paranoia string        `json:"paranoia"`
	RunID    string        `json:"runId,omitempty"`
	Summary  *summaryView  `json:"summary,omitempty"`
	Failures []failureView `json:"failures,omitempty"`
	Aborted  bool          `json:"aborted"`
}

type summaryView struct {
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
	Duration  string `json:"duration"`
}

type failureView struct {
	Subject     string `json:"subject"`
	Instruction string `json:"instruction"`
	Error       string `json:"error"`
}

func newApplyView(planned *engine.PlanResult, paranoia string, result *engine.ApplyResult) applyView {
	v := applyView{
		Plan:     newPlanView(planned),
		Paranoia: paranoia,
		RunID:    result.RunID,
		Aborted:  result.Aborted,
		Summary: &summaryView{
			Succeeded: result.Summary.Succeeded,
			Failed:    result.Summary.Failed,
			Skipped:   result.Summary.Skipped,
			Duration:  result.Summary.Duration.String(),
		},
	}
	for _, f := range result.Report.Failures() {
		v.Failures = append(v.Failures, failureView{
			Subject:     f.Subject,
			Instruction: f.Instruction,
			Error:       fmt.Sprint(f.Err),
		})
	}
	return v
}

func printApplyResult(result *engine.ApplyResult, paranoia config.Paranoia) {
	title := "Apply"
	if paranoia == config.ParanoiaDryRun {
		title = "Dry Run"
	}
	PrintSection(title)

	sum := result.Summary
	PrintLabelValueWithColor("Succeeded", fmt.Sprint(sum.Succeeded), successColor)
	if sum.Failed > 0 {
		PrintLabelValueWithColor("Failed", fmt.Sprint(sum.Failed), errorColor)
	} else {
		PrintLabelValue("Failed", "0")
	}
	PrintLabelValue("Skipped", fmt.Sprint(sum.Skipped))
	PrintLabelValue("Duration", sum.Duration.String())
	if result.RunID != "" {
		PrintLabelValue("Run", result.RunID)
	}

	if len(result.Report.Outcomes) > 0 {
		PrintSubsection("Changes:")
		PrintOutcomes(result.Report.Outcomes)
	}

	fmt.Println()
	switch {
	case result.Aborted:
	case sum.Failed > 0:
		PrintWarning(fmt.Sprintf("%s failed", PrintCount(sum.Failed, "change", "changes")))
	case paranoia == config.ParanoiaDryRun:
		PrintInfo(fmt.Sprintf("Would apply %s", PrintCount(sum.Succeeded, "change", "changes")))
	default:
		PrintSuccess(fmt.Sprintf("Applied %s", PrintCount(sum.Succeeded, "change", "changes")))
	}
}
