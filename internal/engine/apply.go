package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/danieljhkim/hostconf/internal/apply"
	"github.com/danieljhkim/hostconf/internal/clock"
	"github.com/danieljhkim/hostconf/internal/confirm"
	"github.com/danieljhkim/hostconf/internal/instr"
	"github.com/danieljhkim/hostconf/internal/state"
)

// Apply hands the plan to the applicator, packages first so that files
// they ship exist before they are configured. A plan with conflicts is
// refused. The result is complete even when an error is returned: an abort
// returns confirm.ErrAborted and failed instructions return ErrIncomplete.
func (e *Engine) Apply(ctx context.Context, req ApplyRequest) (*ApplyResult, error) {
	plan := req.Plan
	if plan.HasConflicts() {
		return nil, fmt.Errorf("%w: %d paths, first %s: %s",
			ErrConflict, len(plan.Conflicts), plan.Conflicts[0].Path, plan.Conflicts[0].Reason)
	}

	started := e.clock.Now()
	record := state.NewRunRecord(started, req.Paranoia, plan.Policy.String())
	record.Plan = state.PlanCounts{
		Fs:          len(plan.Fs),
		Pkgs:        len(plan.Pkgs),
		Notes:       len(plan.Notes),
		Diagnostics: req.Diagnostics,
	}

	report := apply.NewReport()
	runErr := e.run(ctx, req.Applicator, plan.Pkgs, plan.Fs, report)

	result := &ApplyResult{
		Report:  report,
		Aborted: errors.Is(runErr, confirm.ErrAborted),
	}
	result.Summary = Summary{
		Summary:  report.Summary(),
		Duration: clock.Since(e.clock, started),
	}

	record.FinishedAt = started.Add(result.Summary.Duration)
	record.Aborted = result.Aborted
	record.Outcome = state.OutcomeCounts{
		Succeeded: result.Summary.Succeeded,
		Failed:    result.Summary.Failed,
		Skipped:   result.Summary.Skipped,
	}
	for _, f := range report.Failures() {
		record.Failures = append(record.Failures, state.Failure{
			Subject:     f.Subject,
			Instruction: f.Instruction,
			Error:       errString(f.Err),
		})
	}
	if e.runs != nil {
		if err := e.runs.Save(record); err != nil {
			e.log.Warn().Err(err).Msg("failed to save run record")
		} else {
			result.RunID = record.ID
		}
	}

	e.log.Info().
		Int("succeeded", result.Summary.Succeeded).
		Int("failed", result.Summary.Failed).
		Int("skipped", result.Summary.Skipped).
		Dur("duration", result.Summary.Duration).
		Bool("aborted", result.Aborted).
		Msg("apply finished")

	if runErr != nil {
		return result, runErr
	}
	if result.Summary.Failed > 0 {
		return result, fmt.Errorf("%w: %d of %d", ErrIncomplete, result.Summary.Failed, result.Summary.Total())
	}
	return result, nil
}

func (e *Engine) run(ctx context.Context, a apply.Applicator, pkgs []instr.PkgEntry, fsIns []instr.FsInstruction, report *apply.Report) error {
	if len(pkgs) > 0 {
		sub, err := a.ApplyPkgs(ctx, pkgs)
		report.Merge(sub)
		if err != nil {
			return err
		}
	}
	if len(fsIns) > 0 {
		sub, err := a.ApplyFs(ctx, fsIns)
		report.Merge(sub)
		if err != nil {
			return err
		}
	}
	return nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
