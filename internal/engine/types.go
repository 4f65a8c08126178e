package engine

import (
	"time"

	"github.com/danieljhkim/hostconf/internal/apply"
	"github.com/danieljhkim/hostconf/internal/desired"
	"github.com/danieljhkim/hostconf/internal/issue"
	"github.com/danieljhkim/hostconf/internal/planner"
)

// PlanRequest represents a request to compute a plan.
type PlanRequest struct {
	// Desired is the desired state
	Desired *desired.State

	// Roots are the directories searched for files no package owns
	Roots []string

	// Policy decides what happens to entries only the system has
	Policy planner.LeftOnlyPolicy
}

// PlanResult represents a computed plan.
type PlanResult struct {
	Plan *planner.ApplyPlan

	// Diagnostics are paths that could not be inspected
	Diagnostics []issue.Diagnostic

	// Files is the number of package-owned files checked
	Files int

	// Packages is the number of installed packages seen
	Packages int

	// Issues is the number of paths that differ from their packages
	Issues int
}

// ApplyRequest represents a request to apply a plan.
type ApplyRequest struct {
	Plan *planner.ApplyPlan

	// Applicator performs or simulates the instructions
	Applicator apply.Applicator

	// Paranoia names the confirmation policy for the run record
	Paranoia string

	// Diagnostics is the number of diagnostics from planning
	Diagnostics int
}

// Summary counts outcomes and measures the run.
type Summary struct {
	apply.Summary
	Duration time.Duration `json:"duration"`
}

// ApplyResult represents the result of applying a plan.
type ApplyResult struct {
	// Report holds one outcome per instruction, packages first
	Report *apply.Report

	Summary Summary

	// RunID identifies the saved run record, empty if none was saved
	RunID string

	// Aborted is set when the user stopped the run
	Aborted bool
}
