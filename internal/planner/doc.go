// Package planner handles the planning phase of a reconciliation run.
//
// The planner turns merged system and desired instruction sequences into a
// deterministic ApplyPlan. It decides what happens to state present only on
// the system, detects contradictions inside the desired state, and drops
// system corrections that a desired instruction supersedes.
//
// Key responsibilities:
//   - Apply the desired value for right-only and both-differ entries
//   - Revert or report left-only entries according to the LeftOnlyPolicy
//   - Detect conflicts (removal and creation of the same path)
//   - Keep output ordered so that plans are reproducible
package planner
