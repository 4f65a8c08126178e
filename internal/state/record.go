package state

import (
	"fmt"
	"time"

	"github.com/danieljhkim/hostconf/internal/hash"
)

// RunRecord describes one apply run.
type RunRecord struct {
	// ID orders runs chronologically
	ID string `json:"id"`

	// Paranoia is the confirmation policy the run used
	Paranoia string `json:"paranoia"`

	// LeftOnly is the policy for entries only present on the system
	LeftOnly string `json:"leftOnly"`

	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`

	Plan    PlanCounts    `json:"plan"`
	Outcome OutcomeCounts `json:"outcome"`

	// Failures lists every failed instruction
	Failures []Failure `json:"failures,omitempty"`

	// Aborted is set when the user stopped the run
	Aborted bool `json:"aborted"`
}

// PlanCounts summarizes what the run set out to do.
type PlanCounts struct {
	Fs          int `json:"fs"`
	Pkgs        int `json:"pkgs"`
	Notes       int `json:"notes"`
	Diagnostics int `json:"diagnostics"`
}

// OutcomeCounts summarizes what the run did.
type OutcomeCounts struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Failure is one failed instruction.
type Failure struct {
	Subject     string `json:"subject"`
	Instruction string `json:"instruction"`
	Error       string `json:"error"`
}

// NewRunRecord creates a record for a run starting at started.
func NewRunRecord(started time.Time, paranoia, leftOnly string) *RunRecord {
	return &RunRecord{
		ID:        ComputeRunID(started, paranoia),
		Paranoia:  paranoia,
		LeftOnly:  leftOnly,
		StartedAt: started,
	}
}

// Duration is the wall time of the run, or zero if it has not finished.
func (r *RunRecord) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// ComputeRunID derives a run ID from the start time. The timestamp prefix
// sorts chronologically and the short hash keeps runs started in the same
// second apart.
func ComputeRunID(started time.Time, paranoia string) string {
	stamp := started.UTC().Format("20060102T150405Z")
	sum := hash.Sum([]byte(fmt.Sprintf("%d|%s", started.UnixNano(), paranoia)))
	return stamp + "-" + sum.Short()
}
