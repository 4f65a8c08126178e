package planner

import (
	"fmt"

	"github.com/danieljhkim/hostconf/internal/instr"
)

// LeftOnlyPolicy decides what happens to state found on the system but not
// mentioned by the desired state.
type LeftOnlyPolicy uint8

const (
	// Report records left-only entries as notes and never applies them.
	Report LeftOnlyPolicy = iota
	// Revert applies system corrections as-is and flips package operations.
	Revert
)

func (p LeftOnlyPolicy) String() string {
	if p == Revert {
		return "revert"
	}
	return "report"
}

// ParsePolicy parses "report" or "revert".
func ParsePolicy(s string) (LeftOnlyPolicy, error) {
	switch s {
	case "report", "":
		return Report, nil
	case "revert":
		return Revert, nil
	}
	return Report, fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
}

// ApplyPlan represents a plan to reconcile a host.
type ApplyPlan struct {
	// Policy is the left-only policy the plan was built with
	Policy LeftOnlyPolicy

	// Fs is the filesystem instructions to apply, ascending by path and op
	Fs []instr.FsInstruction

	// Pkgs is the package instructions to apply, ascending by identity
	Pkgs []instr.PkgEntry

	// Notes records entries that were considered but not planned
	Notes []Note

	// Conflicts is a list of detected conflicts (empty if no conflicts)
	Conflicts []Conflict
}

// NoteReason says why an entry was left out of the plan.
type NoteReason string

const (
	NoteLeftOnly     NoteReason = "present on system only"
	NoteSuperseded   NoteReason = "superseded by desired state"
	NoteNotInstalled NoteReason = "already absent"
)

// Note is an entry left out of the plan.
type Note struct {
	// Subject is the path or package identity
	Subject string

	// Instruction is the instruction that was not planned
	Instruction string

	Reason NoteReason
}

// Conflict represents a contradiction found in the desired state.
type Conflict struct {
	// Path is the path where the conflict was detected
	Path string

	// Reason is a human-readable explanation of the conflict
	Reason string
}

// NewApplyPlan creates a new empty ApplyPlan.
func NewApplyPlan(policy LeftOnlyPolicy) *ApplyPlan {
	return &ApplyPlan{
		Policy:    policy,
		Fs:        []instr.FsInstruction{},
		Pkgs:      []instr.PkgEntry{},
		Notes:     []Note{},
		Conflicts: []Conflict{},
	}
}

// HasConflicts returns true if the plan has any conflicts.
func (p *ApplyPlan) HasConflicts() bool {
	return len(p.Conflicts) > 0
}

// IsEmpty reports whether the plan changes nothing.
func (p *ApplyPlan) IsEmpty() bool {
	return len(p.Fs) == 0 && len(p.Pkgs) == 0
}

// Len returns the number of planned instructions.
func (p *ApplyPlan) Len() int {
	return len(p.Fs) + len(p.Pkgs)
}

func (p *ApplyPlan) addFs(ins instr.FsInstruction) {
	p.Fs = append(p.Fs, ins)
}

func (p *ApplyPlan) addPkg(e instr.PkgEntry) {
	p.Pkgs = append(p.Pkgs, e)
}

func (p *ApplyPlan) addNote(subject, instruction string, reason NoteReason) {
	p.Notes = append(p.Notes, Note{Subject: subject, Instruction: instruction, Reason: reason})
}

// AddConflict adds a conflict to the plan.
func (p *ApplyPlan) AddConflict(conflict Conflict) {
	p.Conflicts = append(p.Conflicts, conflict)
}
