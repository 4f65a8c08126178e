package planner

import (
	"github.com/danieljhkim/hostconf/internal/instr"
	"github.com/danieljhkim/hostconf/internal/merge"
)

// Build generates a deterministic plan from merged filesystem and package
// entries. Right-only and differing entries apply the desired value, equal
// entries need nothing, and left-only entries follow policy.
//
// A left-only filesystem entry is superseded, and never applied, when the
// desired state has an instruction for the same path and one of the two is
// a removal.
func Build(fsEntries []merge.FsEntry, pkgEntries []merge.PkgEntry, policy LeftOnlyPolicy) *ApplyPlan {
	plan := NewApplyPlan(policy)
	checker := NewConflictChecker()

	desired := make(map[string][]instr.FsOp)
	for _, e := range fsEntries {
		if e.Class != merge.LeftOnly {
			desired[e.Key.Path] = append(desired[e.Key.Path], e.Right.Op)
		}
	}
	for path, ops := range desired {
		if c := checker.CheckPath(path, ops); c != nil {
			plan.AddConflict(*c)
		}
	}
	sortConflicts(plan.Conflicts)

	for _, e := range fsEntries {
		switch e.Class {
		case merge.RightOnly, merge.BothDiffer:
			if e.Right.Op.Kind == instr.OpComment {
				continue
			}
			plan.addFs(e.Right)
		case merge.LeftOnly:
			if superseded(e.Left.Op, desired[e.Key.Path]) {
				plan.addNote(e.Key.Path, e.Left.Op.String(), NoteSuperseded)
				continue
			}
			if policy == Revert && e.Left.Op.Kind != instr.OpComment {
				plan.addFs(e.Left)
				continue
			}
			plan.addNote(e.Key.Path, e.Left.Op.String(), NoteLeftOnly)
		}
	}
	instr.SortFs(plan.Fs)

	for _, e := range pkgEntries {
		switch e.Class {
		case merge.BothDiffer:
			plan.addPkg(instr.PkgEntry{Ident: e.Key, Instruction: e.Right})
		case merge.RightOnly:
			// The system side lists installed packages only, so there is
			// nothing to uninstall.
			if e.Right.Op == instr.Uninstall {
				plan.addNote(e.Key.String(), e.Right.Op.String(), NoteNotInstalled)
				continue
			}
			plan.addPkg(instr.PkgEntry{Ident: e.Key, Instruction: e.Right})
		case merge.LeftOnly:
			if policy == Revert {
				plan.addPkg(instr.PkgEntry{Ident: e.Key, Instruction: instr.PkgInstruction{
					Op:      e.Left.Op.Invert(),
					Comment: "not in desired state",
				}})
				continue
			}
			plan.addNote(e.Key.String(), e.Left.Op.String(), NoteLeftOnly)
		}
	}

	return plan
}

func superseded(system instr.FsOp, desired []instr.FsOp) bool {
	if len(desired) == 0 {
		return false
	}
	if system.Kind == instr.OpRemove {
		return true
	}
	for _, op := range desired {
		if op.Kind == instr.OpRemove {
			return true
		}
	}
	return false
}
