package planner

import (
	"fmt"
	"sort"

	"github.com/danieljhkim/hostconf/internal/instr"
)

// ConflictChecker checks the desired instructions of one path for
// contradictions.
type ConflictChecker struct{}

// NewConflictChecker creates a new ConflictChecker.
func NewConflictChecker() *ConflictChecker {
	return &ConflictChecker{}
}

// CheckPath checks the desired ops for path. Returns a Conflict if one is
// detected, or nil if the ops can be applied together.
func (c *ConflictChecker) CheckPath(path string, ops []instr.FsOp) *Conflict {
	var remove bool
	var others []string
	for _, op := range ops {
		switch op.Kind {
		case instr.OpRemove:
			remove = true
		case instr.OpComment:
		default:
			others = append(others, op.Kind.String())
		}
	}
	if remove && len(others) > 0 {
		return &Conflict{
			Path:   path,
			Reason: fmt.Sprintf("Path is both removed and managed (%v)", others),
		}
	}
	return nil
}

func sortConflicts(conflicts []Conflict) {
	sort.Slice(conflicts, func(i, j int) bool {
		return conflicts[i].Path < conflicts[j].Path
	})
}
