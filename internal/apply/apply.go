// Package apply executes planned instructions.
//
// Three applicators share one interface: Noop only logs what it would do,
// InProcess performs the operations directly, and Interactive asks before
// handing each group of instructions to another applicator.
package apply

import (
	"context"
	"slices"
	"strings"

	"github.com/rs/zerolog"

	"github.com/danieljhkim/hostconf/internal/instr"
)

// Applicator applies instructions. Per-instruction failures are recorded in
// the report; the error return is reserved for conditions that end the run,
// including confirm.ErrAborted.
type Applicator interface {
	ApplyPkgs(ctx context.Context, entries []instr.PkgEntry) (*Report, error)
	ApplyFs(ctx context.Context, instrs []instr.FsInstruction) (*Report, error)
}

// Noop applies nothing and logs every instruction it would have applied.
type Noop struct {
	log zerolog.Logger
}

func NewNoop(log zerolog.Logger) *Noop {
	return &Noop{log: log}
}

func (n *Noop) ApplyPkgs(ctx context.Context, entries []instr.PkgEntry) (*Report, error) {
	report := NewReport()
	for _, e := range entries {
		n.log.Info().
			Str("package", e.Ident.String()).
			Str("op", e.Instruction.Op.String()).
			Str("comment", e.Instruction.Comment).
			Msg("would apply")
		report.pkg(e, Succeeded, nil)
	}
	return report, nil
}

func (n *Noop) ApplyFs(ctx context.Context, instrs []instr.FsInstruction) (*Report, error) {
	report := NewReport()
	for _, ins := range OrderFs(instrs) {
		n.log.Info().
			Str("path", ins.Path).
			Str("op", ins.Op.String()).
			Str("comment", ins.Comment).
			Msg("would apply")
		report.fs(ins, Succeeded, nil)
	}
	return report, nil
}

// OrderFs returns instrs in execution order: removals first, deepest path
// first, then everything else ascending by path and op. The input is not
// modified.
func OrderFs(instrs []instr.FsInstruction) []instr.FsInstruction {
	var removals, rest []instr.FsInstruction
	for _, ins := range instrs {
		if ins.Op.Kind == instr.OpRemove {
			removals = append(removals, ins)
		} else {
			rest = append(rest, ins)
		}
	}
	slices.SortStableFunc(removals, func(a, b instr.FsInstruction) int {
		return strings.Compare(b.Path, a.Path)
	})
	instr.SortFs(rest)
	return append(removals, rest...)
}

// batches groups package entries by package manager, in name order.
func batches(entries []instr.PkgEntry) [][]instr.PkgEntry {
	var out [][]instr.PkgEntry
	index := make(map[string]int)
	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, func(a, b instr.PkgEntry) int { return a.Ident.Compare(b.Ident) })
	for _, e := range sorted {
		i, ok := index[e.Ident.PackageManager]
		if !ok {
			i = len(out)
			index[e.Ident.PackageManager] = i
			out = append(out, nil)
		}
		out[i] = append(out[i], e)
	}
	return out
}

// groupFs groups instructions by path in execution order. Groups holding
// only removals come first, deepest path first.
func groupFs(instrs []instr.FsInstruction) [][]instr.FsInstruction {
	byPath := make(map[string][]instr.FsInstruction)
	var paths []string
	for _, ins := range instrs {
		if _, ok := byPath[ins.Path]; !ok {
			paths = append(paths, ins.Path)
		}
		byPath[ins.Path] = append(byPath[ins.Path], ins)
	}

	onlyRemove := func(group []instr.FsInstruction) bool {
		for _, ins := range group {
			if ins.Op.Kind != instr.OpRemove {
				return false
			}
		}
		return true
	}

	var removals, rest []string
	for _, p := range paths {
		if onlyRemove(byPath[p]) {
			removals = append(removals, p)
		} else {
			rest = append(rest, p)
		}
	}
	slices.Sort(removals)
	slices.Reverse(removals)
	slices.Sort(rest)

	out := make([][]instr.FsInstruction, 0, len(paths))
	for _, p := range append(removals, rest...) {
		group := byPath[p]
		instr.SortFs(group)
		out = append(out, group)
	}
	return out
}
