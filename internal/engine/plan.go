package engine

import (
	"context"
	"fmt"

	"github.com/danieljhkim/hostconf/internal/desired"
	"github.com/danieljhkim/hostconf/internal/instr"
	"github.com/danieljhkim/hostconf/internal/intern"
	"github.com/danieljhkim/hostconf/internal/issue"
	"github.com/danieljhkim/hostconf/internal/merge"
	"github.com/danieljhkim/hostconf/internal/planner"
	"github.com/danieljhkim/hostconf/internal/scan"
)

// Plan computes what it takes to move the system to the desired state.
func (e *Engine) Plan(ctx context.Context, req PlanRequest) (*PlanResult, error) {
	want := req.Desired
	if want == nil {
		want = desired.Empty()
	}
	if err := e.checkPackageManagers(want); err != nil {
		return nil, err
	}

	in := intern.New()
	coll, err := e.backends.Collect(ctx, in, e.opts.Concurrency)
	if err != nil {
		return nil, err
	}
	files := coll.Files()
	systemPkgs := coll.PkgInstructions(in)

	scanner, err := scan.New(e.fs, e.hasher, e.opts.Ignore, e.log)
	if err != nil {
		return nil, err
	}
	issues := scanner.Check(files)

	known := want.Paths()
	for _, f := range files {
		known[f.Path] = true
	}
	unexpected, err := scanner.Unexpected(req.Roots, known)
	if err != nil {
		return nil, err
	}

	converter, err := issue.NewConverter(e.opts.Allow, e.resolver)
	if err != nil {
		return nil, err
	}
	converted, diags := converter.Convert(append(issues, unexpected...))
	converted = e.fromRecord(converted, files, issues)
	wantFs := e.normalize(want.Fs)
	system := combine(converted, e.observe(wantFs))

	fsEntries, err := merge.Fs(system, wantFs)
	if err != nil {
		return nil, fmt.Errorf("failed to merge filesystem state: %w", err)
	}
	pkgEntries, err := merge.Pkgs(systemPkgs, want.Pkgs)
	if err != nil {
		return nil, fmt.Errorf("failed to merge package state: %w", err)
	}

	plan := planner.Build(fsEntries, pkgEntries, req.Policy)
	e.log.Info().
		Int("files", len(files)).
		Int("packages", systemPkgs.Len()).
		Int("issues", len(issues)+len(unexpected)).
		Int("fs", len(plan.Fs)).
		Int("pkgs", len(plan.Pkgs)).
		Int("notes", len(plan.Notes)).
		Int("conflicts", len(plan.Conflicts)).
		Msg("plan built")

	return &PlanResult{
		Plan:        plan,
		Diagnostics: diags,
		Files:       len(files),
		Packages:    systemPkgs.Len(),
		Issues:      len(issues) + len(unexpected),
	}, nil
}

func (e *Engine) checkPackageManagers(want *desired.State) error {
	for _, entry := range want.Pkgs.Entries() {
		if _, err := e.backends.Get(entry.Ident.PackageManager); err != nil {
			return fmt.Errorf("%w: %s wants %s", ErrUnknownPackageManager, entry.Ident.PackageManager, entry.Ident.Identifier)
		}
	}
	return nil
}

// combine merges converted issues with observed facts into one sorted,
// key-unique sequence. An observed fact replaces any converted instruction
// with the same key.
func combine(converted, observed []instr.FsInstruction) []instr.FsInstruction {
	seen := make(map[instr.FsKey]bool, len(observed))
	out := make([]instr.FsInstruction, 0, len(converted)+len(observed))
	for _, ins := range observed {
		seen[ins.Key()] = true
		out = append(out, ins)
	}
	for _, ins := range converted {
		if !seen[ins.Key()] {
			out = append(out, ins)
		}
	}
	instr.SortFs(out)

	deduped := out[:0]
	for i, ins := range out {
		if i > 0 && ins.Key() == out[i-1].Key() {
			continue
		}
		deduped = append(deduped, ins)
	}
	return deduped
}
