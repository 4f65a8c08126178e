// Package engine orchestrates a reconciliation run.
//
// Plan collects package databases, scans the filesystem, converts every
// discrepancy into instructions, merges them with the desired state and
// builds a plan. Apply hands the plan to an applicator, packages first, and
// records the run.
package engine

import (
	"github.com/rs/zerolog"

	"github.com/danieljhkim/hostconf/internal/backend"
	"github.com/danieljhkim/hostconf/internal/clock"
	"github.com/danieljhkim/hostconf/internal/fsops"
	"github.com/danieljhkim/hostconf/internal/hash"
	"github.com/danieljhkim/hostconf/internal/ids"
	"github.com/danieljhkim/hostconf/internal/state"
)

// Options tune planning.
type Options struct {
	// Ignore globs are never reported as unexpected
	Ignore []string

	// Allow globs turn unexpected paths into comments
	Allow []string

	// Concurrency bounds the number of backends queried at once
	Concurrency int
}

// Engine orchestrates all hostconf operations.
// It is the main API surface called by the CLI.
type Engine struct {
	backends *backend.Registry
	fs       fsops.FS
	hasher   hash.Hasher
	resolver ids.Resolver
	clock    clock.Clock
	runs     state.RunStore
	opts     Options
	log      zerolog.Logger
}

// New creates a new Engine with the given dependencies. runs may be nil, in
// which case nothing is recorded.
func New(
	backends *backend.Registry,
	fs fsops.FS,
	hasher hash.Hasher,
	resolver ids.Resolver,
	clk clock.Clock,
	runs state.RunStore,
	opts Options,
	log zerolog.Logger,
) *Engine {
	if opts.Concurrency <= 0 {
		opts.Concurrency = backend.DefaultConcurrency
	}
	return &Engine{
		backends: backends,
		fs:       fs,
		hasher:   hasher,
		resolver: resolver,
		clock:    clk,
		runs:     runs,
		opts:     opts,
		log:      log,
	}
}

// LastRun returns the most recent run record.
func (e *Engine) LastRun() (*state.RunRecord, error) {
	if e.runs == nil {
		return nil, state.ErrNoRuns
	}
	return e.runs.Latest()
}
