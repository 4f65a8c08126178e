package backend

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/danieljhkim/hostconf/internal/instr"
	"github.com/danieljhkim/hostconf/internal/intern"
)

// DefaultConcurrency bounds the number of backends collected at once.
const DefaultConcurrency = 4

// Registry holds backends keyed by name.
type Registry struct {
	backends map[string]Backend
}

func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]Backend)}
}

// Register adds b. Names must be unique.
func (r *Registry) Register(b Backend) error {
	name := b.Name()
	if _, ok := r.backends[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateBackend, name)
	}
	r.backends[name] = b
	return nil
}

// Get returns the backend called name.
func (r *Registry) Get(name string) (Backend, error) {
	b, ok := r.backends[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, name)
	}
	return b, nil
}

// Names returns the registered backend names in ascending order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Len() int {
	return len(r.backends)
}

// Result is what one backend reported.
type Result struct {
	Backend  string
	Files    []FileEntry
	Packages []Package
}

// Collection is the merged output of every backend.
type Collection struct {
	// Results is ordered by backend name.
	Results []Result
}

// Collect queries every backend for its files and packages. Backends run
// concurrently, at most limit at a time; limit <= 0 means DefaultConcurrency.
// Each worker only writes its own result slot. The interner is the one
// object shared between workers.
func (r *Registry) Collect(ctx context.Context, in *intern.Interner, limit int) (*Collection, error) {
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	names := r.Names()
	results := make([]Result, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, name := range names {
		b := r.backends[name]
		g.Go(func() error {
			files, err := b.Files(gctx, in)
			if err != nil {
				return fmt.Errorf("backend %s: failed to list files: %w", name, err)
			}
			pkgs, err := b.Packages(gctx, in)
			if err != nil {
				return fmt.Errorf("backend %s: failed to list packages: %w", name, err)
			}
			results[i] = Result{Backend: name, Files: files, Packages: pkgs}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &Collection{Results: results}, nil
}

// Files returns the file entries of every backend sorted by path. When more
// than one package claims a path the first backend in name order wins.
func (c *Collection) Files() []FileEntry {
	var all []FileEntry
	for _, res := range c.Results {
		all = append(all, res.Files...)
	}
	slices.SortStableFunc(all, func(a, b FileEntry) int {
		switch {
		case a.Path < b.Path:
			return -1
		case a.Path > b.Path:
			return 1
		}
		return 0
	})
	return slices.CompactFunc(all, func(a, b FileEntry) bool { return a.Path == b.Path })
}

// PkgInstructions expresses the explicitly installed packages as the
// instructions that would install them.
func (c *Collection) PkgInstructions(in *intern.Interner) *instr.PkgInstructions {
	out := instr.NewPkgInstructions()
	for _, res := range c.Results {
		for _, p := range res.Packages {
			if !p.Explicit {
				continue
			}
			id := instr.PkgIdent{PackageManager: res.Backend, Identifier: in.Lookup(p.Name)}
			out.Set(id, instr.PkgInstruction{Op: instr.Install})
		}
	}
	return out
}
