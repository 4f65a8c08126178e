// Package backendtest provides an in-memory Backend for tests.
package backendtest

import (
	"context"
	"slices"
	"sync"

	"github.com/danieljhkim/hostconf/internal/backend"
	"github.com/danieljhkim/hostconf/internal/intern"
)

// File describes a file owned by a fake package.
type File struct {
	Path       string
	Package    string
	Properties backend.Properties
	// Original is returned by OriginalFiles.
	Original []byte
}

// Call records one mutating call.
type Call struct {
	Method string
	Args   [][]string
}

// Backend is a scriptable in-memory backend. Packages maps package name to
// whether it was explicitly installed.
type Backend struct {
	BackendName string
	FileList    []File
	Installed   map[string]bool

	FilesErr    error
	TransactErr error
	MarkErr     error

	mu    sync.Mutex
	calls []Call
}

func New(name string) *Backend {
	return &Backend{BackendName: name, Installed: make(map[string]bool)}
}

func (b *Backend) Name() string { return b.BackendName }

func (b *Backend) Files(ctx context.Context, in *intern.Interner) ([]backend.FileEntry, error) {
	if b.FilesErr != nil {
		return nil, b.FilesErr
	}
	out := make([]backend.FileEntry, 0, len(b.FileList))
	for _, f := range b.FileList {
		out = append(out, backend.FileEntry{
			Path:       f.Path,
			Package:    in.Intern(f.Package),
			Properties: f.Properties,
		})
	}
	return out, nil
}

func (b *Backend) Packages(ctx context.Context, in *intern.Interner) ([]backend.Package, error) {
	names := make([]string, 0, len(b.Installed))
	for name := range b.Installed {
		names = append(names, name)
	}
	slices.Sort(names)

	out := make([]backend.Package, 0, len(names))
	for _, name := range names {
		out = append(out, backend.Package{Name: in.Intern(name), Explicit: b.Installed[name]})
	}
	return out, nil
}

func (b *Backend) OwningPackages(ctx context.Context, paths []string) (map[string]string, error) {
	out := make(map[string]string)
	for _, p := range paths {
		for _, f := range b.FileList {
			if f.Path == p {
				out[p] = f.Package
			}
		}
	}
	return out, nil
}

func (b *Backend) OriginalFiles(ctx context.Context, queries []backend.OriginalFileQuery) (map[string][]byte, error) {
	out := make(map[string][]byte)
	for _, q := range queries {
		for _, f := range b.FileList {
			if f.Path == q.Path && f.Package == q.Package && f.Original != nil {
				out[q.Path] = f.Original
			}
		}
	}
	return out, nil
}

func (b *Backend) Transact(ctx context.Context, install, uninstall []string, confirm bool) error {
	b.record("Transact", install, uninstall)
	if b.TransactErr != nil {
		return b.TransactErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, name := range install {
		b.Installed[name] = true
	}
	for _, name := range uninstall {
		delete(b.Installed, name)
	}
	return nil
}

func (b *Backend) Mark(ctx context.Context, deps, manual []string) error {
	b.record("Mark", deps, manual)
	return b.MarkErr
}

func (b *Backend) RemoveUnused(ctx context.Context, confirm bool) error {
	b.record("RemoveUnused")
	return nil
}

// Calls returns the mutating calls made so far.
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.calls)
}

func (b *Backend) record(method string, args ...[]string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, Call{Method: method, Args: args})
}
