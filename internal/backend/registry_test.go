package backend_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/danieljhkim/hostconf/internal/backend"
	"github.com/danieljhkim/hostconf/internal/backend/backendtest"
	"github.com/danieljhkim/hostconf/internal/instr"
	"github.com/danieljhkim/hostconf/internal/intern"
)

func newRegistry(t *testing.T, backends ...backend.Backend) *backend.Registry {
	t.Helper()
	r := backend.NewRegistry()
	for _, b := range backends {
		if err := r.Register(b); err != nil {
			t.Fatalf("Register(%s) failed: %v", b.Name(), err)
		}
	}
	return r
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := newRegistry(t, backendtest.New("pacman"), backendtest.New("flatpak"))

	if err := r.Register(backendtest.New("pacman")); !errors.Is(err, backend.ErrDuplicateBackend) {
		t.Errorf("duplicate Register error = %v, want ErrDuplicateBackend", err)
	}
	if _, err := r.Get("apt"); !errors.Is(err, backend.ErrUnknownBackend) {
		t.Errorf("Get(apt) error = %v, want ErrUnknownBackend", err)
	}
	b, err := r.Get("pacman")
	if err != nil || b.Name() != "pacman" {
		t.Errorf("Get(pacman) = %v, %v", b, err)
	}

	names := r.Names()
	if len(names) != 2 || names[0] != "flatpak" || names[1] != "pacman" {
		t.Errorf("Names() = %v, want [flatpak pacman]", names)
	}
}

func TestRegistry_Collect(t *testing.T) {
	pacman := backendtest.New("pacman")
	pacman.FileList = []backendtest.File{
		{Path: "/usr/bin/zsh", Package: "zsh"},
		{Path: "/etc/zsh/zshrc", Package: "zsh"},
	}
	pacman.Installed["zsh"] = true
	pacman.Installed["pcre2"] = false

	flatpak := backendtest.New("flatpak")
	flatpak.FileList = []backendtest.File{{Path: "/var/lib/flatpak/app", Package: "org.example.App"}}
	flatpak.Installed["org.example.App"] = true

	r := newRegistry(t, pacman, flatpak)
	in := intern.New()

	coll, err := r.Collect(context.Background(), in, 1)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	if len(coll.Results) != 2 || coll.Results[0].Backend != "flatpak" || coll.Results[1].Backend != "pacman" {
		t.Fatalf("results not ordered by backend: %+v", coll.Results)
	}

	files := coll.Files()
	want := []string{"/etc/zsh/zshrc", "/usr/bin/zsh", "/var/lib/flatpak/app"}
	if len(files) != len(want) {
		t.Fatalf("Files() returned %d entries, want %d", len(files), len(want))
	}
	for i, f := range files {
		if f.Path != want[i] {
			t.Errorf("files[%d] = %s, want %s", i, f.Path, want[i])
		}
	}
	if got := in.Lookup(files[0].Package); got != "zsh" {
		t.Errorf("package of %s = %q, want zsh", files[0].Path, got)
	}

	pkgs := coll.PkgInstructions(in)
	if pkgs.Len() != 2 {
		t.Errorf("PkgInstructions has %d entries, want 2 (dependency excluded)", pkgs.Len())
	}
	if ins, ok := pkgs.Get(instr.PkgIdent{PackageManager: "pacman", Identifier: "zsh"}); !ok || ins.Op != instr.Install {
		t.Errorf("pacman:zsh = %v, %v; want install", ins, ok)
	}
	if _, ok := pkgs.Get(instr.PkgIdent{PackageManager: "pacman", Identifier: "pcre2"}); ok {
		t.Error("dependency pcre2 should not appear")
	}
}

func TestRegistry_CollectError(t *testing.T) {
	broken := backendtest.New("broken")
	broken.FilesErr = errors.New("database locked")

	r := newRegistry(t, backendtest.New("ok"), broken)
	_, err := r.Collect(context.Background(), intern.New(), 0)
	if err == nil {
		t.Fatal("expected error from broken backend")
	}
	if !errors.Is(err, broken.FilesErr) {
		t.Errorf("error %v does not wrap the backend error", err)
	}
}

// countingBackend tracks how many Files calls run at the same time.
type countingBackend struct {
	*backendtest.Backend
	mu      *sync.Mutex
	running *int
	peak    *int
	gate    chan struct{}
}

func (c countingBackend) Files(ctx context.Context, in *intern.Interner) ([]backend.FileEntry, error) {
	c.mu.Lock()
	*c.running++
	if *c.running > *c.peak {
		*c.peak = *c.running
	}
	c.mu.Unlock()

	<-c.gate

	c.mu.Lock()
	*c.running--
	c.mu.Unlock()
	return c.Backend.Files(ctx, in)
}

func TestRegistry_CollectRespectsLimit(t *testing.T) {
	var mu sync.Mutex
	var running, peak int
	gate := make(chan struct{})

	r := backend.NewRegistry()
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		b := countingBackend{Backend: backendtest.New(name), mu: &mu, running: &running, peak: &peak, gate: gate}
		if err := r.Register(b); err != nil {
			t.Fatal(err)
		}
	}

	done := make(chan error, 1)
	go func() {
		_, err := r.Collect(context.Background(), intern.New(), 2)
		done <- err
	}()
	for i := 0; i < 5; i++ {
		gate <- struct{}{}
	}
	if err := <-done; err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if peak > 2 {
		t.Errorf("peak concurrency %d exceeds limit 2", peak)
	}
}
