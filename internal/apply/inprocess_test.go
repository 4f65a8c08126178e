package apply

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/rs/zerolog"

	"github.com/danieljhkim/hostconf/internal/backend"
	"github.com/danieljhkim/hostconf/internal/backend/backendtest"
	"github.com/danieljhkim/hostconf/internal/fsops"
	"github.com/danieljhkim/hostconf/internal/instr"
)

// selfResolver maps every name to the current user and group, which the
// test process is always allowed to chown to.
type selfResolver struct{}

func (selfResolver) UID(string) (uint32, error) { return uint32(os.Getuid()), nil }
func (selfResolver) GID(string) (uint32, error) { return uint32(os.Getgid()), nil }
func (selfResolver) UserName(uint32) (string, error) { return "me", nil }
func (selfResolver) GroupName(uint32) (string, error) { return "us", nil }

func fsIns(path string, op instr.FsOp) instr.FsInstruction {
	return instr.FsInstruction{Path: path, Op: op}
}

func pkgEntry(pm, id string, op instr.PkgOp) instr.PkgEntry {
	return instr.PkgEntry{
		Ident:       instr.PkgIdent{PackageManager: pm, Identifier: id},
		Instruction: instr.PkgInstruction{Op: op},
	}
}

func newRegistry(t *testing.T, backends ...backend.Backend) *backend.Registry {
	t.Helper()
	reg := backend.NewRegistry()
	for _, b := range backends {
		if err := reg.Register(b); err != nil {
			t.Fatalf("Register(%s) failed: %v", b.Name(), err)
		}
	}
	return reg
}

func newInProcess(reg *backend.Registry, opts Options) *InProcess {
	if reg == nil {
		reg = backend.NewRegistry()
	}
	return NewInProcess(fsops.NewRealFS(), reg, selfResolver{}, opts, zerolog.Nop())
}

func writeFile(t *testing.T, path, content string, mode os.FileMode) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := os.Chmod(path, mode); err != nil {
		t.Fatalf("Chmod failed: %v", err)
	}
}

func TestInProcess_SetMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "foo")
	writeFile(t, path, "x", 0o644)

	report, err := newInProcess(nil, Options{}).ApplyFs(context.Background(), []instr.FsInstruction{
		fsIns(path, instr.SetMode(0o600)),
	})
	if err != nil {
		t.Fatalf("ApplyFs failed: %v", err)
	}
	if s := report.Summary(); s.Succeeded != 1 || s.Total() != 1 {
		t.Errorf("summary = %+v, want 1 succeeded", s)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestInProcess_CreateAndRemove(t *testing.T) {
	root := t.TempDir()
	old := filepath.Join(root, "old")
	if err := os.MkdirAll(filepath.Join(old, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(old, "sub", "f"), "x", 0o644)

	dir := filepath.Join(root, "new")
	file := filepath.Join(dir, "conf")
	link := filepath.Join(root, "link")
	fifo := filepath.Join(root, "fifo")

	instrs := []instr.FsInstruction{
		fsIns(old, instr.Remove()),
		fsIns(filepath.Join(old, "sub"), instr.Remove()),
		fsIns(filepath.Join(old, "sub", "f"), instr.Remove()),
		fsIns(dir, instr.CreateDirectory()),
		fsIns(file, instr.CreateFile(instr.FromLiteral([]byte("hello\n")))),
		fsIns(file, instr.SetMode(0o640)),
		fsIns(file, instr.SetOwner("anyone")),
		fsIns(file, instr.SetGroup("anyone")),
		fsIns(link, instr.CreateSymlink("new/conf")),
		fsIns(fifo, instr.CreateFifo()),
		fsIns(fifo, instr.Comment()),
	}
	instr.SortFs(instrs)

	report, err := newInProcess(nil, Options{}).ApplyFs(context.Background(), instrs)
	if err != nil {
		t.Fatalf("ApplyFs failed: %v", err)
	}
	if f := report.Failures(); len(f) != 0 {
		t.Fatalf("unexpected failures: %+v", f)
	}

	if _, err := os.Lstat(old); !os.IsNotExist(err) {
		t.Errorf("old tree still present: %v", err)
	}
	data, err := os.ReadFile(file)
	if err != nil || string(data) != "hello\n" {
		t.Errorf("file = %q, %v", data, err)
	}
	if target, err := os.Readlink(link); err != nil || target != "new/conf" {
		t.Errorf("link = %q, %v", target, err)
	}
	if info, err := os.Lstat(fifo); err != nil || info.Mode()&os.ModeNamedPipe == 0 {
		t.Errorf("fifo not created: %v", err)
	}
}

func TestInProcess_FailureIsolation(t *testing.T) {
	root := t.TempDir()
	good := filepath.Join(root, "good")

	report, err := newInProcess(nil, Options{}).ApplyFs(context.Background(), []instr.FsInstruction{
		fsIns(filepath.Join(root, "missing"), instr.SetMode(0o600)),
		fsIns(good, instr.CreateFile(instr.FromLiteral([]byte("ok")))),
		fsIns("relative", instr.CreateDirectory()),
	})
	if err != nil {
		t.Fatalf("ApplyFs failed: %v", err)
	}
	s := report.Summary()
	if s.Succeeded != 1 || s.Failed != 2 {
		t.Errorf("summary = %+v, want 1 succeeded and 2 failed", s)
	}
	if _, err := os.Stat(good); err != nil {
		t.Errorf("good file not written: %v", err)
	}
}

func TestInProcess_CreateFileReplacesSymlink(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "target")
	writeFile(t, target, "keep", 0o644)
	path := filepath.Join(root, "conf")
	if err := os.Symlink(target, path); err != nil {
		t.Fatal(err)
	}

	report, _ := newInProcess(nil, Options{}).ApplyFs(context.Background(), []instr.FsInstruction{
		fsIns(path, instr.CreateFile(instr.FromLiteral([]byte("new")))),
	})
	if report.Summary().Failed != 0 {
		t.Fatalf("failures: %+v", report.Failures())
	}
	if data, _ := os.ReadFile(target); string(data) != "keep" {
		t.Errorf("write followed the symlink, target = %q", data)
	}
	if info, _ := os.Lstat(path); !info.Mode().IsRegular() {
		t.Errorf("path is %v, want regular file", info.Mode())
	}
}

func TestInProcess_CreateSymlinkReplaces(t *testing.T) {
	root := t.TempDir()
	right := filepath.Join(root, "right")
	stale := filepath.Join(root, "stale")
	file := filepath.Join(root, "file")
	dir := filepath.Join(root, "dir")
	for link, target := range map[string]string{right: "target", stale: "elsewhere"} {
		if err := os.Symlink(target, link); err != nil {
			t.Fatal(err)
		}
	}
	writeFile(t, file, "x", 0o644)
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{name: "already correct", path: right},
		{name: "stale target", path: stale},
		{name: "regular file", path: file},
		{name: "directory", path: dir, wantErr: ErrWrongType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := newInProcess(nil, Options{}).ApplyFs(context.Background(), []instr.FsInstruction{
				fsIns(tt.path, instr.CreateSymlink("target")),
			})
			if err != nil {
				t.Fatalf("ApplyFs failed: %v", err)
			}
			failures := report.Failures()
			if tt.wantErr != nil {
				if len(failures) != 1 || !errors.Is(failures[0].Err, tt.wantErr) {
					t.Errorf("failures = %+v, want %v", failures, tt.wantErr)
				}
				return
			}
			if len(failures) != 0 {
				t.Fatalf("unexpected failures: %+v", failures)
			}
			if got, err := os.Readlink(tt.path); err != nil || got != "target" {
				t.Errorf("Readlink = %q, %v, want target", got, err)
			}
		})
	}
}

func TestInProcess_SetModeOnSymlink(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "link")
	if err := os.Symlink("/nonexistent", path); err != nil {
		t.Fatal(err)
	}

	report, _ := newInProcess(nil, Options{}).ApplyFs(context.Background(), []instr.FsInstruction{
		fsIns(path, instr.SetMode(0o600)),
	})
	failures := report.Failures()
	if len(failures) != 1 || !errors.Is(failures[0].Err, ErrSymlinkMode) {
		t.Errorf("failures = %+v, want ErrSymlinkMode", failures)
	}
}

func TestInProcess_Restore(t *testing.T) {
	root := t.TempDir()
	owned := filepath.Join(root, "owned")
	orphan := filepath.Join(root, "orphan")
	writeFile(t, owned, "modified", 0o644)

	pacman := backendtest.New("pacman")
	pacman.FileList = []backendtest.File{{Path: owned, Package: "filesystem", Original: []byte("pristine")}}

	report, err := newInProcess(newRegistry(t, pacman), Options{}).ApplyFs(context.Background(), []instr.FsInstruction{
		fsIns(orphan, instr.Restore()),
		fsIns(owned, instr.Restore()),
	})
	if err != nil {
		t.Fatalf("ApplyFs failed: %v", err)
	}

	if data, _ := os.ReadFile(owned); string(data) != "pristine" {
		t.Errorf("owned = %q, want pristine", data)
	}
	failures := report.Failures()
	if len(failures) != 1 || failures[0].Subject != orphan || !errors.Is(failures[0].Err, ErrNoOwner) {
		t.Errorf("failures = %+v, want ErrNoOwner for orphan", failures)
	}
}

func TestInProcess_Packages(t *testing.T) {
	pacman := backendtest.New("pacman")
	pacman.Installed["nano"] = true
	apt := backendtest.New("apt")
	apt.TransactErr = errors.New("dpkg lock held")

	a := newInProcess(newRegistry(t, pacman, apt), Options{RemoveUnused: true})
	report, err := a.ApplyPkgs(context.Background(), []instr.PkgEntry{
		pkgEntry("pacman", "git", instr.Install),
		pkgEntry("pacman", "nano", instr.Uninstall),
		pkgEntry("apt", "vim", instr.Install),
	})
	if err != nil {
		t.Fatalf("ApplyPkgs failed: %v", err)
	}

	want := []backendtest.Call{
		{Method: "Transact", Args: [][]string{{"git"}, {"nano"}}},
		{Method: "Mark", Args: [][]string{nil, {"git"}}},
		{Method: "RemoveUnused"},
	}
	if got := pacman.Calls(); !reflect.DeepEqual(got, want) {
		t.Errorf("pacman calls = %+v, want %+v", got, want)
	}
	if calls := apt.Calls(); len(calls) != 1 {
		t.Errorf("apt calls = %+v, want only the failed Transact", calls)
	}

	s := report.Summary()
	if s.Succeeded != 3 || s.Failed != 1 {
		t.Errorf("summary = %+v, want 3 succeeded and 1 failed", s)
	}
	if f := report.Failures(); len(f) != 1 || f[0].Subject != "apt:vim" {
		t.Errorf("failures = %+v, want apt:vim", f)
	}
}

func TestInProcess_UnknownBackend(t *testing.T) {
	report, err := newInProcess(nil, Options{}).ApplyPkgs(context.Background(), []instr.PkgEntry{
		pkgEntry("zypper", "vim", instr.Install),
	})
	if err != nil {
		t.Fatalf("ApplyPkgs failed: %v", err)
	}
	if f := report.Failures(); len(f) != 1 || !errors.Is(f[0].Err, backend.ErrUnknownBackend) {
		t.Errorf("failures = %+v, want ErrUnknownBackend", f)
	}
}

func TestInProcess_EmptyDiffMutatesNothing(t *testing.T) {
	pacman := backendtest.New("pacman")
	a := newInProcess(newRegistry(t, pacman), Options{RemoveUnused: true})

	pkgs, err := a.ApplyPkgs(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	fs, err := a.ApplyFs(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if pkgs.Summary().Total() != 0 || fs.Summary().Total() != 0 {
		t.Errorf("expected empty reports")
	}
	if calls := pacman.Calls(); len(calls) != 0 {
		t.Errorf("backend called for empty diff: %+v", calls)
	}
}

func TestNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "foo")
	writeFile(t, path, "x", 0o644)
	noop := NewNoop(zerolog.Nop())

	fs, err := noop.ApplyFs(context.Background(), []instr.FsInstruction{
		fsIns(path, instr.SetMode(0o600)),
		fsIns(path, instr.Remove()),
	})
	if err != nil {
		t.Fatal(err)
	}
	pkgs, err := noop.ApplyPkgs(context.Background(), []instr.PkgEntry{pkgEntry("pacman", "zsh", instr.Uninstall)})
	if err != nil {
		t.Fatal(err)
	}

	if s := fs.Summary().Add(pkgs.Summary()); s.Succeeded != 3 || s.Total() != 3 {
		t.Errorf("summary = %+v, want 3 succeeded", s)
	}
	info, err := os.Stat(path)
	if err != nil || info.Mode().Perm() != 0o644 {
		t.Errorf("noop changed the file: %v %v", info, err)
	}
}

func TestOrderFs(t *testing.T) {
	in := []instr.FsInstruction{
		fsIns("/a", instr.Remove()),
		fsIns("/a/b", instr.Remove()),
		fsIns("/b", instr.CreateDirectory()),
		fsIns("/b", instr.SetMode(0o700)),
		fsIns("/b/c", instr.CreateFile(instr.FromLiteral(nil))),
		fsIns("/c", instr.Remove()),
	}
	want := []string{"/c remove", "/a/b remove", "/a remove", "/b mkdir", "/b chmod", "/b/c write"}

	got := OrderFs(in)
	if len(got) != len(want) {
		t.Fatalf("got %d instructions, want %d", len(got), len(want))
	}
	for i, ins := range got {
		if s := ins.Path + " " + ins.Op.Kind.String(); s != want[i] {
			t.Errorf("[%d] = %s, want %s", i, s, want[i])
		}
	}
	if in[0].Path != "/a" {
		t.Errorf("OrderFs modified its input")
	}
}
