// Package command implements a backend that drives a package manager through
// its command line tools.
package command

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path"
	"slices"
	"strings"

	"github.com/danieljhkim/hostconf/internal/backend"
	"github.com/danieljhkim/hostconf/internal/intern"
)

// Commands holds the argv templates for each backend capability. An empty
// template makes the capability unsupported.
type Commands struct {
	// Files prints one "package path" pair per line. Paths ending in "/"
	// are directories.
	Files []string `yaml:"files" toml:"files"`

	// Packages prints one "name version" pair per line for every installed
	// package.
	Packages []string `yaml:"packages" toml:"packages"`

	// Explicit prints the names of explicitly installed packages, one per
	// line.
	Explicit []string `yaml:"explicit" toml:"explicit"`

	// Owner is run with the path appended and prints the owning package.
	// Output of the form "name: /path" is accepted.
	Owner []string `yaml:"owner" toml:"owner"`

	// Original prints the shipped contents of a file. The placeholders
	// {package} and {path} are substituted.
	Original []string `yaml:"original" toml:"original"`

	// Install and Uninstall are run with package names appended.
	Install   []string `yaml:"install" toml:"install"`
	Uninstall []string `yaml:"uninstall" toml:"uninstall"`

	// MarkDependency and MarkExplicit are run with package names appended.
	MarkDependency []string `yaml:"mark_dependency" toml:"mark_dependency"`
	MarkExplicit   []string `yaml:"mark_explicit" toml:"mark_explicit"`

	// ListUnused prints orphaned packages, which are then passed to
	// Uninstall. RemoveUnused is used instead when set.
	ListUnused   []string `yaml:"list_unused" toml:"list_unused"`
	RemoveUnused []string `yaml:"remove_unused" toml:"remove_unused"`

	// NoConfirm is appended to mutating commands when the user is not to be
	// asked.
	NoConfirm []string `yaml:"no_confirm" toml:"no_confirm"`
}

// Pacman returns the commands for Arch Linux's pacman.
func Pacman() Commands {
	return Commands{
		Files:          []string{"pacman", "-Ql"},
		Packages:       []string{"pacman", "-Q"},
		Explicit:       []string{"pacman", "-Qqe"},
		Owner:          []string{"pacman", "-Qqo"},
		Install:        []string{"pacman", "-S", "--needed"},
		Uninstall:      []string{"pacman", "-Rs"},
		MarkDependency: []string{"pacman", "-D", "--asdeps"},
		MarkExplicit:   []string{"pacman", "-D", "--asexplicit"},
		ListUnused:     []string{"pacman", "-Qdtq"},
		NoConfirm:      []string{"--noconfirm"},
	}
}

// Apt returns the commands for Debian's dpkg and apt.
func Apt() Commands {
	return Commands{
		Files: []string{"sh", "-c",
			`for l in /var/lib/dpkg/info/*.list; do p=$(basename "$l" .list); p=${p%%:*}; sed "s|^|$p |" "$l"; done`},
		Packages:       []string{"dpkg-query", "-W", "-f=${Package} ${Version}\n"},
		Explicit:       []string{"apt-mark", "showmanual"},
		Owner:          []string{"dpkg-query", "-S"},
		Install:        []string{"apt-get", "install"},
		Uninstall:      []string{"apt-get", "remove"},
		MarkDependency: []string{"apt-mark", "auto"},
		MarkExplicit:   []string{"apt-mark", "manual"},
		RemoveUnused:   []string{"apt-get", "autoremove"},
		NoConfirm:      []string{"-y"},
	}
}

// Preset returns the named built-in command set.
func Preset(name string) (Commands, bool) {
	switch name {
	case "pacman":
		return Pacman(), true
	case "apt":
		return Apt(), true
	}
	return Commands{}, false
}

// Runner executes argv. Interactive commands are attached to the process's
// terminal and their output is not captured.
type Runner interface {
	Run(ctx context.Context, argv []string, interactive bool) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, argv []string, interactive bool) ([]byte, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if interactive {
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Run(); err != nil {
			return nil, fmt.Errorf("%s failed: %w", argv[0], err)
		}
		return nil, nil
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w: %s", argv[0], err, strings.TrimSpace(stderr.String()))
	}
	return output, nil
}

// Backend is a backend.Backend driven by Commands.
type Backend struct {
	name   string
	cmds   Commands
	runner Runner
}

// New returns a backend called name. A nil runner means ExecRunner.
func New(name string, cmds Commands, runner Runner) *Backend {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Backend{name: name, cmds: cmds, runner: runner}
}

func (b *Backend) Name() string { return b.name }

func (b *Backend) Files(ctx context.Context, in *intern.Interner) ([]backend.FileEntry, error) {
	out, err := b.query(ctx, b.cmds.Files)
	if err != nil {
		return nil, err
	}

	var entries []backend.FileEntry
	err = eachLine(out, func(line string) error {
		pkg, p, ok := strings.Cut(line, " ")
		if !ok || !strings.HasPrefix(p, "/") {
			return fmt.Errorf("malformed file line %q", line)
		}
		props := backend.UnknownProperties()
		if len(p) > 1 && strings.HasSuffix(p, "/") {
			props.Kind = backend.KindDirectory
		}
		p = path.Clean(p)
		if p == "/" {
			return nil
		}
		entries = append(entries, backend.FileEntry{Path: p, Package: in.Intern(pkg), Properties: props})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.name, err)
	}
	return entries, nil
}

func (b *Backend) Packages(ctx context.Context, in *intern.Interner) ([]backend.Package, error) {
	out, err := b.query(ctx, b.cmds.Packages)
	if err != nil {
		return nil, err
	}

	explicit := make(map[string]bool)
	if len(b.cmds.Explicit) > 0 {
		names, err := b.query(ctx, b.cmds.Explicit)
		if err != nil {
			return nil, err
		}
		err = eachLine(names, func(line string) error {
			explicit[strings.Fields(line)[0]] = true
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("%s: explicit packages: %w", b.name, err)
		}
	}

	var pkgs []backend.Package
	err = eachLine(out, func(line string) error {
		name, version, _ := strings.Cut(line, " ")
		pkgs = append(pkgs, backend.Package{
			Name:     in.Intern(name),
			Version:  strings.TrimSpace(version),
			Explicit: explicit[name],
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: packages: %w", b.name, err)
	}
	return pkgs, nil
}

func (b *Backend) OwningPackages(ctx context.Context, paths []string) (map[string]string, error) {
	if len(b.cmds.Owner) == 0 {
		return nil, fmt.Errorf("%s: owner lookup: %w", b.name, backend.ErrUnsupported)
	}

	owners := make(map[string]string, len(paths))
	for _, p := range paths {
		out, err := b.runner.Run(ctx, slices.Concat(b.cmds.Owner, []string{p}), false)
		if err != nil {
			// Query tools exit non-zero for unowned paths.
			continue
		}
		first, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
		fields := strings.Fields(first)
		if len(fields) == 0 {
			continue
		}
		// dpkg-query -S prints "name: /path", possibly "name:arch: /path".
		name, _, _ := strings.Cut(strings.TrimSuffix(fields[0], ":"), ":")
		owners[p] = name
	}
	return owners, nil
}

func (b *Backend) OriginalFiles(ctx context.Context, queries []backend.OriginalFileQuery) (map[string][]byte, error) {
	if len(b.cmds.Original) == 0 {
		return nil, fmt.Errorf("%s: original files: %w", b.name, backend.ErrUnsupported)
	}

	files := make(map[string][]byte, len(queries))
	for _, q := range queries {
		argv := make([]string, len(b.cmds.Original))
		for i, arg := range b.cmds.Original {
			arg = strings.ReplaceAll(arg, "{package}", q.Package)
			argv[i] = strings.ReplaceAll(arg, "{path}", q.Path)
		}
		out, err := b.runner.Run(ctx, argv, false)
		if err != nil {
			return nil, fmt.Errorf("%s: original of %s from %s: %w", b.name, q.Path, q.Package, err)
		}
		files[q.Path] = out
	}
	return files, nil
}

func (b *Backend) Transact(ctx context.Context, install, uninstall []string, confirm bool) error {
	if len(install) > 0 {
		if err := b.mutate(ctx, "install", b.cmds.Install, install, confirm); err != nil {
			return err
		}
	}
	if len(uninstall) > 0 {
		if err := b.mutate(ctx, "uninstall", b.cmds.Uninstall, uninstall, confirm); err != nil {
			return err
		}
	}
	return nil
}

func (b *Backend) Mark(ctx context.Context, deps, manual []string) error {
	if len(deps) > 0 {
		if err := b.run(ctx, "mark dependency", slices.Concat(b.cmds.MarkDependency, deps), false); err != nil {
			return err
		}
	}
	if len(manual) > 0 {
		if err := b.run(ctx, "mark explicit", slices.Concat(b.cmds.MarkExplicit, manual), false); err != nil {
			return err
		}
	}
	return nil
}

func (b *Backend) RemoveUnused(ctx context.Context, confirm bool) error {
	if len(b.cmds.RemoveUnused) > 0 {
		return b.mutate(ctx, "remove unused", b.cmds.RemoveUnused, nil, confirm)
	}
	if len(b.cmds.ListUnused) == 0 {
		return fmt.Errorf("%s: remove unused: %w", b.name, backend.ErrUnsupported)
	}

	// Removing orphans can orphan more packages.
	for {
		out, err := b.runner.Run(ctx, b.cmds.ListUnused, false)
		if err != nil {
			// pacman -Qdtq exits 1 when there is nothing to list.
			if exitCode(err) == 1 {
				return nil
			}
			return fmt.Errorf("%s: list unused: %w", b.name, err)
		}
		var unused []string
		err = eachLine(out, func(line string) error {
			unused = append(unused, line)
			return nil
		})
		if err != nil {
			return fmt.Errorf("%s: list unused: %w", b.name, err)
		}
		if len(unused) == 0 {
			return nil
		}
		if err := b.mutate(ctx, "remove unused", b.cmds.Uninstall, unused, confirm); err != nil {
			return err
		}
	}
}

func (b *Backend) query(ctx context.Context, argv []string) ([]byte, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("%s: %w", b.name, backend.ErrUnsupported)
	}
	out, err := b.runner.Run(ctx, argv, false)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.name, err)
	}
	return out, nil
}

// mutate runs a command that may ask the user. Without confirm the
// NoConfirm arguments go before the package names.
func (b *Backend) mutate(ctx context.Context, what string, argv, pkgs []string, confirm bool) error {
	if confirm {
		return b.run(ctx, what, slices.Concat(argv, pkgs), true)
	}
	return b.run(ctx, what, slices.Concat(argv, b.cmds.NoConfirm, pkgs), false)
}

func (b *Backend) run(ctx context.Context, what string, argv []string, interactive bool) error {
	if len(argv) == 0 {
		return fmt.Errorf("%s: %s: %w", b.name, what, backend.ErrUnsupported)
	}
	if _, err := b.runner.Run(ctx, argv, interactive); err != nil {
		return fmt.Errorf("%s: %s: %w", b.name, what, err)
	}
	return nil
}

// exitCode returns the exit status carried by err, or -1 when the command
// did not run to completion.
func exitCode(err error) int {
	var exit interface{ ExitCode() int }
	if errors.As(err, &exit) {
		return exit.ExitCode()
	}
	return -1
}

func eachLine(data []byte, fn func(string) error) error {
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	return sc.Err()
}
