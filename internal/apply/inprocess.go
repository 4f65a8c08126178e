package apply

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"

	"github.com/rs/zerolog"

	"github.com/danieljhkim/hostconf/internal/backend"
	"github.com/danieljhkim/hostconf/internal/fsops"
	"github.com/danieljhkim/hostconf/internal/ids"
	"github.com/danieljhkim/hostconf/internal/instr"
)

const (
	defaultFileMode = 0o644
	defaultDirMode  = 0o755
)

// Options tune the InProcess applicator.
type Options struct {
	// RemoveUnused removes orphaned dependencies after each package batch.
	RemoveUnused bool

	// ConfirmPackages lets the package manager ask before transacting.
	ConfirmPackages bool
}

// InProcess performs instructions directly against the host.
type InProcess struct {
	fs       fsops.FS
	backends *backend.Registry
	resolver ids.Resolver
	opts     Options
	log      zerolog.Logger
}

func NewInProcess(fsys fsops.FS, backends *backend.Registry, resolver ids.Resolver, opts Options, log zerolog.Logger) *InProcess {
	return &InProcess{
		fs:       fsys,
		backends: backends,
		resolver: resolver,
		opts:     opts,
		log:      log,
	}
}

// ApplyPkgs runs one transaction per package manager. A failing batch fails
// only its own entries.
func (a *InProcess) ApplyPkgs(ctx context.Context, entries []instr.PkgEntry) (*Report, error) {
	report := NewReport()
	for _, batch := range batches(entries) {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		a.applyBatch(ctx, batch, report)
	}
	return report, nil
}

func (a *InProcess) applyBatch(ctx context.Context, batch []instr.PkgEntry, report *Report) {
	name := batch[0].Ident.PackageManager
	fail := func(err error) {
		a.log.Error().Err(err).Str("backend", name).Msg("package transaction failed")
		for _, e := range batch {
			report.pkg(e, Failed, err)
		}
	}

	b, err := a.backends.Get(name)
	if err != nil {
		fail(err)
		return
	}

	var install, uninstall []string
	for _, e := range batch {
		switch e.Instruction.Op {
		case instr.Install:
			install = append(install, e.Ident.Identifier)
		case instr.Uninstall:
			uninstall = append(uninstall, e.Ident.Identifier)
		}
	}

	a.log.Info().Str("backend", name).Strs("install", install).Strs("uninstall", uninstall).Msg("transacting")
	if err := b.Transact(ctx, install, uninstall, a.opts.ConfirmPackages); err != nil {
		fail(fmt.Errorf("transact with %s: %w", name, err))
		return
	}
	if len(install) > 0 {
		if err := b.Mark(ctx, nil, install); err != nil {
			fail(fmt.Errorf("mark explicit with %s: %w", name, err))
			return
		}
	}
	for _, e := range batch {
		report.pkg(e, Succeeded, nil)
	}

	if a.opts.RemoveUnused {
		err := b.RemoveUnused(ctx, a.opts.ConfirmPackages)
		switch {
		case errors.Is(err, backend.ErrUnsupported):
			a.log.Debug().Str("backend", name).Msg("removing unused packages not supported")
		case err != nil:
			a.log.Error().Err(err).Str("backend", name).Msg("removing unused packages failed")
			report.add(Outcome{Subject: name, Instruction: "remove unused", Status: Failed, Err: err})
		default:
			report.add(Outcome{Subject: name, Instruction: "remove unused", Status: Succeeded})
		}
	}
}

// ApplyFs performs the instructions in execution order. Each failure is
// recorded and does not stop the remaining instructions.
func (a *InProcess) ApplyFs(ctx context.Context, instrs []instr.FsInstruction) (*Report, error) {
	report := NewReport()
	ordered := OrderFs(instrs)
	originals := a.fetchOriginals(ctx, ordered)

	for _, ins := range ordered {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		err := a.applyOne(ins, originals)
		if err != nil {
			err = fmt.Errorf("%s %s: %w", ins.Op, ins.Path, err)
			a.log.Error().Err(err).Msg("instruction failed")
			report.fs(ins, Failed, err)
			continue
		}
		a.log.Debug().Str("path", ins.Path).Str("op", ins.Op.String()).Msg("applied")
		report.fs(ins, Succeeded, nil)
	}
	return report, nil
}

type original struct {
	data []byte
	err  error
}

// fetchOriginals asks the backends for the pristine contents of every path
// that must be restored. Backends are asked in name order and the first
// owner wins.
func (a *InProcess) fetchOriginals(ctx context.Context, instrs []instr.FsInstruction) map[string]original {
	var pending []string
	for _, ins := range instrs {
		if ins.Op.Kind == instr.OpRestore {
			pending = append(pending, ins.Path)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	out := make(map[string]original, len(pending))
	for _, name := range a.backends.Names() {
		if len(pending) == 0 {
			break
		}
		b, err := a.backends.Get(name)
		if err != nil {
			continue
		}
		owners, err := b.OwningPackages(ctx, pending)
		if err != nil {
			a.log.Warn().Err(err).Str("backend", name).Msg("looking up owners failed")
			continue
		}
		if len(owners) == 0 {
			continue
		}

		queries := make([]backend.OriginalFileQuery, 0, len(owners))
		for path, pkg := range owners {
			queries = append(queries, backend.OriginalFileQuery{Package: pkg, Path: path})
		}
		slices.SortFunc(queries, func(x, y backend.OriginalFileQuery) int {
			return strings.Compare(x.Path, y.Path)
		})

		contents, err := b.OriginalFiles(ctx, queries)
		for _, q := range queries {
			switch {
			case err != nil:
				out[q.Path] = original{err: fmt.Errorf("fetch from %s: %w", name, err)}
			case contents[q.Path] == nil:
				out[q.Path] = original{err: fmt.Errorf("%w in %s package %s", ErrNoOriginal, name, q.Package)}
			default:
				out[q.Path] = original{data: contents[q.Path]}
			}
		}
		pending = slices.DeleteFunc(pending, func(p string) bool {
			_, owned := owners[p]
			return owned
		})
	}
	for _, p := range pending {
		out[p] = original{err: ErrNoOwner}
	}
	return out
}

func (a *InProcess) applyOne(ins instr.FsInstruction, originals map[string]original) error {
	path := ins.Path
	if err := a.fs.ValidateAbsPath(path); err != nil {
		return err
	}

	switch op := ins.Op; op.Kind {
	case instr.OpRemove:
		if err := a.fs.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil

	case instr.OpRestore:
		orig, ok := originals[path]
		if !ok {
			return ErrNoOwner
		}
		if orig.err != nil {
			return orig.err
		}
		if err := a.clearForFile(path); err != nil {
			return err
		}
		return a.fs.WriteFile(path, bytes.NewReader(orig.data), defaultFileMode)

	case instr.OpCreateDirectory:
		return a.fs.Mkdir(path, defaultDirMode)

	case instr.OpCreateFile:
		if err := a.clearForFile(path); err != nil {
			return err
		}
		r, err := op.Contents.Open()
		if err != nil {
			return err
		}
		defer func() { _ = r.Close() }()
		return a.fs.WriteFile(path, r, defaultFileMode)

	case instr.OpCreateSymlink:
		if target, err := a.fs.Readlink(path); err == nil && target == op.Target {
			return nil
		}
		if err := a.clearForLink(path); err != nil {
			return err
		}
		return a.fs.Symlink(op.Target, path)

	case instr.OpCreateFifo:
		if same, err := a.existsAs(path, fs.ModeNamedPipe); err != nil || same {
			return err
		}
		return a.fs.Mkfifo(path, defaultFileMode)

	case instr.OpCreateBlockDevice:
		if same, err := a.existsAs(path, fs.ModeDevice); err != nil || same {
			return err
		}
		return a.fs.Mknod(path, fsops.BlockDevice, defaultFileMode, op.Major, op.Minor)

	case instr.OpCreateCharDevice:
		if same, err := a.existsAs(path, fs.ModeDevice|fs.ModeCharDevice); err != nil || same {
			return err
		}
		return a.fs.Mknod(path, fsops.CharDevice, defaultFileMode, op.Major, op.Minor)

	case instr.OpSetMode:
		info, err := a.fs.Lstat(path)
		if err != nil {
			return err
		}
		if info.Mode()&fs.ModeSymlink != 0 {
			return ErrSymlinkMode
		}
		return a.fs.Chmod(path, os.FileMode(op.Mode))

	case instr.OpSetOwner:
		uid, err := a.resolver.UID(op.Owner)
		if err != nil {
			return err
		}
		return a.fs.Lchown(path, int(uid), fsops.NoID)

	case instr.OpSetGroup:
		gid, err := a.resolver.GID(op.Group)
		if err != nil {
			return err
		}
		return a.fs.Lchown(path, fsops.NoID, int(gid))

	case instr.OpComment:
		return nil
	}
	return fmt.Errorf("unknown operation %s", ins.Op)
}

// clearForFile removes a symlink or special file at path so that a write
// replaces it instead of following it. Regular files are kept so that hard
// links stay intact.
func (a *InProcess) clearForFile(path string) error {
	info, err := a.fs.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	switch {
	case info.Mode().IsRegular():
		return nil
	case info.IsDir():
		return fmt.Errorf("%w: directory", ErrWrongType)
	default:
		return a.fs.Remove(path)
	}
}

// clearForLink removes whatever is at path except a directory.
func (a *InProcess) clearForLink(path string) error {
	info, err := a.fs.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%w: directory", ErrWrongType)
	}
	return a.fs.Remove(path)
}

// existsAs reports whether path already exists with the given type bits.
func (a *InProcess) existsAs(path string, typ fs.FileMode) (bool, error) {
	info, err := a.fs.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if info.Mode().Type() == typ {
		return true, nil
	}
	return false, fmt.Errorf("%w: %s", ErrWrongType, info.Mode().Type())
}
