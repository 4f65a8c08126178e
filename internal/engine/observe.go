package engine

import (
	"errors"
	"io/fs"
	"slices"
	"strconv"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/danieljhkim/hostconf/internal/instr"
	"github.com/danieljhkim/hostconf/internal/scan"
)

// observe describes the live state of every path the desired state manages,
// limited to the aspects the desired state sets. The result lets the merge
// see desired entries that already hold as equal.
func (e *Engine) observe(want []instr.FsInstruction) []instr.FsInstruction {
	classes := make(map[string]map[instr.OpClass]bool)
	var paths []string
	for _, ins := range want {
		if classes[ins.Path] == nil {
			classes[ins.Path] = make(map[instr.OpClass]bool)
			paths = append(paths, ins.Path)
		}
		classes[ins.Path][ins.Op.Kind.Class()] = true
	}

	var out []instr.FsInstruction
	for _, path := range paths {
		out = append(out, e.observePath(path, classes[path])...)
	}
	return out
}

// normalize spells desired owners and groups the way observe reports them,
// so that "0" and "root" name the same owner. Names that do not resolve are
// kept as written.
func (e *Engine) normalize(want []instr.FsInstruction) []instr.FsInstruction {
	out := slices.Clone(want)
	for i, ins := range out {
		switch ins.Op.Kind {
		case instr.OpSetOwner:
			if uid, err := e.resolver.UID(ins.Op.Owner); err == nil {
				out[i].Op = instr.SetOwner(e.userName(uid))
			}
		case instr.OpSetGroup:
			if gid, err := e.resolver.GID(ins.Op.Group); err == nil {
				out[i].Op = instr.SetGroup(e.groupName(gid))
			}
		}
	}
	instr.SortFs(out)
	return out
}

func (e *Engine) observePath(path string, classes map[instr.OpClass]bool) []instr.FsInstruction {
	fact := func(op instr.FsOp) instr.FsInstruction {
		return instr.FsInstruction{Path: path, Op: op, Comment: "current"}
	}

	info, err := e.fs.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		if classes[instr.ClassRemove] {
			return []instr.FsInstruction{fact(instr.Remove())}
		}
		return nil
	}
	if err != nil {
		e.log.Debug().Err(err).Str("path", path).Msg("cannot observe path")
		return nil
	}

	var out []instr.FsInstruction
	if classes[instr.ClassContent] {
		if op, ok := e.content(path, info); ok {
			out = append(out, fact(op))
		}
	}
	if classes[instr.ClassMode] && info.Mode()&fs.ModeSymlink == 0 {
		out = append(out, fact(instr.SetMode(scan.ModeOf(info.Mode()))))
	}
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		if classes[instr.ClassOwner] {
			out = append(out, fact(instr.SetOwner(e.userName(st.Uid))))
		}
		if classes[instr.ClassGroup] {
			out = append(out, fact(instr.SetGroup(e.groupName(st.Gid))))
		}
	}
	return out
}

func (e *Engine) content(path string, info fs.FileInfo) (instr.FsOp, bool) {
	mode := info.Mode()
	switch {
	case mode.IsRegular():
		c, err := instr.FromFile(path)
		if err != nil {
			e.log.Debug().Err(err).Str("path", path).Msg("cannot read contents")
			return instr.FsOp{}, false
		}
		return instr.CreateFile(c), true
	case mode.IsDir():
		return instr.CreateDirectory(), true
	case mode&fs.ModeSymlink != 0:
		target, err := e.fs.Readlink(path)
		if err != nil {
			return instr.FsOp{}, false
		}
		return instr.CreateSymlink(target), true
	case mode&fs.ModeNamedPipe != 0:
		return instr.CreateFifo(), true
	case mode&fs.ModeDevice != 0:
		st, ok := info.Sys().(*syscall.Stat_t)
		if !ok {
			return instr.FsOp{}, false
		}
		dev := uint64(st.Rdev)
		if mode&fs.ModeCharDevice != 0 {
			return instr.CreateCharDevice(unix.Major(dev), unix.Minor(dev)), true
		}
		return instr.CreateBlockDevice(unix.Major(dev), unix.Minor(dev)), true
	}
	return instr.FsOp{}, false
}

func (e *Engine) userName(uid uint32) string {
	if name, err := e.resolver.UserName(uid); err == nil {
		return name
	}
	return strconv.FormatUint(uint64(uid), 10)
}

func (e *Engine) groupName(gid uint32) string {
	if name, err := e.resolver.GroupName(gid); err == nil {
		return name
	}
	return strconv.FormatUint(uint64(gid), 10)
}
