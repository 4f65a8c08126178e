package engine

import (
	"github.com/danieljhkim/hostconf/internal/backend"
	"github.com/danieljhkim/hostconf/internal/instr"
	"github.com/danieljhkim/hostconf/internal/issue"
)

const restoredComment = "as recorded by package"

// fromRecord rewrites Restore instructions using what the package database
// recorded about each path. Directories, symlinks and fifos are recreated
// rather than fetched from the package. A path that is gone, or has the
// wrong type, also gets its recorded mode, owner and group back.
func (e *Engine) fromRecord(converted []instr.FsInstruction, files []backend.FileEntry, issues []issue.Issue) []instr.FsInstruction {
	recorded := make(map[string]backend.Properties, len(files))
	for _, f := range files {
		recorded[f.Path] = f.Properties
	}

	recreated := make(map[string]bool)
	for _, is := range issues {
		for _, k := range is.Kinds {
			if k.Tag == issue.Missing || k.Tag == issue.TypeIncorrect {
				recreated[is.Path] = true
			}
		}
	}

	taken := make(map[instr.FsKey]bool, len(converted))
	for _, ins := range converted {
		taken[ins.Key()] = true
	}

	out := make([]instr.FsInstruction, 0, len(converted))
	var extra []instr.FsInstruction
	for _, ins := range converted {
		props, ok := recorded[ins.Path]
		if ins.Op.Kind != instr.OpRestore || !ok {
			out = append(out, ins)
			continue
		}
		if op, ok := recreate(props); ok {
			ins.Op = op
		}
		out = append(out, ins)

		if !recreated[ins.Path] {
			continue
		}
		for _, op := range e.metadata(props) {
			meta := instr.FsInstruction{Path: ins.Path, Op: op, Comment: restoredComment}
			if !taken[meta.Key()] {
				taken[meta.Key()] = true
				extra = append(extra, meta)
			}
		}
	}
	return append(out, extra...)
}

// recreate returns the op that rebuilds an object of the recorded kind
// without the package's help.
func recreate(props backend.Properties) (instr.FsOp, bool) {
	switch props.Kind {
	case backend.KindDirectory:
		return instr.CreateDirectory(), true
	case backend.KindSymlink:
		if props.Target != "" {
			return instr.CreateSymlink(props.Target), true
		}
	case backend.KindFifo:
		return instr.CreateFifo(), true
	}
	return instr.FsOp{}, false
}

func (e *Engine) metadata(props backend.Properties) []instr.FsOp {
	var ops []instr.FsOp
	if props.HasMode && props.Kind != backend.KindSymlink {
		ops = append(ops, instr.SetMode(props.Mode))
	}
	if props.HasUID {
		ops = append(ops, instr.SetOwner(e.userName(props.UID)))
	}
	if props.HasGID {
		ops = append(ops, instr.SetGroup(e.groupName(props.GID)))
	}
	return ops
}
