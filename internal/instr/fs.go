// Package instr defines the canonical instruction model.
//
// Instructions are the comparable units that both the system scan and the
// desired configuration are expressed in. Filesystem instructions are keyed
// by path, package instructions by package identity. Comments attached to
// instructions are metadata only and never take part in comparisons.
package instr

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// FsOpKind tags the variant of an FsOp. The declaration order is the order
// in which ops for the same path are applied.
type FsOpKind uint8

const (
	OpRemove FsOpKind = iota
	OpRestore
	OpCreateDirectory
	OpCreateFile
	OpCreateSymlink
	OpCreateFifo
	OpCreateBlockDevice
	OpCreateCharDevice
	OpSetMode
	OpSetOwner
	OpSetGroup
	OpComment
)

var opKindNames = [...]string{
	OpRemove:            "remove",
	OpRestore:           "restore",
	OpCreateDirectory:   "mkdir",
	OpCreateFile:        "write",
	OpCreateSymlink:     "symlink",
	OpCreateFifo:        "mkfifo",
	OpCreateBlockDevice: "mknod-block",
	OpCreateCharDevice:  "mknod-char",
	OpSetMode:           "chmod",
	OpSetOwner:          "chown",
	OpSetGroup:          "chgrp",
	OpComment:           "comment",
}

func (k FsOpKind) String() string {
	if int(k) < len(opKindNames) {
		return opKindNames[k]
	}
	return fmt.Sprintf("op(%d)", k)
}

// OpClass groups op kinds that describe the same aspect of a path.
// A well-formed instruction sequence has at most one instruction per
// (path, class).
type OpClass uint8

const (
	ClassRemove OpClass = iota
	ClassContent
	ClassMode
	ClassOwner
	ClassGroup
	ClassComment
)

// Class returns the aspect of a path the op kind changes.
func (k FsOpKind) Class() OpClass {
	switch k {
	case OpRemove:
		return ClassRemove
	case OpSetMode:
		return ClassMode
	case OpSetOwner:
		return ClassOwner
	case OpSetGroup:
		return ClassGroup
	case OpComment:
		return ClassComment
	default:
		return ClassContent
	}
}

// IsDestructive reports whether the op deletes the path.
func (k FsOpKind) IsDestructive() bool {
	return k == OpRemove
}

// Mode holds permission bits, including setuid, setgid and sticky.
type Mode uint32

func (m Mode) String() string {
	return fmt.Sprintf("%04o", uint32(m))
}

// FsOp is a single change to a path. Only the payload fields relevant to
// Kind are meaningful; use the constructor functions.
type FsOp struct {
	Kind     FsOpKind
	Contents FileContents
	Target   string
	Major    uint32
	Minor    uint32
	Mode     Mode
	Owner    string
	Group    string
}

func Remove() FsOp { return FsOp{Kind: OpRemove} }
func Restore() FsOp { return FsOp{Kind: OpRestore} }
func CreateDirectory() FsOp { return FsOp{Kind: OpCreateDirectory} }
func CreateFile(c FileContents) FsOp { return FsOp{Kind: OpCreateFile, Contents: c} }
func CreateSymlink(target string) FsOp { return FsOp{Kind: OpCreateSymlink, Target: target} }
func CreateFifo() FsOp { return FsOp{Kind: OpCreateFifo} }
func CreateBlockDevice(major, minor uint32) FsOp {
	return FsOp{Kind: OpCreateBlockDevice, Major: major, Minor: minor}
}
func CreateCharDevice(major, minor uint32) FsOp {
	return FsOp{Kind: OpCreateCharDevice, Major: major, Minor: minor}
}
func SetMode(m Mode) FsOp { return FsOp{Kind: OpSetMode, Mode: m} }
func SetOwner(owner string) FsOp { return FsOp{Kind: OpSetOwner, Owner: owner} }
func SetGroup(group string) FsOp { return FsOp{Kind: OpSetGroup, Group: group} }
func Comment() FsOp { return FsOp{Kind: OpComment} }

// Compare orders ops by kind, then by the payload of that kind.
func (o FsOp) Compare(other FsOp) int {
	if c := cmp.Compare(o.Kind, other.Kind); c != 0 {
		return c
	}
	switch o.Kind {
	case OpCreateFile:
		return o.Contents.Compare(other.Contents)
	case OpCreateSymlink:
		return strings.Compare(o.Target, other.Target)
	case OpCreateBlockDevice, OpCreateCharDevice:
		if c := cmp.Compare(o.Major, other.Major); c != 0 {
			return c
		}
		return cmp.Compare(o.Minor, other.Minor)
	case OpSetMode:
		return cmp.Compare(o.Mode, other.Mode)
	case OpSetOwner:
		return strings.Compare(o.Owner, other.Owner)
	case OpSetGroup:
		return strings.Compare(o.Group, other.Group)
	default:
		return 0
	}
}

// Equal reports whether two ops are the same change.
func (o FsOp) Equal(other FsOp) bool {
	return o.Compare(other) == 0
}

func (o FsOp) String() string {
	switch o.Kind {
	case OpCreateFile:
		return fmt.Sprintf("write (%s)", o.Contents)
	case OpCreateSymlink:
		return fmt.Sprintf("symlink -> %s", o.Target)
	case OpCreateBlockDevice, OpCreateCharDevice:
		return fmt.Sprintf("%s %d:%d", o.Kind, o.Major, o.Minor)
	case OpSetMode:
		return fmt.Sprintf("chmod %s", o.Mode)
	case OpSetOwner:
		return fmt.Sprintf("chown %s", o.Owner)
	case OpSetGroup:
		return fmt.Sprintf("chgrp %s", o.Group)
	default:
		return o.Kind.String()
	}
}

// FsInstruction is one intended change to a path.
type FsInstruction struct {
	Path    string
	Op      FsOp
	Comment string
}

// Compare orders instructions by (path, op). Comment is ignored.
func (i FsInstruction) Compare(other FsInstruction) int {
	if c := strings.Compare(i.Path, other.Path); c != 0 {
		return c
	}
	return i.Op.Compare(other.Op)
}

// Equal reports whether both instructions have the same path and op.
func (i FsInstruction) Equal(other FsInstruction) bool {
	return i.Compare(other) == 0
}

// Key returns the merge key of the instruction.
func (i FsInstruction) Key() FsKey {
	return FsKey{Path: i.Path, Class: i.Op.Kind.Class()}
}

func (i FsInstruction) String() string {
	if i.Comment != "" {
		return fmt.Sprintf("%s: %s (%s)", i.Path, i.Op, i.Comment)
	}
	return fmt.Sprintf("%s: %s", i.Path, i.Op)
}

// FsKey identifies one aspect of one path.
type FsKey struct {
	Path  string
	Class OpClass
}

// Compare orders keys by path, then class.
func (k FsKey) Compare(other FsKey) int {
	if c := strings.Compare(k.Path, other.Path); c != 0 {
		return c
	}
	return cmp.Compare(k.Class, other.Class)
}

// SortFs sorts instructions by (path, op).
func SortFs(instrs []FsInstruction) {
	slices.SortStableFunc(instrs, FsInstruction.Compare)
}
