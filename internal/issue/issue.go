// Package issue models discrepancies found when scanning the filesystem and
// converts them into filesystem instructions.
package issue

import (
	"fmt"
	"strings"

	"github.com/danieljhkim/hostconf/internal/instr"
)

// Tag identifies the variant of a Kind.
type Tag uint8

const (
	Missing Tag = iota
	Unexpected
	PermissionDenied
	TypeIncorrect
	SizeIncorrect
	ChecksumIncorrect
	SymlinkTarget
	WrongOwner
	WrongGroup
	WrongMode
	MetadataError
	FsCheckError
)

var tagNames = [...]string{
	Missing:           "missing",
	Unexpected:        "unexpected",
	PermissionDenied:  "permission denied",
	TypeIncorrect:     "type incorrect",
	SizeIncorrect:     "size incorrect",
	ChecksumIncorrect: "checksum incorrect",
	SymlinkTarget:     "symlink target",
	WrongOwner:        "wrong owner",
	WrongGroup:        "wrong group",
	WrongMode:         "wrong mode",
	MetadataError:     "metadata error",
	FsCheckError:      "check error",
}

func (t Tag) String() string {
	if int(t) < len(tagNames) {
		return tagNames[t]
	}
	return fmt.Sprintf("tag(%d)", t)
}

// Kind is one discrepancy for a path. Only the fields relevant to Tag are
// set; use the constructor functions.
type Kind struct {
	Tag            Tag
	ActualTarget   string
	ExpectedTarget string
	ActualID       uint32
	ExpectedID     uint32
	ActualMode     instr.Mode
	ExpectedMode   instr.Mode
	Err            error
}

func KindMissing() Kind { return Kind{Tag: Missing} }
func KindUnexpected() Kind { return Kind{Tag: Unexpected} }
func KindPermissionDenied() Kind { return Kind{Tag: PermissionDenied} }
func KindTypeIncorrect() Kind { return Kind{Tag: TypeIncorrect} }
func KindSizeIncorrect() Kind { return Kind{Tag: SizeIncorrect} }
func KindChecksumIncorrect() Kind { return Kind{Tag: ChecksumIncorrect} }

func KindSymlinkTarget(actual, expected string) Kind {
	return Kind{Tag: SymlinkTarget, ActualTarget: actual, ExpectedTarget: expected}
}

func KindWrongOwner(actual, expected uint32) Kind {
	return Kind{Tag: WrongOwner, ActualID: actual, ExpectedID: expected}
}

func KindWrongGroup(actual, expected uint32) Kind {
	return Kind{Tag: WrongGroup, ActualID: actual, ExpectedID: expected}
}

func KindWrongMode(actual, expected instr.Mode) Kind {
	return Kind{Tag: WrongMode, ActualMode: actual, ExpectedMode: expected}
}

func KindMetadataError(err error) Kind { return Kind{Tag: MetadataError, Err: err} }
func KindFsCheckError(err error) Kind { return Kind{Tag: FsCheckError, Err: err} }

func (k Kind) String() string {
	switch k.Tag {
	case SymlinkTarget:
		return fmt.Sprintf("symlink target %q, expected %q", k.ActualTarget, k.ExpectedTarget)
	case WrongOwner:
		return fmt.Sprintf("owner %d, expected %d", k.ActualID, k.ExpectedID)
	case WrongGroup:
		return fmt.Sprintf("group %d, expected %d", k.ActualID, k.ExpectedID)
	case WrongMode:
		return fmt.Sprintf("mode %s, expected %s", k.ActualMode, k.ExpectedMode)
	case MetadataError, FsCheckError:
		return fmt.Sprintf("%s: %v", k.Tag, k.Err)
	default:
		return k.Tag.String()
	}
}

// Issue collects every discrepancy found for one path.
type Issue struct {
	Path  string
	Kinds []Kind
}

func (i Issue) String() string {
	parts := make([]string, len(i.Kinds))
	for n, k := range i.Kinds {
		parts[n] = k.String()
	}
	return fmt.Sprintf("%s: %s", i.Path, strings.Join(parts, "; "))
}

// Diagnostic is a discrepancy that cannot be turned into an instruction.
type Diagnostic struct {
	Path string
	Kind Kind
}

func (d Diagnostic) Error() string {
	return fmt.Sprintf("%s: %s", d.Path, d.Kind)
}

func (d Diagnostic) Unwrap() error {
	return d.Kind.Err
}
