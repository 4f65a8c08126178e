package issue

import (
	"fmt"
	"strconv"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/danieljhkim/hostconf/internal/ids"
	"github.com/danieljhkim/hostconf/internal/instr"
)

// Converter turns issues into filesystem instructions.
type Converter struct {
	allow    []string
	resolver ids.Resolver
}

// NewConverter returns a converter. Unexpected paths matching one of the
// allow globs become comments instead of removals. Owner and group ids are
// named through resolver.
func NewConverter(allow []string, resolver ids.Resolver) (*Converter, error) {
	for _, pattern := range allow {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("%w: %q", ErrBadPattern, pattern)
		}
	}
	return &Converter{allow: allow, resolver: resolver}, nil
}

// Convert maps every convertible kind of every issue to instructions. The
// result is unsorted. Kinds that describe a failure to inspect the path are
// returned as diagnostics instead.
func (c *Converter) Convert(issues []Issue) ([]instr.FsInstruction, []Diagnostic) {
	var out []instr.FsInstruction
	var diags []Diagnostic

	for _, is := range issues {
		emitted := make([]instr.FsOp, 0, len(is.Kinds))
		emit := func(op instr.FsOp, comment string) {
			for _, prev := range emitted {
				if prev.Equal(op) {
					return
				}
			}
			emitted = append(emitted, op)
			out = append(out, instr.FsInstruction{Path: is.Path, Op: op, Comment: comment})
		}

		for _, k := range is.Kinds {
			switch k.Tag {
			case Missing:
				emit(instr.Restore(), k.String())
			case Unexpected:
				if c.allowed(is.Path) {
					emit(instr.Comment(), "unexpected, allowed")
				} else {
					emit(instr.Remove(), k.String())
				}
			case WrongMode:
				emit(instr.SetMode(k.ExpectedMode), k.String())
			case WrongOwner:
				emit(instr.SetOwner(c.userName(k.ExpectedID)), k.String())
			case WrongGroup:
				emit(instr.SetGroup(c.groupName(k.ExpectedID)), k.String())
			case ChecksumIncorrect, SizeIncorrect:
				emit(instr.Restore(), k.String())
			case SymlinkTarget:
				if k.ActualTarget != k.ExpectedTarget {
					emit(instr.Restore(), k.String())
				}
			case TypeIncorrect:
				emit(instr.Remove(), k.String())
				emit(instr.Restore(), k.String())
			default:
				// PermissionDenied, MetadataError and FsCheckError say nothing
				// about the desired state of the path.
				diags = append(diags, Diagnostic{Path: is.Path, Kind: k})
			}
		}
	}

	return out, diags
}

func (c *Converter) allowed(path string) bool {
	for _, pattern := range c.allow {
		if ok, _ := doublestar.Match(pattern, path); ok {
			return true
		}
	}
	return false
}

func (c *Converter) userName(uid uint32) string {
	if c.resolver != nil {
		if name, err := c.resolver.UserName(uid); err == nil {
			return name
		}
	}
	return strconv.FormatUint(uint64(uid), 10)
}

func (c *Converter) groupName(gid uint32) string {
	if c.resolver != nil {
		if name, err := c.resolver.GroupName(gid); err == nil {
			return name
		}
	}
	return strconv.FormatUint(uint64(gid), 10)
}
