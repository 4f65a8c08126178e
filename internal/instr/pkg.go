package instr

import (
	"fmt"
	"iter"
	"slices"
	"strings"
)

// PkgOp is the intended state of a package.
type PkgOp uint8

const (
	Install PkgOp = iota
	Uninstall
)

func (o PkgOp) String() string {
	switch o {
	case Install:
		return "install"
	case Uninstall:
		return "uninstall"
	default:
		return fmt.Sprintf("pkgop(%d)", o)
	}
}

// Invert returns the op that undoes o.
func (o PkgOp) Invert() PkgOp {
	if o == Install {
		return Uninstall
	}
	return Install
}

// PkgIdent identifies a package within one package manager.
type PkgIdent struct {
	PackageManager string
	Identifier     string
}

// Compare orders identities by (package manager, identifier).
func (p PkgIdent) Compare(other PkgIdent) int {
	if c := strings.Compare(p.PackageManager, other.PackageManager); c != 0 {
		return c
	}
	return strings.Compare(p.Identifier, other.Identifier)
}

func (p PkgIdent) String() string {
	return p.PackageManager + ":" + p.Identifier
}

// PkgInstruction is the intended state of one package. Comment is ignored
// by comparisons.
type PkgInstruction struct {
	Op      PkgOp
	Comment string
}

// Equal reports whether both instructions have the same op.
func (i PkgInstruction) Equal(other PkgInstruction) bool {
	return i.Op == other.Op
}

// PkgEntry pairs a package identity with its instruction.
type PkgEntry struct {
	Ident       PkgIdent
	Instruction PkgInstruction
}

func (e PkgEntry) String() string {
	if e.Instruction.Comment != "" {
		return fmt.Sprintf("%s %s (%s)", e.Instruction.Op, e.Ident, e.Instruction.Comment)
	}
	return fmt.Sprintf("%s %s", e.Instruction.Op, e.Ident)
}

// PkgInstructions is an ordered mapping from package identity to
// instruction. Keys are unique and iteration follows key order.
// The zero value is an empty mapping ready to use.
type PkgInstructions struct {
	keys   []PkgIdent
	values map[PkgIdent]PkgInstruction
}

// NewPkgInstructions returns an empty mapping.
func NewPkgInstructions() *PkgInstructions {
	return &PkgInstructions{values: make(map[PkgIdent]PkgInstruction)}
}

// Insert adds a new entry. It fails if id is already present.
func (p *PkgInstructions) Insert(id PkgIdent, ins PkgInstruction) error {
	if _, ok := p.values[id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicatePackage, id)
	}
	p.Set(id, ins)
	return nil
}

// Set adds or replaces the entry for id.
func (p *PkgInstructions) Set(id PkgIdent, ins PkgInstruction) {
	if p.values == nil {
		p.values = make(map[PkgIdent]PkgInstruction)
	}
	if _, ok := p.values[id]; !ok {
		pos, _ := slices.BinarySearchFunc(p.keys, id, PkgIdent.Compare)
		p.keys = slices.Insert(p.keys, pos, id)
	}
	p.values[id] = ins
}

// Get returns the instruction for id.
func (p *PkgInstructions) Get(id PkgIdent) (PkgInstruction, bool) {
	if p == nil {
		return PkgInstruction{}, false
	}
	ins, ok := p.values[id]
	return ins, ok
}

// Len returns the number of entries.
func (p *PkgInstructions) Len() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}

// All iterates the entries in key order.
func (p *PkgInstructions) All() iter.Seq2[PkgIdent, PkgInstruction] {
	return func(yield func(PkgIdent, PkgInstruction) bool) {
		if p == nil {
			return
		}
		for _, id := range p.keys {
			if !yield(id, p.values[id]) {
				return
			}
		}
	}
}

// Entries returns the entries as a key-ordered slice. A nil mapping has no
// entries.
func (p *PkgInstructions) Entries() []PkgEntry {
	entries := make([]PkgEntry, 0, p.Len())
	for id, ins := range p.All() {
		entries = append(entries, PkgEntry{Ident: id, Instruction: ins})
	}
	return entries
}
