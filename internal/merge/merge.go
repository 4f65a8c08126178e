// Package merge classifies two sorted instruction sequences against each
// other.
//
// The left sequence is the system truth, the right sequence the desired
// state. Every key found in either side produces exactly one Entry, in
// ascending key order. The algorithm is the two-pointer walk of comm(1): the
// side holding the smaller key advances alone, equal keys advance both.
package merge

import (
	"fmt"

	"github.com/danieljhkim/hostconf/internal/instr"
)

// Class is the classification of one key.
type Class uint8

const (
	// LeftOnly means the system has the key and the desired state does not
	// mention it.
	LeftOnly Class = iota
	// RightOnly means the desired state specifies the key and the system
	// lacks it.
	RightOnly
	// BothEqual means both sides hold equal values. No action is needed.
	BothEqual
	// BothDiffer means both sides hold the key with different values. The
	// desired value wins on apply.
	BothDiffer
)

func (c Class) String() string {
	switch c {
	case LeftOnly:
		return "left-only"
	case RightOnly:
		return "right-only"
	case BothEqual:
		return "equal"
	case BothDiffer:
		return "differ"
	default:
		return fmt.Sprintf("class(%d)", c)
	}
}

// Entry is the classification of one key. Left and Right are set according
// to Class.
type Entry[K, V any] struct {
	Class Class
	Key   K
	Left  V
	Right V
}

// Merge classifies left against right. Both inputs must be sorted by key
// with no key repeated; otherwise an error wrapping ErrInputContract is
// returned and nothing is classified.
func Merge[K, V any](
	left, right []V,
	key func(V) K,
	compare func(a, b K) int,
	equal func(a, b V) bool,
) ([]Entry[K, V], error) {
	if err := checkSorted("left", left, key, compare); err != nil {
		return nil, err
	}
	if err := checkSorted("right", right, key, compare); err != nil {
		return nil, err
	}

	out := make([]Entry[K, V], 0, max(len(left), len(right)))
	i, j := 0, 0
	for i < len(left) && j < len(right) {
		lk, rk := key(left[i]), key(right[j])
		switch c := compare(lk, rk); {
		case c < 0:
			out = append(out, Entry[K, V]{Class: LeftOnly, Key: lk, Left: left[i]})
			i++
		case c > 0:
			out = append(out, Entry[K, V]{Class: RightOnly, Key: rk, Right: right[j]})
			j++
		default:
			class := BothDiffer
			if equal(left[i], right[j]) {
				class = BothEqual
			}
			out = append(out, Entry[K, V]{Class: class, Key: lk, Left: left[i], Right: right[j]})
			i++
			j++
		}
	}
	for ; i < len(left); i++ {
		out = append(out, Entry[K, V]{Class: LeftOnly, Key: key(left[i]), Left: left[i]})
	}
	for ; j < len(right); j++ {
		out = append(out, Entry[K, V]{Class: RightOnly, Key: key(right[j]), Right: right[j]})
	}
	return out, nil
}

func checkSorted[K, V any](side string, seq []V, key func(V) K, compare func(a, b K) int) error {
	for i := 1; i < len(seq); i++ {
		prev, cur := key(seq[i-1]), key(seq[i])
		switch c := compare(prev, cur); {
		case c == 0:
			return fmt.Errorf("%w: %s input repeats key %v at index %d", ErrInputContract, side, cur, i)
		case c > 0:
			return fmt.Errorf("%w: %s input not sorted at index %d (%v after %v)", ErrInputContract, side, i, cur, prev)
		}
	}
	return nil
}

// FsEntry is the classification of one (path, op class) key.
type FsEntry = Entry[instr.FsKey, instr.FsInstruction]

// Fs merges filesystem instruction sequences sorted with instr.SortFs.
func Fs(system, desired []instr.FsInstruction) ([]FsEntry, error) {
	return Merge(system, desired, instr.FsInstruction.Key, instr.FsKey.Compare, instr.FsInstruction.Equal)
}

// PkgEntry is the classification of one package identity.
type PkgEntry = Entry[instr.PkgIdent, instr.PkgInstruction]

// Pkgs merges two package mappings. Both are key-ordered and key-unique by
// construction.
func Pkgs(system, desired *instr.PkgInstructions) ([]PkgEntry, error) {
	entries, err := Merge(
		system.Entries(),
		desired.Entries(),
		func(e instr.PkgEntry) instr.PkgIdent { return e.Ident },
		instr.PkgIdent.Compare,
		func(a, b instr.PkgEntry) bool { return a.Instruction.Equal(b.Instruction) },
	)
	if err != nil {
		return nil, err
	}

	out := make([]PkgEntry, len(entries))
	for i, e := range entries {
		out[i] = PkgEntry{
			Class: e.Class,
			Key:   e.Key,
			Left:  e.Left.Instruction,
			Right: e.Right.Instruction,
		}
	}
	return out, nil
}
