// Package backend defines the contract between hostconf and the package
// managers it reconciles, and collects system state from them concurrently.
package backend

import (
	"context"
	"fmt"

	"github.com/danieljhkim/hostconf/internal/hash"
	"github.com/danieljhkim/hostconf/internal/instr"
	"github.com/danieljhkim/hostconf/internal/intern"
)

// Backend is one package manager.
//
// Methods that a package manager cannot support return ErrUnsupported.
type Backend interface {
	// Name identifies the backend, e.g. "pacman".
	Name() string

	// Files lists every file owned by an installed package along with what
	// the package database knows about it.
	Files(ctx context.Context, in *intern.Interner) ([]FileEntry, error)

	// Packages lists installed packages.
	Packages(ctx context.Context, in *intern.Interner) ([]Package, error)

	// OwningPackages maps each path to the package that owns it. Paths with no
	// owner are absent from the result.
	OwningPackages(ctx context.Context, paths []string) (map[string]string, error)

	// OriginalFiles returns the pristine contents of files as shipped by
	// their packages, keyed by path.
	OriginalFiles(ctx context.Context, queries []OriginalFileQuery) (map[string][]byte, error)

	// Transact installs and uninstalls packages in one package manager run.
	// When confirm is true the package manager may ask the user.
	Transact(ctx context.Context, install, uninstall []string, confirm bool) error

	// Mark records packages as installed as a dependency or explicitly.
	Mark(ctx context.Context, deps, manual []string) error

	// RemoveUnused removes orphaned dependencies.
	RemoveUnused(ctx context.Context, confirm bool) error
}

// FileKind is the type of a filesystem object.
type FileKind uint8

const (
	KindUnknown FileKind = iota
	KindRegular
	KindDirectory
	KindSymlink
	KindFifo
	KindBlockDevice
	KindCharDevice
)

var fileKindNames = [...]string{
	KindUnknown:     "unknown",
	KindRegular:     "file",
	KindDirectory:   "directory",
	KindSymlink:     "symlink",
	KindFifo:        "fifo",
	KindBlockDevice: "block device",
	KindCharDevice:  "char device",
}

func (k FileKind) String() string {
	if int(k) < len(fileKindNames) {
		return fileKindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Properties is what a package database records about a file. Package
// managers differ in what they track, so each field may be unknown: Kind
// KindUnknown, a false Has* flag, Size -1, a zero Checksum or an empty
// Target.
type Properties struct {
	Kind     FileKind
	Mode     instr.Mode
	HasMode  bool
	UID      uint32
	HasUID   bool
	GID      uint32
	HasGID   bool
	Size     int64
	Checksum hash.Checksum
	Target   string
}

// UnknownProperties returns properties with every field unknown.
func UnknownProperties() Properties {
	return Properties{Size: -1}
}

// FileEntry is a file owned by a package.
type FileEntry struct {
	Path       string
	Package    intern.Symbol
	Properties Properties
}

// Package is an installed package.
type Package struct {
	Name    intern.Symbol
	Version string
	// Explicit is true for packages installed on request rather than as a
	// dependency.
	Explicit bool
}

// OriginalFileQuery asks for the shipped contents of Path from Package.
type OriginalFileQuery struct {
	Package string
	Path    string
}
