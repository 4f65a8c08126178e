// Package fsops provides the filesystem operations used to reconcile a host.
//
// All filesystem mutations in hostconf go through the FS interface, which
// keeps the applicators testable and gives one place to enforce path rules.
//
// Key features:
//   - Create-or-truncate writes streamed from a reader
//   - Atomic writes using temp file + rename for hostconf's own state
//   - Special files (fifos, block and character devices) via mknod(2)
//   - Ownership changes that never follow symlinks
package fsops

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// DeviceKind selects the node type created by Mknod.
type DeviceKind uint8

const (
	BlockDevice DeviceKind = iota
	CharDevice
)

// NoID leaves the owner or group unchanged in Lchown.
const NoID = -1

// FS provides an abstraction for filesystem operations.
// All filesystem mutations in hostconf must go through this interface.
type FS interface {
	// Lstat returns file info without following symlinks.
	Lstat(path string) (os.FileInfo, error)

	// Readlink reads the target of a symlink.
	Readlink(path string) (string, error)

	// ReadFile reads the entire contents of a file.
	ReadFile(path string) ([]byte, error)

	// ReadDir lists a directory sorted by name.
	ReadDir(path string) ([]os.DirEntry, error)

	// Exists checks if a path exists.
	Exists(path string) (bool, error)

	// Mkdir creates a single directory. An existing directory is not an error.
	Mkdir(path string, perm os.FileMode) error

	// MkdirAll creates a directory and all parent directories.
	MkdirAll(path string, perm os.FileMode) error

	// Remove removes a file, symlink, special file or empty directory.
	Remove(path string) error

	// Symlink creates newname as a symbolic link to target, replacing any
	// existing non-directory at newname.
	Symlink(target, newname string) error

	// WriteFile creates or truncates path and copies r into it.
	WriteFile(path string, r io.Reader, perm os.FileMode) error

	// AtomicWrite writes data to path atomically using temp file + rename.
	AtomicWrite(path string, data []byte, perm os.FileMode) error

	// Mkfifo creates a named pipe.
	Mkfifo(path string, perm os.FileMode) error

	// Mknod creates a block or character device node.
	Mknod(path string, kind DeviceKind, perm os.FileMode, major, minor uint32) error

	// Chmod sets the permission bits of path.
	Chmod(path string, perm os.FileMode) error

	// Lchown changes ownership without following symlinks. NoID leaves the
	// respective id unchanged.
	Lchown(path string, uid, gid int) error

	// ValidateAbsPath validates that a path is absolute and clean.
	ValidateAbsPath(path string) error
}

// RealFS implements FS using actual OS operations.
type RealFS struct{}

// NewRealFS creates a new RealFS.
func NewRealFS() *RealFS {
	return &RealFS{}
}

func (fs *RealFS) Lstat(path string) (os.FileInfo, error) {
	return os.Lstat(path)
}

func (fs *RealFS) Readlink(path string) (string, error) {
	return os.Readlink(path)
}

func (fs *RealFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (fs *RealFS) ReadDir(path string) ([]os.DirEntry, error) {
	return os.ReadDir(path)
}

func (fs *RealFS) Exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (fs *RealFS) Mkdir(path string, perm os.FileMode) error {
	err := os.Mkdir(path, perm)
	if err == nil {
		return nil
	}
	if errors.Is(err, os.ErrExist) {
		info, statErr := os.Lstat(path)
		if statErr == nil && info.IsDir() {
			return nil
		}
	}
	return err
}

func (fs *RealFS) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (fs *RealFS) Remove(path string) error {
	return os.Remove(path)
}

func (fs *RealFS) Symlink(target, newname string) error {
	info, err := os.Lstat(newname)
	switch {
	case err == nil && info.IsDir():
		return fmt.Errorf("cannot replace directory %q with a symlink", newname)
	case err == nil:
		if err := os.Remove(newname); err != nil {
			return fmt.Errorf("failed to remove existing path: %w", err)
		}
	case !os.IsNotExist(err):
		return fmt.Errorf("failed to stat %q: %w", newname, err)
	}
	return os.Symlink(target, newname)
}

// WriteFile writes in place. The file keeps its inode, so hard links and
// open handles see the new contents.
func (fs *RealFS) WriteFile(path string, r io.Reader, perm os.FileMode) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("failed to open %q: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("failed to write %q: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync %q: %w", path, err)
	}
	return f.Close()
}

// AtomicWrite writes data to path atomically using temp file + rename.
func (fs *RealFS) AtomicWrite(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".hostconf-tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	// Clean up temp file on error
	defer func() {
		if tmpFile != nil {
			_ = tmpFile.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	tmpFile = nil
	return nil
}

func (fs *RealFS) Mkfifo(path string, perm os.FileMode) error {
	if err := unix.Mkfifo(path, uint32(perm.Perm())); err != nil {
		return &os.PathError{Op: "mkfifo", Path: path, Err: err}
	}
	return nil
}

func (fs *RealFS) Mknod(path string, kind DeviceKind, perm os.FileMode, major, minor uint32) error {
	mode := uint32(perm.Perm())
	switch kind {
	case BlockDevice:
		mode |= unix.S_IFBLK
	case CharDevice:
		mode |= unix.S_IFCHR
	default:
		return fmt.Errorf("unknown device kind %d", kind)
	}
	if err := unix.Mknod(path, mode, int(unix.Mkdev(major, minor))); err != nil {
		return &os.PathError{Op: "mknod", Path: path, Err: err}
	}
	return nil
}

// Chmod also applies setuid, setgid and sticky bits, which os.Chmod takes from
// separate FileMode flags.
func (fs *RealFS) Chmod(path string, perm os.FileMode) error {
	if err := unix.Chmod(path, uint32(perm)&07777); err != nil {
		return &os.PathError{Op: "chmod", Path: path, Err: err}
	}
	return nil
}

func (fs *RealFS) Lchown(path string, uid, gid int) error {
	return os.Lchown(path, uid, gid)
}

// ValidateAbsPath rejects relative paths, paths that are not in clean form
// and the root directory itself.
func (fs *RealFS) ValidateAbsPath(path string) error {
	return ValidateAbsPath(path)
}

// ValidateAbsPath is the function form of RealFS.ValidateAbsPath, for callers
// that have no FS at hand.
func ValidateAbsPath(path string) error {
	if path == "" {
		return fmt.Errorf("invalid path: empty")
	}
	if !filepath.IsAbs(path) {
		return fmt.Errorf("invalid path: must be absolute, got %q", path)
	}
	if filepath.Clean(path) != path {
		return fmt.Errorf("invalid path: %q is not clean, use %q", path, filepath.Clean(path))
	}
	if path == string(filepath.Separator) {
		return fmt.Errorf("invalid path: refusing to manage the root directory")
	}
	if strings.ContainsRune(path, 0) {
		return fmt.Errorf("invalid path: contains NUL byte")
	}
	return nil
}
