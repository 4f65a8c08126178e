// Package scan compares what package managers recorded with the live
// filesystem and reports every discrepancy as an issue.
package scan

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"

	"github.com/danieljhkim/hostconf/internal/backend"
	"github.com/danieljhkim/hostconf/internal/fsops"
	"github.com/danieljhkim/hostconf/internal/hash"
	"github.com/danieljhkim/hostconf/internal/instr"
	"github.com/danieljhkim/hostconf/internal/issue"
)

// Scanner inspects the filesystem.
type Scanner struct {
	fs     fsops.FS
	hasher hash.Hasher
	ignore []string
	log    zerolog.Logger
}

// New returns a scanner. Paths matching one of the ignore globs are never
// reported by Unexpected.
func New(fsys fsops.FS, hasher hash.Hasher, ignore []string, log zerolog.Logger) (*Scanner, error) {
	for _, pattern := range ignore {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("%w: %q", ErrBadPattern, pattern)
		}
	}
	return &Scanner{fs: fsys, hasher: hasher, ignore: ignore, log: log}, nil
}

// Check compares each entry with the live path. Unknown properties are not
// checked. The result holds one issue per path with at least one discrepancy,
// in entry order.
func (s *Scanner) Check(entries []backend.FileEntry) []issue.Issue {
	var issues []issue.Issue
	for _, e := range entries {
		kinds := s.check(e)
		if len(kinds) > 0 {
			issues = append(issues, issue.Issue{Path: e.Path, Kinds: kinds})
		}
	}
	s.log.Debug().Int("entries", len(entries)).Int("issues", len(issues)).Msg("checked package files")
	return issues
}

func (s *Scanner) check(e backend.FileEntry) []issue.Kind {
	props := e.Properties
	info, err := s.fs.Lstat(e.Path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return []issue.Kind{issue.KindMissing()}
	case errors.Is(err, fs.ErrPermission):
		return []issue.Kind{issue.KindPermissionDenied()}
	case err != nil:
		return []issue.Kind{issue.KindMetadataError(err)}
	}

	actual := KindOf(info.Mode())
	if props.Kind != backend.KindUnknown && props.Kind != actual {
		return []issue.Kind{issue.KindTypeIncorrect()}
	}

	var kinds []issue.Kind
	if props.HasMode && actual != backend.KindSymlink {
		if got := ModeOf(info.Mode()); got != props.Mode {
			kinds = append(kinds, issue.KindWrongMode(got, props.Mode))
		}
	}
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		if props.HasUID && st.Uid != props.UID {
			kinds = append(kinds, issue.KindWrongOwner(st.Uid, props.UID))
		}
		if props.HasGID && st.Gid != props.GID {
			kinds = append(kinds, issue.KindWrongGroup(st.Gid, props.GID))
		}
	}

	switch actual {
	case backend.KindRegular:
		if props.Size >= 0 && info.Size() != props.Size {
			kinds = append(kinds, issue.KindSizeIncorrect())
			break
		}
		if !props.Checksum.IsZero() {
			sum, err := s.hasher.HashFile(e.Path)
			switch {
			case errors.Is(err, fs.ErrPermission):
				kinds = append(kinds, issue.KindPermissionDenied())
			case err != nil:
				kinds = append(kinds, issue.KindFsCheckError(err))
			case sum != props.Checksum:
				kinds = append(kinds, issue.KindChecksumIncorrect())
			}
		}
	case backend.KindSymlink:
		if props.Target != "" {
			target, err := s.fs.Readlink(e.Path)
			if err != nil {
				kinds = append(kinds, issue.KindFsCheckError(err))
			} else if target != props.Target {
				kinds = append(kinds, issue.KindSymlinkTarget(target, props.Target))
			}
		}
	}
	return kinds
}

// Unexpected walks the managed roots and reports every path that is neither
// known nor ignored. Contents of an unexpected directory are reported too.
func (s *Scanner) Unexpected(roots []string, known map[string]bool) ([]issue.Issue, error) {
	var issues []issue.Issue
	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) && path == root {
					return filepath.SkipDir
				}
				if errors.Is(err, fs.ErrPermission) {
					issues = append(issues, issue.Issue{Path: path, Kinds: []issue.Kind{issue.KindPermissionDenied()}})
					return nil
				}
				issues = append(issues, issue.Issue{Path: path, Kinds: []issue.Kind{issue.KindMetadataError(err)}})
				return nil
			}
			if path == root {
				return nil
			}
			if s.ignored(path) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if !known[path] {
				issues = append(issues, issue.Issue{Path: path, Kinds: []issue.Kind{issue.KindUnexpected()}})
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", root, err)
		}
	}
	s.log.Debug().Strs("roots", roots).Int("unexpected", len(issues)).Msg("walked managed roots")
	return issues, nil
}

func (s *Scanner) ignored(path string) bool {
	for _, pattern := range s.ignore {
		if ok, _ := doublestar.Match(pattern, path); ok {
			return true
		}
	}
	return false
}

// KindOf maps an os.FileMode type to a FileKind.
func KindOf(m os.FileMode) backend.FileKind {
	switch {
	case m.IsRegular():
		return backend.KindRegular
	case m.IsDir():
		return backend.KindDirectory
	case m&os.ModeSymlink != 0:
		return backend.KindSymlink
	case m&os.ModeNamedPipe != 0:
		return backend.KindFifo
	case m&os.ModeCharDevice != 0:
		return backend.KindCharDevice
	case m&os.ModeDevice != 0:
		return backend.KindBlockDevice
	}
	return backend.KindUnknown
}

// ModeOf returns the permission bits of m in chmod(2) form, including the
// setuid, setgid and sticky bits.
func ModeOf(m os.FileMode) instr.Mode {
	mode := instr.Mode(m.Perm())
	if m&os.ModeSetuid != 0 {
		mode |= 04000
	}
	if m&os.ModeSetgid != 0 {
		mode |= 02000
	}
	if m&os.ModeSticky != 0 {
		mode |= 01000
	}
	return mode
}
