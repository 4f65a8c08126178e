// Package desired loads the desired state of a host from a YAML file.
//
// A desired state file looks like:
//
//	packages:
//	  pacman: [zsh, git]
//	absent_packages:
//	  pacman: [nano]
//	files:
//	  - path: /etc/foo
//	    contents: "hello\n"
//	    mode: "0600"
//	    owner: root
//	    group: wheel
//	    comment: managed by hostconf
//	  - path: /etc/motd
//	    source: files/motd
//	  - path: /etc/localtime
//	    symlink: /usr/share/zoneinfo/UTC
//	  - path: /etc/stale.conf
//	    remove: true
//
// Each file entry sets at most one of contents, source, symlink, directory,
// fifo, block_device, char_device and remove. An entry with none of them only
// manages metadata of a path that exists for another reason.
package desired

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/danieljhkim/hostconf/internal/fsops"
	"github.com/danieljhkim/hostconf/internal/instr"
)

// Device identifies a device node.
type Device struct {
	Major uint32 `yaml:"major"`
	Minor uint32 `yaml:"minor"`
}

// File is one entry of the files list.
type File struct {
	Path        string  `yaml:"path"`
	Contents    *string `yaml:"contents"`
	Source      string  `yaml:"source"`
	Symlink     string  `yaml:"symlink"`
	Directory   bool    `yaml:"directory"`
	Fifo        bool    `yaml:"fifo"`
	BlockDevice *Device `yaml:"block_device"`
	CharDevice  *Device `yaml:"char_device"`
	Remove      bool    `yaml:"remove"`
	Mode        string  `yaml:"mode"`
	Owner       string  `yaml:"owner"`
	Group       string  `yaml:"group"`
	Comment     string  `yaml:"comment"`
}

// Document is the raw file structure.
type Document struct {
	Packages       map[string][]string `yaml:"packages"`
	AbsentPackages map[string][]string `yaml:"absent_packages"`
	Files          []File              `yaml:"files"`
}

// State is the desired state as sorted instruction sequences.
type State struct {
	Fs   []instr.FsInstruction
	Pkgs *instr.PkgInstructions
}

// Paths returns every path the state manages along with its ancestors.
func (s *State) Paths() map[string]bool {
	paths := make(map[string]bool)
	for _, ins := range s.Fs {
		for p := ins.Path; p != "/" && p != "." && !paths[p]; p = filepath.Dir(p) {
			paths[p] = true
		}
	}
	return paths
}

// Load reads a desired state file. Relative source paths are resolved
// against the directory of path.
func Load(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read desired state: %w", err)
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse desired state %s: %w", path, err)
	}
	return doc.Build(filepath.Dir(path))
}

// Empty returns a state with no instructions.
func Empty() *State {
	return &State{Pkgs: instr.NewPkgInstructions()}
}

// Build converts the document into instructions. Source files are read
// relative to baseDir.
func (d *Document) Build(baseDir string) (*State, error) {
	st := Empty()

	for pm, names := range d.Packages {
		for _, name := range names {
			id := instr.PkgIdent{PackageManager: pm, Identifier: name}
			if err := st.Pkgs.Insert(id, instr.PkgInstruction{Op: instr.Install}); err != nil {
				return nil, err
			}
		}
	}
	for pm, names := range d.AbsentPackages {
		for _, name := range names {
			id := instr.PkgIdent{PackageManager: pm, Identifier: name}
			if err := st.Pkgs.Insert(id, instr.PkgInstruction{Op: instr.Uninstall}); err != nil {
				return nil, fmt.Errorf("package %s both wanted and absent: %w", id, err)
			}
		}
	}

	for i, f := range d.Files {
		instrs, err := f.instructions(baseDir)
		if err != nil {
			return nil, fmt.Errorf("files[%d] (%s): %w", i, f.Path, err)
		}
		st.Fs = append(st.Fs, instrs...)
	}

	instr.SortFs(st.Fs)
	for i := 1; i < len(st.Fs); i++ {
		if st.Fs[i-1].Key().Compare(st.Fs[i].Key()) == 0 {
			return nil, fmt.Errorf("%w: %s has conflicting %s entries", ErrConflict, st.Fs[i].Path, st.Fs[i].Op.Kind)
		}
	}
	return st, nil
}

func (f File) instructions(baseDir string) ([]instr.FsInstruction, error) {
	if err := fsops.ValidateAbsPath(f.Path); err != nil {
		return nil, err
	}

	var ops []instr.FsOp
	content := 0
	if f.Contents != nil {
		ops = append(ops, instr.CreateFile(instr.FromLiteral([]byte(*f.Contents))))
		content++
	}
	if f.Source != "" {
		src := f.Source
		if !filepath.IsAbs(src) {
			src = filepath.Join(baseDir, src)
		}
		c, err := instr.FromFile(src)
		if err != nil {
			return nil, fmt.Errorf("failed to read source: %w", err)
		}
		ops = append(ops, instr.CreateFile(c))
		content++
	}
	if f.Symlink != "" {
		ops = append(ops, instr.CreateSymlink(f.Symlink))
		content++
	}
	if f.Directory {
		ops = append(ops, instr.CreateDirectory())
		content++
	}
	if f.Fifo {
		ops = append(ops, instr.CreateFifo())
		content++
	}
	if f.BlockDevice != nil {
		ops = append(ops, instr.CreateBlockDevice(f.BlockDevice.Major, f.BlockDevice.Minor))
		content++
	}
	if f.CharDevice != nil {
		ops = append(ops, instr.CreateCharDevice(f.CharDevice.Major, f.CharDevice.Minor))
		content++
	}
	if f.Remove {
		if content > 0 || f.Mode != "" || f.Owner != "" || f.Group != "" {
			return nil, fmt.Errorf("%w: remove cannot be combined with other fields", ErrInvalidEntry)
		}
		ops = append(ops, instr.Remove())
	}
	if content > 1 {
		return nil, fmt.Errorf("%w: more than one of contents, source, symlink, directory, fifo and device", ErrInvalidEntry)
	}

	if f.Mode != "" {
		if f.Symlink != "" {
			return nil, fmt.Errorf("%w: symlinks have no mode", ErrInvalidEntry)
		}
		m, err := ParseMode(f.Mode)
		if err != nil {
			return nil, err
		}
		ops = append(ops, instr.SetMode(m))
	}
	if f.Owner != "" {
		ops = append(ops, instr.SetOwner(f.Owner))
	}
	if f.Group != "" {
		ops = append(ops, instr.SetGroup(f.Group))
	}
	if len(ops) == 0 {
		return nil, fmt.Errorf("%w: entry does nothing", ErrInvalidEntry)
	}

	out := make([]instr.FsInstruction, len(ops))
	for i, op := range ops {
		out[i] = instr.FsInstruction{Path: f.Path, Op: op, Comment: f.Comment}
	}
	return out, nil
}

// ParseMode parses an octal permission string such as "0644" or "4755".
func ParseMode(s string) (instr.Mode, error) {
	v, err := strconv.ParseUint(s, 8, 32)
	if err != nil || v > 07777 {
		return 0, fmt.Errorf("%w: invalid mode %q", ErrInvalidEntry, s)
	}
	return instr.Mode(v), nil
}
