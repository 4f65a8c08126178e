package apply

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/danieljhkim/hostconf/internal/fsops"
	"github.com/danieljhkim/hostconf/internal/instr"
	"github.com/danieljhkim/hostconf/internal/scan"
)

// Differ renders the effect of a group of instructions for review.
type Differ struct {
	fs fsops.FS

	// Tool is an external diff command, invoked as Tool... current new.
	// Empty uses a built-in unified diff.
	Tool []string
}

func NewDiffer(fsys fsops.FS, tool []string) *Differ {
	return &Differ{fs: fsys, Tool: tool}
}

// Fs describes the changes one path would undergo.
func (d *Differ) Fs(ctx context.Context, group []instr.FsInstruction) (string, error) {
	var buf strings.Builder
	for _, ins := range group {
		switch ins.Op.Kind {
		case instr.OpCreateFile:
			text, err := d.contents(ctx, ins.Path, ins.Op.Contents)
			if err != nil {
				return "", err
			}
			buf.WriteString(text)
		case instr.OpSetMode:
			fmt.Fprintf(&buf, "%s: mode %s -> %s\n", ins.Path, d.currentMode(ins.Path), ins.Op.Mode)
		default:
			fmt.Fprintf(&buf, "%s: %s (currently %s)\n", ins.Path, ins.Op, d.describe(ins.Path))
		}
	}
	return buf.String(), nil
}

// Pkgs describes one package batch.
func (d *Differ) Pkgs(batch []instr.PkgEntry) string {
	var buf strings.Builder
	for _, e := range batch {
		sign := "+"
		if e.Instruction.Op == instr.Uninstall {
			sign = "-"
		}
		fmt.Fprintf(&buf, "%s %s", sign, e.Ident)
		if e.Instruction.Comment != "" {
			fmt.Fprintf(&buf, " (%s)", e.Instruction.Comment)
		}
		buf.WriteByte('\n')
	}
	return buf.String()
}

func (d *Differ) contents(ctx context.Context, path string, want instr.FileContents) (string, error) {
	next, err := want.Bytes()
	if err != nil {
		return "", err
	}
	if len(d.Tool) > 0 {
		return d.external(ctx, path, next)
	}
	current, err := d.fs.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(current)),
		B:        difflib.SplitLines(string(next)),
		FromFile: path,
		ToFile:   path + " (desired)",
		Context:  3,
	})
}

// external runs the configured tool against the current file and a
// temporary copy of the desired contents.
func (d *Differ) external(ctx context.Context, path string, next []byte) (string, error) {
	tmp, err := os.CreateTemp("", "hostconf-diff-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(next); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	current := path
	if ok, _ := d.fs.Exists(path); !ok {
		current = os.DevNull
	}
	args := append(append([]string{}, d.Tool[1:]...), current, tmp.Name())
	out, err := exec.CommandContext(ctx, d.Tool[0], args...).Output()
	var exitErr *exec.ExitError
	// diff tools exit 1 when the inputs differ
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		err = nil
	}
	if err != nil {
		return "", fmt.Errorf("diff tool %s: %w", d.Tool[0], err)
	}
	return string(out), nil
}

func (d *Differ) currentMode(path string) string {
	info, err := d.fs.Lstat(path)
	if err != nil {
		return "missing"
	}
	return scan.ModeOf(info.Mode()).String()
}

func (d *Differ) describe(path string) string {
	info, err := d.fs.Lstat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "missing"
	case err != nil:
		return err.Error()
	case info.IsDir():
		return "directory"
	case info.Mode()&fs.ModeSymlink != 0:
		target, _ := d.fs.Readlink(path)
		return "symlink to " + target
	case info.Mode().IsRegular():
		return fmt.Sprintf("file, %d bytes", info.Size())
	}
	return info.Mode().Type().String()
}

// Pager shows long text through an external program.
type Pager struct {
	// Command is the pager argv. Empty disables paging.
	Command []string

	// Limit is the number of lines above which text is paged. Zero disables
	// paging.
	Limit int
}

// Show writes text to out, or pipes it through the pager when it is longer
// than Limit lines.
func (p Pager) Show(ctx context.Context, out io.Writer, text string) error {
	if len(p.Command) == 0 || p.Limit <= 0 || strings.Count(text, "\n") <= p.Limit {
		_, err := out.Write([]byte(text))
		return err
	}
	cmd := exec.CommandContext(ctx, p.Command[0], p.Command[1:]...)
	cmd.Stdin = bytes.NewBufferString(text)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("pager %s: %w", p.Command[0], err)
	}
	return nil
}
