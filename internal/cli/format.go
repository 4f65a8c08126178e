package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/danieljhkim/hostconf/internal/apply"
	"github.com/danieljhkim/hostconf/internal/instr"
)

// fatih/color disables these when stdout is not a terminal or NO_COLOR is set.
var (
	successColor = color.New(color.FgGreen, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	infoColor    = color.New(color.FgCyan)
	headerColor  = color.New(color.FgBlue, color.Bold)
	labelColor   = color.New(color.FgWhite, color.Bold)
	valueColor   = color.New(color.FgHiBlack)
	dimColor     = color.New(color.FgHiBlack)

	addColor    = color.New(color.FgGreen)
	removeColor = color.New(color.FgRed)
	changeColor = color.New(color.FgYellow)
)

// PrintSection prints a section header
func PrintSection(title string) {
	fmt.Println()
	_, _ = headerColor.Printf("▸ %s\n", title)
	fmt.Println()
}

// PrintSubsection prints a subsection header
func PrintSubsection(title string) {
	_, _ = infoColor.Printf("  %s\n", title)
}

func PrintSuccess(msg string) {
	_, _ = successColor.Printf("✓ %s\n", msg)
}

func PrintWarning(msg string) {
	_, _ = warningColor.Printf("⚠ %s\n", msg)
}

// PrintError prints an error message to stderr
func PrintError(msg string) {
	_, _ = errorColor.Fprintf(os.Stderr, "✗ %s\n", msg)
}

func PrintInfo(msg string) {
	fmt.Println(msg)
}

// PrintLabelValue prints an indented "label: value" line
func PrintLabelValue(label, value string) {
	PrintLabelValueWithColor(label, value, valueColor)
}

func PrintLabelValueWithColor(label, value string, valueClr *color.Color) {
	_, _ = labelColor.Printf("  %s: ", label)
	_, _ = valueClr.Println(value)
}

// fsChangeColor colors a planned file change by what it does to the path.
func fsChangeColor(k instr.FsOpKind) *color.Color {
	switch {
	case k.IsDestructive():
		return removeColor
	case k.Class() == instr.ClassContent:
		return addColor
	default:
		return changeColor
	}
}

func pkgChangeColor(op instr.PkgOp) *color.Color {
	if op == instr.Uninstall {
		return removeColor
	}
	return addColor
}

// PrintFsChanges lists planned file changes, one bullet each.
func PrintFsChanges(plan []instr.FsInstruction) {
	for _, ins := range plan {
		_, _ = fsChangeColor(ins.Op.Kind).Printf("  • %s\n", ins)
	}
}

// PrintPkgChanges lists planned package changes, one bullet each.
func PrintPkgChanges(plan []instr.PkgEntry) {
	for _, e := range plan {
		_, _ = pkgChangeColor(e.Instruction.Op).Printf("  • %s\n", e)
	}
}

func outcomeColor(s apply.Status) *color.Color {
	switch s {
	case apply.Succeeded:
		return successColor
	case apply.Failed:
		return errorColor
	default:
		return dimColor
	}
}

// outcomeLine renders one outcome without color.
func outcomeLine(o apply.Outcome) string {
	var mark string
	switch o.Status {
	case apply.Succeeded:
		mark = "✓"
	case apply.Failed:
		mark = "✗"
	default:
		mark = "-"
	}
	line := fmt.Sprintf("%s %s: %s", mark, o.Subject, o.Instruction)
	switch {
	case o.Err != nil:
		line += fmt.Sprintf(": %v", o.Err)
	case o.Status == apply.Skipped:
		line += " (skipped)"
	}
	return line
}

// PrintOutcomes lists what happened to every instruction of a run.
func PrintOutcomes(outcomes []apply.Outcome) {
	for _, o := range outcomes {
		_, _ = outcomeColor(o.Status).Printf("  %s\n", outcomeLine(o))
	}
}

// PrintTable prints rows under a header, padding each column to its widest cell.
func PrintTable(headers []string, rows [][]string) {
	if len(headers) == 0 || len(rows) == 0 {
		return
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	cells := make([]string, len(widths))
	for i, h := range headers {
		cells[i] = fmt.Sprintf("%-*s", widths[i], h)
	}
	_, _ = headerColor.Printf("  %s\n", strings.Join(cells, "  "))

	for i, w := range widths {
		cells[i] = strings.Repeat("-", w)
	}
	fmt.Printf("  %s\n", strings.Join(cells, "  "))

	for _, row := range rows {
		for i := range widths {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			cells[i] = fmt.Sprintf("%-*s", widths[i], cell)
		}
		_, _ = valueColor.Printf("  %s\n", strings.TrimRight(strings.Join(cells, "  "), " "))
	}
}

func PrintEmptyState(msg string) {
	_, _ = dimColor.Printf("  %s\n", msg)
}

// PrintCount returns "1 thing" or "n things".
func PrintCount(count int, singular, plural string) string {
	if count == 1 {
		return fmt.Sprintf("%d %s", count, singular)
	}
	return fmt.Sprintf("%d %s", count, plural)
}
