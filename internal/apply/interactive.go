package apply

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/danieljhkim/hostconf/internal/confirm"
	"github.com/danieljhkim/hostconf/internal/instr"
)

// Interactive asks for confirmation of each group of instructions and hands
// accepted groups to an inner applicator. File instructions are grouped per
// path and package instructions per backend.
type Interactive struct {
	inner  Applicator
	term   confirm.Terminal
	differ *Differ
	pager  Pager
	style  confirm.Style
	log    zerolog.Logger
}

func NewInteractive(inner Applicator, term confirm.Terminal, differ *Differ, pager Pager, log zerolog.Logger) *Interactive {
	return &Interactive{
		inner:  inner,
		term:   term,
		differ: differ,
		pager:  pager,
		style:  confirm.DefaultStyle(),
		log:    log,
	}
}

// WithStyle sets the prompt colours.
func (a *Interactive) WithStyle(s confirm.Style) *Interactive {
	a.style = s
	return a
}

// ApplyPkgs confirms and applies one backend batch at a time. On abort the
// report holds everything decided so far and the error is confirm.ErrAborted.
func (a *Interactive) ApplyPkgs(ctx context.Context, entries []instr.PkgEntry) (*Report, error) {
	report := NewReport()
	for _, batch := range batches(entries) {
		name := batch[0].Ident.PackageManager
		_, _ = fmt.Fprintf(a.term, "\nPackage changes for %s:\n%s", name, a.differ.Pkgs(batch))

		ok, err := a.ask(ctx, fmt.Sprintf("Apply %s transaction?", name), func() (string, error) {
			return a.differ.Pkgs(batch), nil
		})
		if err != nil {
			return report, err
		}
		if !ok {
			a.log.Info().Str("backend", name).Msg("package batch skipped")
			for _, e := range batch {
				report.pkg(e, Skipped, nil)
			}
			continue
		}

		sub, err := a.inner.ApplyPkgs(ctx, batch)
		report.Merge(sub)
		if err != nil {
			return report, err
		}
	}
	return report, nil
}

// ApplyFs confirms and applies one path at a time, in execution order.
func (a *Interactive) ApplyFs(ctx context.Context, instrs []instr.FsInstruction) (*Report, error) {
	report := NewReport()
	for _, group := range groupFs(instrs) {
		path := group[0].Path
		_, _ = fmt.Fprintf(a.term, "\n%s:\n", path)
		for _, ins := range group {
			_, _ = fmt.Fprintf(a.term, "  %s", ins.Op)
			if ins.Comment != "" {
				_, _ = fmt.Fprintf(a.term, " (%s)", ins.Comment)
			}
			_, _ = fmt.Fprintln(a.term)
		}

		ok, err := a.ask(ctx, fmt.Sprintf("Apply changes to %s?", path), func() (string, error) {
			return a.differ.Fs(ctx, group)
		})
		if err != nil {
			return report, err
		}
		if !ok {
			a.log.Info().Str("path", path).Msg("changes skipped")
			for _, ins := range group {
				report.fs(ins, Skipped, nil)
			}
			continue
		}

		sub, err := a.inner.ApplyFs(ctx, group)
		report.Merge(sub)
		if err != nil {
			return report, err
		}
	}
	return report, nil
}

// ask prompts until the user accepts or rejects. Choosing diff shows the
// changes and asks again.
func (a *Interactive) ask(ctx context.Context, question string, diff func() (string, error)) (bool, error) {
	prompt, err := confirm.NewBuilder().
		Prompt(question).
		Option('y', "Yes").
		Option('n', "No").
		Option('d', "Diff").
		Default('n').
		Style(a.style).
		Build()
	if err != nil {
		return false, err
	}

	for {
		choice, err := prompt.Prompt(a.term)
		if err != nil {
			return false, err
		}
		switch choice {
		case 'y':
			return true, nil
		case 'n':
			return false, nil
		case 'd':
			text, err := diff()
			if err != nil {
				_, _ = fmt.Fprintf(a.term, "Cannot show changes: %v\n", err)
				continue
			}
			if err := a.pager.Show(ctx, a.term, text); err != nil {
				_, _ = fmt.Fprintf(a.term, "Cannot show changes: %v\n", err)
			}
		}
	}
}
