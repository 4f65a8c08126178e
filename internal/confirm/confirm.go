// Package confirm implements a blocking single-keypress multiple choice prompt.
//
// A MultiOptionConfirm is assembled with a Builder and is immutable once
// built. Prompt reads keys from a Terminal until the user picks one of the
// options, presses Enter to accept the default, or aborts with Escape or an
// interrupt.
package confirm

import (
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/fatih/color"
)

// KeyKind classifies a key press.
type KeyKind uint8

const (
	KeyOther KeyKind = iota
	KeyEnter
	KeyEscape
	KeyInterrupt
	KeyChar
)

// Key is a single key press. Char is only meaningful for KeyChar.
type Key struct {
	Kind KeyKind
	Char rune
}

// Terminal is the input/output channel a prompt runs on.
type Terminal interface {
	io.Writer
	// ReadKey blocks until a key is pressed.
	ReadKey() (Key, error)
}

// Option is one choice offered by a prompt.
type Option struct {
	Trigger rune
	Label   string
}

// Style controls how a prompt is rendered. It never changes behaviour.
type Style struct {
	Prompt  *color.Color
	Trigger *color.Color
	Default *color.Color
	Error   *color.Color
}

// DefaultStyle returns the style used when none is set.
func DefaultStyle() Style {
	return Style{
		Prompt:  color.New(color.Bold),
		Trigger: color.New(color.FgCyan, color.Bold),
		Default: color.New(color.FgGreen, color.Bold, color.Underline),
		Error:   color.New(color.FgRed),
	}
}

// MultiOptionConfirm is a validated, immutable prompt.
type MultiOptionConfirm struct {
	prompt     string
	options    []Option
	defaultKey rune
	hasDefault bool
	style      Style
}

// Builder accumulates prompt settings. Validation happens in Build.
type Builder struct {
	prompt     string
	options    []Option
	defaultKey rune
	hasDefault bool
	style      *Style
}

func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) Prompt(text string) *Builder {
	b.prompt = text
	return b
}

func (b *Builder) Option(trigger rune, label string) *Builder {
	b.options = append(b.options, Option{Trigger: trigger, Label: label})
	return b
}

func (b *Builder) Default(trigger rune) *Builder {
	b.defaultKey = trigger
	b.hasDefault = true
	return b
}

func (b *Builder) Style(s Style) *Builder {
	b.style = &s
	return b
}

// Build validates the accumulated settings and returns the prompt.
func (b *Builder) Build() (*MultiOptionConfirm, error) {
	if len(b.options) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewOptions, len(b.options))
	}

	seen := make(map[rune]bool, len(b.options))
	for _, opt := range b.options {
		if !unicode.IsPrint(opt.Trigger) || unicode.IsSpace(opt.Trigger) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTrigger, opt.Trigger)
		}
		lower := unicode.ToLower(opt.Trigger)
		if seen[lower] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateTrigger, opt.Trigger)
		}
		seen[lower] = true
	}

	m := &MultiOptionConfirm{
		prompt:  b.prompt,
		options: append([]Option(nil), b.options...),
		style:   DefaultStyle(),
	}
	if b.style != nil {
		m.style = *b.style
	}
	if b.hasDefault {
		opt, ok := m.find(b.defaultKey)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownDefault, b.defaultKey)
		}
		m.defaultKey = opt.Trigger
		m.hasDefault = true
	}
	return m, nil
}

// Options returns a copy of the configured options.
func (m *MultiOptionConfirm) Options() []Option {
	return append([]Option(nil), m.options...)
}

// Default returns the default trigger, if any.
func (m *MultiOptionConfirm) Default() (rune, bool) {
	return m.defaultKey, m.hasDefault
}

// Prompt renders the prompt on term and blocks until the user chooses. It
// returns the trigger of the chosen option as configured, regardless of the
// case typed. Escape and interrupt return ErrAborted.
func (m *MultiOptionConfirm) Prompt(term Terminal) (rune, error) {
	for {
		if _, err := io.WriteString(term, m.render()); err != nil {
			return 0, fmt.Errorf("failed to write prompt: %w", err)
		}

		key, err := term.ReadKey()
		if err != nil {
			return 0, fmt.Errorf("failed to read key: %w", err)
		}

		switch key.Kind {
		case KeyEnter:
			if m.hasDefault {
				m.echo(term, m.defaultKey)
				return m.defaultKey, nil
			}
			m.complain(term, "No default, choose one of the options")
		case KeyEscape, KeyInterrupt:
			_, _ = io.WriteString(term, "\r\n")
			return 0, ErrAborted
		case KeyChar:
			if opt, ok := m.find(key.Char); ok {
				m.echo(term, opt.Trigger)
				return opt.Trigger, nil
			}
			m.complain(term, fmt.Sprintf("Invalid choice %q", key.Char))
		default:
			_, _ = io.WriteString(term, "\r\n")
		}
	}
}

func (m *MultiOptionConfirm) find(r rune) (Option, bool) {
	lower := unicode.ToLower(r)
	for _, opt := range m.options {
		if unicode.ToLower(opt.Trigger) == lower {
			return opt, true
		}
	}
	return Option{}, false
}

// render produces "Prompt [y] Yes / [N] No / [d] Diff: ". The default trigger
// is shown upper case.
func (m *MultiOptionConfirm) render() string {
	var sb strings.Builder
	if m.prompt != "" {
		sb.WriteString(sprint(m.style.Prompt, m.prompt))
		sb.WriteString(" ")
	}
	for i, opt := range m.options {
		if i > 0 {
			sb.WriteString(" / ")
		}
		if m.hasDefault && opt.Trigger == m.defaultKey {
			sb.WriteString(sprint(m.style.Default, "["+string(unicode.ToUpper(opt.Trigger))+"]"))
		} else {
			sb.WriteString(sprint(m.style.Trigger, "["+string(opt.Trigger)+"]"))
		}
		sb.WriteString(" ")
		sb.WriteString(opt.Label)
	}
	sb.WriteString(": ")
	return sb.String()
}

func (m *MultiOptionConfirm) echo(term Terminal, r rune) {
	_, _ = io.WriteString(term, string(r)+"\r\n")
}

func (m *MultiOptionConfirm) complain(term Terminal, msg string) {
	_, _ = io.WriteString(term, "\r\n"+sprint(m.style.Error, msg)+"\r\n")
}

func sprint(c *color.Color, s string) string {
	if c == nil {
		return s
	}
	return c.Sprint(s)
}
