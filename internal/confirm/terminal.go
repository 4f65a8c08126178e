package confirm

import (
	"fmt"
	"io"
	"os"
	"unicode"
	"unicode/utf8"

	"github.com/mattn/go-isatty"
	"golang.org/x/sys/unix"
)

// TTY is a Terminal over the process's controlling terminal. Stdin is put in
// raw mode for the duration of each ReadKey call.
type TTY struct {
	in  *os.File
	out io.Writer
}

// OpenTTY returns a TTY reading from stdin and writing to stderr.
func OpenTTY() (*TTY, error) {
	return NewTTY(os.Stdin, os.Stderr)
}

// NewTTY returns a TTY reading from in. It fails with ErrNoTerminal when in is
// not a terminal.
func NewTTY(in *os.File, out io.Writer) (*TTY, error) {
	fd := in.Fd()
	if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
		return nil, ErrNoTerminal
	}
	return &TTY{in: in, out: out}, nil
}

func (t *TTY) Write(p []byte) (int, error) {
	return t.out.Write(p)
}

// ReadKey reads one key press in raw mode. Multi-byte escape sequences such
// as arrow keys are reported as KeyOther.
func (t *TTY) ReadKey() (Key, error) {
	fd := int(t.in.Fd())
	restore, err := makeRaw(fd)
	if err != nil {
		return Key{}, err
	}
	defer restore()

	buf := make([]byte, 16)
	n, err := t.in.Read(buf)
	if err != nil {
		return Key{}, fmt.Errorf("failed to read terminal: %w", err)
	}
	return decodeKey(buf[:n]), nil
}

func decodeKey(b []byte) Key {
	if len(b) == 0 {
		return Key{Kind: KeyOther}
	}
	switch b[0] {
	case '\r', '\n':
		return Key{Kind: KeyEnter}
	case 0x03:
		return Key{Kind: KeyInterrupt}
	case 0x1b:
		if len(b) == 1 {
			return Key{Kind: KeyEscape}
		}
		return Key{Kind: KeyOther}
	}
	r, size := utf8.DecodeRune(b)
	if r == utf8.RuneError || size != len(b) || !unicode.IsPrint(r) {
		return Key{Kind: KeyOther}
	}
	return Key{Kind: KeyChar, Char: r}
}

// makeRaw disables canonical mode, echo and signal generation so that a
// single key press, including Ctrl-C, is delivered as a byte.
func makeRaw(fd int) (func(), error) {
	old, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
	if err != nil {
		return nil, fmt.Errorf("failed to get terminal attributes: %w", err)
	}

	raw := *old
	raw.Iflag &^= unix.ICRNL | unix.IXON | unix.ISTRIP | unix.INLCR | unix.IGNCR
	raw.Lflag &^= unix.ECHO | unix.ICANON | unix.ISIG | unix.IEXTEN
	raw.Cc[unix.VMIN] = 1
	raw.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(fd, ioctlSetTermios, &raw); err != nil {
		return nil, fmt.Errorf("failed to set raw mode: %w", err)
	}
	return func() {
		_ = unix.IoctlSetTermios(fd, ioctlSetTermios, old)
	}, nil
}
