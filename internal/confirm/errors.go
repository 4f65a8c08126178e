package confirm

import "errors"

var (
	// ErrAborted is returned when the user presses Escape or interrupts.
	ErrAborted = errors.New("aborted by user")

	// ErrNoTerminal indicates stdin is not a terminal.
	ErrNoTerminal = errors.New("stdin is not a terminal")

	ErrTooFewOptions    = errors.New("at least two options are required")
	ErrDuplicateTrigger = errors.New("duplicate option trigger")
	ErrInvalidTrigger   = errors.New("option trigger must be a printable character")
	ErrUnknownDefault   = errors.New("default is not one of the options")
)
