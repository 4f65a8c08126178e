package backend

import "errors"

var (
	// ErrUnsupported is returned by backends for capabilities they lack.
	ErrUnsupported = errors.New("operation not supported by backend")

	ErrDuplicateBackend = errors.New("backend already registered")
	ErrUnknownBackend   = errors.New("unknown backend")
)
