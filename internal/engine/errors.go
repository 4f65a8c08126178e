package engine

import "errors"

var (
	// ErrConflict indicates the desired state contradicts itself.
	ErrConflict = errors.New("conflict detected")

	// ErrUnknownPackageManager indicates desired packages for a backend that
	// is not configured.
	ErrUnknownPackageManager = errors.New("unknown package manager")

	// ErrIncomplete indicates that some instructions failed.
	ErrIncomplete = errors.New("some instructions failed")
)
