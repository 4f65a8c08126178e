package desired

import "errors"

var (
	ErrInvalidEntry = errors.New("invalid file entry")
	ErrConflict     = errors.New("conflicting desired state")
)
