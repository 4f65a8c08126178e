package scan

import "errors"

// ErrBadPattern indicates an ignore glob that cannot be parsed.
var ErrBadPattern = errors.New("invalid ignore pattern")
