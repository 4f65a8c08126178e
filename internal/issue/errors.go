package issue

import "errors"

// ErrBadPattern indicates an allow-list glob that cannot be parsed.
var ErrBadPattern = errors.New("invalid glob pattern")
