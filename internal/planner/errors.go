package planner

import "errors"

// ErrUnknownPolicy indicates a left-only policy name that is not recognised.
var ErrUnknownPolicy = errors.New("unknown left-only policy")
