package merge

import "errors"

// ErrInputContract indicates an input sequence was unsorted or repeated a
// key. It is a caller bug.
var ErrInputContract = errors.New("merge input contract violated")
