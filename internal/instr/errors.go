package instr

import "errors"

// ErrDuplicatePackage indicates a package identity was inserted twice.
var ErrDuplicatePackage = errors.New("duplicate package")
