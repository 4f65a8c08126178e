package apply

import "errors"

var (
	// ErrNoOwner indicates that no backend owns a path that must be restored.
	ErrNoOwner = errors.New("no package owns path")

	// ErrNoOriginal indicates that the owning package has no pristine copy of a path.
	ErrNoOriginal = errors.New("original contents unavailable")

	// ErrSymlinkMode indicates a mode change on a symlink.
	ErrSymlinkMode = errors.New("cannot set mode on symlink")

	// ErrWrongType indicates a path that exists with an incompatible type.
	ErrWrongType = errors.New("path exists with a different type")
)
