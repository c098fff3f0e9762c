package tree

import "errors"

// Errors reported for malformed descriptor sets. A build that fails with any of these
// returns no tree.
var (
	ErrMissingFieldNumber = errors.New("missing field id")
	ErrIllegalFieldNumber = errors.New("illegal field id")
	ErrIllegalLabel       = errors.New("illegal label")
	ErrIllegalType        = errors.New("illegal type")
	ErrIllegalOneofIndex  = errors.New("illegal oneof index")
	ErrDuplicateName      = errors.New("duplicate name")
	ErrDuplicateID        = errors.New("duplicate id")
	ErrNameConflict       = errors.New("path conflicts with non-namespace objects")
)
