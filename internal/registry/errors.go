package registry

import "errors"

// Domain-specific errors for registry construction.
var (
	// ErrEmptyName is returned for a descriptor without a name.
	ErrEmptyName = errors.New("registry: process name is empty")

	// ErrDuplicateName is returned when two descriptors share a name.
	ErrDuplicateName = errors.New("registry: duplicate process name")

	// ErrNoCondition is returned for a descriptor without a predicate.
	ErrNoCondition = errors.New("registry: process has no condition")

	// ErrInvalidKind is returned for a descriptor with an unknown kind.
	ErrInvalidKind = errors.New("registry: invalid process kind")
)
