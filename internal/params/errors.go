package params

import "errors"

// Domain errors for the params package.
//
//	if errors.Is(err, params.ErrUnknownKey) {
//	    // key is not in the key table
//	}
var (
	// ErrUnknownKey is returned when a key has no definition in the key table.
	ErrUnknownKey = errors.New("params: unknown key")

	// ErrUnknownScope is returned when the key table names a scope that does not exist.
	ErrUnknownScope = errors.New("params: unknown scope")

	// ErrInvalidTable is returned when the key table cannot be parsed.
	ErrInvalidTable = errors.New("params: invalid key table")
)
