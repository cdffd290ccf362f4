package vehicle

import "errors"

// ErrDecode is returned when a vehicle message cannot be decoded.
var ErrDecode = errors.New("vehicle: decode failed")
