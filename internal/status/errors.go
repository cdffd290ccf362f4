package status

import "errors"

// Domain errors for status publication.
var (
	// ErrEncode is returned when a ManagerState cannot be marshalled.
	ErrEncode = errors.New("status: encoding managerState")

	// ErrPublish wraps a failed delivery to one sink.
	ErrPublish = errors.New("status: publish failed")
)
