package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when no device has the requested id or name.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrInvalidRecord is returned when a record carries no identifier.
	ErrInvalidRecord = errors.New("device: invalid record")
)
