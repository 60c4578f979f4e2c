package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrInvalidState) {
//	    // reject the request
//	}
var (
	// ErrInvalidDevice is returned when a device is missing required fields.
	ErrInvalidDevice = errors.New("device: invalid")

	// ErrInvalidState is returned when state validation fails.
	ErrInvalidState = errors.New("device: invalid state")

	// ErrInvalidColor is returned when a colour component is out of range.
	ErrInvalidColor = errors.New("device: invalid color")
)
