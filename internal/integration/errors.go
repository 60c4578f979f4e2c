package integration

import "errors"

// Domain errors for integrations and the registry.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, integration.ErrNotFound) {
//	    // no integration with that id
//	}
var (
	// ErrUnknownKind is returned when a configuration entry names a kind
	// that is not built in.
	ErrUnknownKind = errors.New("integration: unknown kind")

	// ErrInvalidConfig is returned when a kind rejects its configuration.
	ErrInvalidConfig = errors.New("integration: invalid config")

	// ErrNotFound is returned when a dispatch targets an integration id
	// that is not loaded.
	ErrNotFound = errors.New("integration: not found")

	// ErrCallTimeout is returned when a handler call exceeds the registry's
	// per-call bound.
	ErrCallTimeout = errors.New("integration: call timed out")

	// ErrUnknownDevice is returned by handlers when a state push names a
	// device they do not own.
	ErrUnknownDevice = errors.New("integration: unknown device")

	// ErrUnsupportedAction is returned by handlers that reject an action payload.
	ErrUnsupportedAction = errors.New("integration: unsupported action")
)
