package event

import "errors"

var (
	// ErrClosed is returned when sending on a closed (or zero-value) channel.
	ErrClosed = errors.New("event: channel closed")

	// ErrFull is returned by TrySend when the channel buffer is full.
	ErrFull = errors.New("event: channel full")
)
