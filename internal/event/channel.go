package event

import (
	"context"
	"sync"
)

// defaultBuffer is used when NewChannel is given a non-positive size.
const defaultBuffer = 64

// Channel owns the integration event stream.
//
// It is created once at startup. Producers receive a Sender; a single
// consumer (usually a Forwarder) reads Events. Close stops producers
// without closing the data channel, so a Send racing with Close never panics.
type Channel struct {
	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
}

// NewChannel creates a channel buffering up to size events.
func NewChannel(size int) *Channel {
	if size <= 0 {
		size = defaultBuffer
	}
	return &Channel{
		events: make(chan Event, size),
		done:   make(chan struct{}),
	}
}

// Sender returns a producer handle for the channel.
func (c *Channel) Sender() Sender {
	return Sender{events: c.events, done: c.done}
}

// Events returns the receive side of the channel.
func (c *Channel) Events() <-chan Event {
	return c.events
}

// Done is closed once Close has been called.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Close marks the channel closed. Subsequent sends fail with ErrClosed.
// Safe to call more than once.
func (c *Channel) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// Sender is the send-side handle integrations use to publish events.
//
// It is a small value: copying it (or calling Clone) yields another handle to
// the same channel, and any number of goroutines may send concurrently. The
// zero Sender is valid and rejects every send with ErrClosed.
type Sender struct {
	events chan<- Event
	done   <-chan struct{}
}

// Clone returns another handle to the same channel.
func (s Sender) Clone() Sender {
	return s
}

// Send publishes ev, blocking while the buffer is full.
// It returns ctx.Err() if ctx ends first and ErrClosed if the channel closes.
func (s Sender) Send(ctx context.Context, ev Event) error {
	if s.events == nil {
		return ErrClosed
	}
	select {
	case <-s.done:
		return ErrClosed
	default:
	}

	select {
	case s.events <- ev:
		return nil
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySend publishes ev without blocking. It returns ErrFull when the buffer
// has no room, which periodic producers treat as a dropped sample.
func (s Sender) TrySend(ev Event) error {
	if s.events == nil {
		return ErrClosed
	}
	select {
	case <-s.done:
		return ErrClosed
	default:
	}

	select {
	case s.events <- ev:
		return nil
	default:
		return ErrFull
	}
}
