package registry

import (
	"context"
	"time"

	"github.com/nerrad567/homectl-core/internal/integration"
)

// Op names a registry operation in a Record.
type Op string

// Operations reported to observers.
const (
	OpLoad     Op = "load"
	OpRegister Op = "register"
	OpStart    Op = "start"
	OpSetState Op = "set_state"
	OpAction   Op = "action"
	OpStop     Op = "stop"
)

// Record describes one completed handler call.
type Record struct {
	Op            Op
	IntegrationID integration.ID
	Kind          string
	DeviceID      string
	Action        string
	Duration      time.Duration
	Err           error
	Time          time.Time
}

// Observer is notified after each handler call, once the table lock has
// been released. Observe runs on the caller's goroutine and should return
// quickly; it cannot change the call's result.
type Observer interface {
	Observe(ctx context.Context, rec Record)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, rec Record)

// Observe implements Observer.
func (f ObserverFunc) Observe(ctx context.Context, rec Record) {
	f(ctx, rec)
}
