package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/nerrad567/homectl-core/internal/device"
	"github.com/nerrad567/homectl-core/internal/event"
	"github.com/nerrad567/homectl-core/internal/integration"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Info describes one loaded integration.
type Info struct {
	ID   integration.ID `json:"id"`
	Kind string         `json:"kind"`
}

type entry struct {
	kind    string
	handler integration.Integration
}

// Registry owns the loaded integrations.
//
// All public methods are safe for concurrent use and hold one table-wide
// lock for their whole duration.
type Registry struct {
	lock  *semaphore.Weighted
	table map[integration.ID]entry

	sender      event.Sender
	factory     Factory
	callTimeout time.Duration
	observers   []Observer
	logger      Logger
}

// New creates an empty registry. sender is cloned into every handler it loads.
func New(sender event.Sender, opts ...Option) *Registry {
	r := &Registry{
		lock:    semaphore.NewWeighted(1),
		table:   make(map[integration.ID]entry),
		sender:  sender,
		factory: Load,
		logger:  noopLogger{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// acquire takes the table lock, giving up when ctx is done.
func (r *Registry) acquire(ctx context.Context) error {
	if err := r.lock.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("waiting for integration table: %w", err)
	}
	return nil
}

func (r *Registry) release() {
	r.lock.Release(1)
}

// LoadIntegration builds a handler of the given kind and stores it at id.
// A handler already at id is replaced and, if it is an integration.Stopper,
// stopped and reported to observers as an OpStop record. On failure the
// factory error is returned as is and the table is left unchanged.
func (r *Registry) LoadIntegration(ctx context.Context, kind string, id integration.ID, cfg integration.Config) error {
	r.logger.Info("loading integration", "kind", kind, "integration_id", id)

	if err := r.acquire(ctx); err != nil {
		return err
	}

	start := time.Now()
	h, err := r.factory(kind, id, cfg, r.sender.Clone())
	records := []Record{{Op: OpLoad, IntegrationID: id, Kind: kind, Duration: time.Since(start), Err: err, Time: start}}
	if err == nil {
		prev, replaced := r.table[id]
		r.table[id] = entry{kind: kind, handler: h}
		if replaced {
			r.logger.Warn("replacing integration", "integration_id", id, "old_kind", prev.kind, "new_kind", kind)
			if rec, ok := stopEntry(id, prev); ok {
				records = append(records, rec)
			}
		}
	}
	r.release()

	for _, rec := range records {
		if rec.Op == OpStop && rec.Err != nil {
			r.logger.Warn("stopping replaced integration failed", "integration_id", id, "kind", rec.Kind, "error", rec.Err)
		}
		r.notify(ctx, rec)
	}
	return err
}

// RunRegisterPass calls Register on every integration in ID order.
// The first failure stops the pass and is returned wrapped with the
// integration ID; integrations after it are not visited.
func (r *Registry) RunRegisterPass(ctx context.Context) error {
	return r.runPass(ctx, OpRegister, func(ctx context.Context, h integration.Integration) error {
		return h.Register(ctx)
	})
}

// RunStartPass calls Start on every integration in ID order, with the same
// failure policy as RunRegisterPass.
func (r *Registry) RunStartPass(ctx context.Context) error {
	return r.runPass(ctx, OpStart, func(ctx context.Context, h integration.Integration) error {
		return h.Start(ctx)
	})
}

func (r *Registry) runPass(ctx context.Context, op Op, fn func(context.Context, integration.Integration) error) error {
	if err := r.acquire(ctx); err != nil {
		return err
	}

	ids := r.sortedIDs()
	records := make([]Record, 0, len(ids))
	var passErr error
	for _, id := range ids {
		e := r.table[id]
		rec := r.call(ctx, op, id, e, func(ctx context.Context) error {
			return fn(ctx, e.handler)
		})
		records = append(records, rec)
		if rec.Err != nil {
			passErr = fmt.Errorf("%s integration %s: %w", op, id, rec.Err)
			break
		}
	}
	r.release()

	for _, rec := range records {
		r.notify(ctx, rec)
	}
	if passErr != nil {
		r.logger.Error("integration pass aborted", "op", op, "error", passErr)
		return passErr
	}
	r.logger.Info("integration pass complete", "op", op, "count", len(records))
	return nil
}

// SetIntegrationDeviceState forwards d to the integration named by
// d.IntegrationID and returns its result.
func (r *Registry) SetIntegrationDeviceState(ctx context.Context, d *device.Device) error {
	if d == nil {
		return fmt.Errorf("%w: nil device", device.ErrInvalidDevice)
	}
	id := integration.ID(d.IntegrationID)

	if err := r.acquire(ctx); err != nil {
		return err
	}
	e, ok := r.table[id]
	if !ok {
		r.release()
		return notFound(id)
	}
	rec := r.call(ctx, OpSetState, id, e, func(ctx context.Context) error {
		return e.handler.SetIntegrationDeviceState(ctx, d)
	})
	r.release()

	rec.DeviceID = d.ID
	r.notify(ctx, rec)
	return rec.Err
}

// RunIntegrationAction forwards payload to the integration at id and returns
// its result.
func (r *Registry) RunIntegrationAction(ctx context.Context, id integration.ID, payload integration.ActionPayload) error {
	if err := r.acquire(ctx); err != nil {
		return err
	}
	e, ok := r.table[id]
	if !ok {
		r.release()
		return notFound(id)
	}
	rec := r.call(ctx, OpAction, id, e, func(ctx context.Context) error {
		return e.handler.RunIntegrationAction(ctx, payload)
	})
	r.release()

	rec.Action = string(payload)
	r.notify(ctx, rec)
	return rec.Err
}

// Len returns the number of loaded integrations.
func (r *Registry) Len(ctx context.Context) (int, error) {
	if err := r.acquire(ctx); err != nil {
		return 0, err
	}
	defer r.release()
	return len(r.table), nil
}

// List returns the loaded integrations sorted by ID.
func (r *Registry) List(ctx context.Context) ([]Info, error) {
	if err := r.acquire(ctx); err != nil {
		return nil, err
	}
	defer r.release()

	infos := make([]Info, 0, len(r.table))
	for _, id := range r.sortedIDs() {
		infos = append(infos, Info{ID: id, Kind: r.table[id].kind})
	}
	return infos, nil
}

// Close stops every handler implementing integration.Stopper, in ID order.
// All handlers are visited; failures are joined.
func (r *Registry) Close(ctx context.Context) error {
	if err := r.acquire(ctx); err != nil {
		return err
	}

	var records []Record
	var errs []error
	for _, id := range r.sortedIDs() {
		rec, ok := stopEntry(id, r.table[id])
		if !ok {
			continue
		}
		records = append(records, rec)
		if rec.Err != nil {
			errs = append(errs, fmt.Errorf("stopping integration %s: %w", id, rec.Err))
		}
	}
	r.release()

	for _, rec := range records {
		r.notify(ctx, rec)
	}
	return errors.Join(errs...)
}

// stopEntry stops e's handler if it implements integration.Stopper.
// The caller must hold the lock.
func stopEntry(id integration.ID, e entry) (Record, bool) {
	stopper, ok := e.handler.(integration.Stopper)
	if !ok {
		return Record{}, false
	}
	start := time.Now()
	err := stopper.Stop()
	return Record{
		Op: OpStop, IntegrationID: id, Kind: e.kind,
		Duration: time.Since(start), Err: err, Time: start,
	}, true
}

// call runs fn against one handler, applying the per-call timeout.
// The caller must hold the lock.
func (r *Registry) call(ctx context.Context, op Op, id integration.ID, e entry, fn func(context.Context) error) Record {
	callCtx := ctx
	cancel := context.CancelFunc(func() {})
	if r.callTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, r.callTimeout)
	}
	defer cancel()

	start := time.Now()
	err := fn(callCtx)
	elapsed := time.Since(start)

	if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %s %s after %v: %w", integration.ErrCallTimeout, op, id, r.callTimeout, err)
	}
	if err != nil {
		r.logger.Debug("integration call failed", "op", op, "integration_id", id, "error", err)
	}

	return Record{Op: op, IntegrationID: id, Kind: e.kind, Duration: elapsed, Err: err, Time: start}
}

func (r *Registry) notify(ctx context.Context, rec Record) {
	for _, o := range r.observers {
		o.Observe(ctx, rec)
	}
}

func (r *Registry) sortedIDs() []integration.ID {
	ids := make([]integration.ID, 0, len(r.table))
	for id := range r.table {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func notFound(id integration.ID) error {
	return fmt.Errorf("%w: %q", integration.ErrNotFound, id)
}
