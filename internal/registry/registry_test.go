package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nerrad567/homectl-core/internal/device"
	"github.com/nerrad567/homectl-core/internal/event"
	"github.com/nerrad567/homectl-core/internal/integration"
)

// fakeHandler counts every call made to it.
type fakeHandler struct {
	kind string

	mu        sync.Mutex
	registers int
	starts    int
	sets      int
	actions   int
	stops     int
	lastState *device.Device

	registerErr error
	startErr    error
	stopErr     error
	onSet       func(ctx context.Context) error
	onAction    func(ctx context.Context) error
}

func (f *fakeHandler) Register(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registers++
	return f.registerErr
}

func (f *fakeHandler) Start(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	return f.startErr
}

func (f *fakeHandler) SetIntegrationDeviceState(ctx context.Context, d *device.Device) error {
	f.mu.Lock()
	f.sets++
	f.lastState = d
	hook := f.onSet
	f.mu.Unlock()
	if hook != nil {
		return hook(ctx)
	}
	return nil
}

func (f *fakeHandler) RunIntegrationAction(ctx context.Context, _ integration.ActionPayload) error {
	f.mu.Lock()
	f.actions++
	hook := f.onAction
	f.mu.Unlock()
	if hook != nil {
		return hook(ctx)
	}
	return nil
}

func (f *fakeHandler) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return f.stopErr
}

func (f *fakeHandler) calls() (registers, starts, sets, actions int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.registers, f.starts, f.sets, f.actions
}

// fakeFactory builds fakeHandlers for the kinds "fake" and "other" and keeps
// every handler it built, most recent last.
type fakeFactory struct {
	mu      sync.Mutex
	built   map[integration.ID][]*fakeHandler
	prepare func(id integration.ID, h *fakeHandler)
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{built: make(map[integration.ID][]*fakeHandler)}
}

func (f *fakeFactory) load(kind string, id integration.ID, _ integration.Config, _ event.Sender) (integration.Integration, error) {
	if kind != "fake" && kind != "other" {
		return nil, fmt.Errorf("%w: unknown module name %q", integration.ErrUnknownKind, kind)
	}
	h := &fakeHandler{kind: kind}
	if f.prepare != nil {
		f.prepare(id, h)
	}
	f.mu.Lock()
	f.built[id] = append(f.built[id], h)
	f.mu.Unlock()
	return h, nil
}

func (f *fakeFactory) last(id integration.ID) *fakeHandler {
	f.mu.Lock()
	defer f.mu.Unlock()
	hs := f.built[id]
	if len(hs) == 0 {
		return nil
	}
	return hs[len(hs)-1]
}

func newFakeRegistry(t *testing.T, opts ...Option) (*Registry, *fakeFactory) {
	t.Helper()
	ff := newFakeFactory()
	opts = append([]Option{WithFactory(ff.load)}, opts...)
	return New(event.Sender{}, opts...), ff
}

func mustLoad(t *testing.T, r *Registry, kind string, ids ...integration.ID) {
	t.Helper()
	for _, id := range ids {
		if err := r.LoadIntegration(context.Background(), kind, id, integration.Config{}); err != nil {
			t.Fatalf("LoadIntegration(%s, %s) error = %v", kind, id, err)
		}
	}
}

func mustLen(t *testing.T, r *Registry) int {
	t.Helper()
	n, err := r.Len(context.Background())
	if err != nil {
		t.Fatalf("Len() error = %v", err)
	}
	return n
}

// =============================================================================
// Load Tests
// =============================================================================

func TestLoadIntegration_SameIDTwice(t *testing.T) {
	r, ff := newFakeRegistry(t)
	mustLoad(t, r, "fake", "x", "x")

	if n := mustLen(t, r); n != 1 {
		t.Fatalf("Len() = %d, want 1", n)
	}

	second := ff.last("x")
	if err := r.RunIntegrationAction(context.Background(), "x", "ping"); err != nil {
		t.Fatalf("RunIntegrationAction() error = %v", err)
	}
	if _, _, _, actions := second.calls(); actions != 1 {
		t.Errorf("second handler actions = %d, want 1", actions)
	}
	if _, _, _, actions := ff.built["x"][0].calls(); actions != 0 {
		t.Errorf("first handler actions = %d, want 0", actions)
	}
}

func TestLoadIntegration_SameIDDifferentKinds(t *testing.T) {
	r, _ := newFakeRegistry(t)
	mustLoad(t, r, "fake", "x")
	mustLoad(t, r, "other", "x")

	infos, err := r.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(infos) != 1 || infos[0].ID != "x" || infos[0].Kind != "other" {
		t.Errorf("List() = %+v, want [{x other}]", infos)
	}
}

func TestLoadIntegration_ReplacedHandlerStopped(t *testing.T) {
	obs := &recordingObserver{}
	stopErr := errors.New("worker wedged")
	r, ff := newFakeRegistry(t, WithObserver(obs))
	mustLoad(t, r, "fake", "x")
	first := ff.last("x")
	first.stopErr = stopErr

	if err := r.RunStartPass(context.Background()); err != nil {
		t.Fatalf("RunStartPass() error = %v", err)
	}
	if err := r.LoadIntegration(context.Background(), "other", "x", integration.Config{}); err != nil {
		t.Fatalf("replacing LoadIntegration() error = %v", err)
	}

	if first.stops != 1 {
		t.Fatalf("replaced handler stops = %d, want 1", first.stops)
	}
	second := ff.last("x")
	if second.stops != 0 {
		t.Errorf("new handler stops = %d, want 0", second.stops)
	}

	want := []Op{OpLoad, OpStart, OpLoad, OpStop}
	if len(obs.records) != len(want) {
		t.Fatalf("records = %+v, want ops %v", obs.records, want)
	}
	for i, op := range want {
		if obs.records[i].Op != op {
			t.Errorf("records[%d].Op = %s, want %s", i, obs.records[i].Op, op)
		}
	}
	if stop := obs.records[3]; stop.Kind != "fake" || !errors.Is(stop.Err, stopErr) {
		t.Errorf("stop record = %+v, want kind fake with stop error", stop)
	}

	// Close only reaches the current handler.
	if err := r.Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if first.stops != 1 || second.stops != 1 {
		t.Errorf("after Close stops = %d/%d, want 1/1", first.stops, second.stops)
	}
}

func TestLoadIntegration_UnknownKind(t *testing.T) {
	r, _ := newFakeRegistry(t)
	mustLoad(t, r, "fake", "a", "b")

	err := r.LoadIntegration(context.Background(), "hue", "c", integration.Config{})
	if !errors.Is(err, integration.ErrUnknownKind) {
		t.Fatalf("error = %v, want ErrUnknownKind", err)
	}
	if !strings.Contains(err.Error(), `"hue"`) {
		t.Errorf("error %q does not name the kind", err)
	}
	if n := mustLen(t, r); n != 2 {
		t.Errorf("Len() = %d, want 2", n)
	}
}

func TestLoadIntegration_ConstructorErrorUntouched(t *testing.T) {
	ctorErr := errors.New("bad config")
	r := New(event.Sender{}, WithFactory(func(string, integration.ID, integration.Config, event.Sender) (integration.Integration, error) {
		return nil, ctorErr
	}))

	if err := r.LoadIntegration(context.Background(), "fake", "a", integration.Config{}); err != ctorErr {
		t.Errorf("error = %v, want factory error returned as is", err)
	}
	if n := mustLen(t, r); n != 0 {
		t.Errorf("Len() = %d, want 0", n)
	}
}

// =============================================================================
// Dispatch Tests
// =============================================================================

func TestDispatch_NotFound(t *testing.T) {
	r, ff := newFakeRegistry(t)
	mustLoad(t, r, "fake", "present")
	ctx := context.Background()

	err := r.SetIntegrationDeviceState(ctx, &device.Device{ID: "lamp", IntegrationID: "absent"})
	if !errors.Is(err, integration.ErrNotFound) || !strings.Contains(err.Error(), `"absent"`) {
		t.Errorf("SetIntegrationDeviceState() error = %v, want ErrNotFound naming absent", err)
	}

	err = r.RunIntegrationAction(ctx, "absent", "clean_house")
	if !errors.Is(err, integration.ErrNotFound) {
		t.Errorf("RunIntegrationAction() error = %v, want ErrNotFound", err)
	}

	regs, starts, sets, actions := ff.last("present").calls()
	if regs+starts+sets+actions != 0 {
		t.Errorf("handler invoked %d times, want 0", regs+starts+sets+actions)
	}
}

func TestRunIntegrationAction_MissingOnEmptyRegistry(t *testing.T) {
	r, _ := newFakeRegistry(t)

	err := r.RunIntegrationAction(context.Background(), "missing", "identify")
	if !errors.Is(err, integration.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	if !strings.Contains(err.Error(), "missing") {
		t.Errorf("error %q does not name the id", err)
	}
}

func TestSetIntegrationDeviceState_ForwardsResult(t *testing.T) {
	backendErr := errors.New("device unreachable")
	r, ff := newFakeRegistry(t)
	ff.prepare = func(_ integration.ID, h *fakeHandler) {
		h.onSet = func(context.Context) error { return backendErr }
	}
	mustLoad(t, r, "fake", "lights")

	d := &device.Device{ID: "lamp", IntegrationID: "lights", State: device.State{Power: true}}
	if err := r.SetIntegrationDeviceState(context.Background(), d); err != backendErr {
		t.Errorf("error = %v, want backend error unchanged", err)
	}
	if got := ff.last("lights").lastState; got != d {
		t.Errorf("handler received %p, want %p", got, d)
	}
}

func TestSetIntegrationDeviceState_NilDevice(t *testing.T) {
	r, _ := newFakeRegistry(t)
	if err := r.SetIntegrationDeviceState(context.Background(), nil); !errors.Is(err, device.ErrInvalidDevice) {
		t.Errorf("error = %v, want ErrInvalidDevice", err)
	}
}

// =============================================================================
// Pass Tests
// =============================================================================

func TestRunRegisterPass_AbortsOnFailure(t *testing.T) {
	handlerErr := errors.New("discovery failed")
	r, ff := newFakeRegistry(t)
	ff.prepare = func(id integration.ID, h *fakeHandler) {
		if id == "c" {
			h.registerErr = handlerErr
		}
	}
	mustLoad(t, r, "fake", "e", "d", "c", "b", "a")

	err := r.RunRegisterPass(context.Background())
	if !errors.Is(err, handlerErr) {
		t.Fatalf("RunRegisterPass() error = %v, want handler error", err)
	}
	if !strings.Contains(err.Error(), "integration c") {
		t.Errorf("error %q does not name the integration", err)
	}

	want := map[integration.ID]int{"a": 1, "b": 1, "c": 1, "d": 0, "e": 0}
	for id, n := range want {
		if regs, _, _, _ := ff.last(id).calls(); regs != n {
			t.Errorf("%s registers = %d, want %d", id, regs, n)
		}
	}
}

func TestRunStartPass_AbortsOnFailure(t *testing.T) {
	handlerErr := errors.New("connect refused")
	r, ff := newFakeRegistry(t)
	ff.prepare = func(id integration.ID, h *fakeHandler) {
		if id == "a" {
			h.startErr = handlerErr
		}
	}
	mustLoad(t, r, "fake", "a", "b")

	if err := r.RunStartPass(context.Background()); !errors.Is(err, handlerErr) {
		t.Fatalf("RunStartPass() error = %v, want handler error", err)
	}
	if _, starts, _, _ := ff.last("b").calls(); starts != 0 {
		t.Errorf("b starts = %d, want 0", starts)
	}
}

func TestPasses_EmptyRegistry(t *testing.T) {
	r, _ := newFakeRegistry(t)
	if err := r.RunRegisterPass(context.Background()); err != nil {
		t.Errorf("RunRegisterPass() error = %v", err)
	}
	if err := r.RunStartPass(context.Background()); err != nil {
		t.Errorf("RunStartPass() error = %v", err)
	}
}

// =============================================================================
// Concurrency Tests
// =============================================================================

func TestDispatch_Serialised(t *testing.T) {
	var active, maxActive atomic.Int32
	hook := func(context.Context) error {
		n := active.Add(1)
		for {
			m := maxActive.Load()
			if n <= m || maxActive.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		active.Add(-1)
		return nil
	}

	r, ff := newFakeRegistry(t)
	ff.prepare = func(_ integration.ID, h *fakeHandler) { h.onSet = hook }
	mustLoad(t, r, "fake", "one", "two")

	var wg sync.WaitGroup
	for _, id := range []string{"one", "two"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				d := &device.Device{ID: "dev", IntegrationID: id}
				if err := r.SetIntegrationDeviceState(context.Background(), d); err != nil {
					t.Errorf("SetIntegrationDeviceState(%s) error = %v", id, err)
				}
			}
		}(id)
	}
	wg.Wait()

	if maxActive.Load() != 1 {
		t.Errorf("max concurrent handler calls = %d, want 1", maxActive.Load())
	}
	for _, id := range []integration.ID{"one", "two"} {
		if _, _, sets, _ := ff.last(id).calls(); sets != 20 {
			t.Errorf("%s sets = %d, want 20", id, sets)
		}
	}
}

func TestConcurrentLoadAndDispatch(t *testing.T) {
	r, _ := newFakeRegistry(t)
	mustLoad(t, r, "fake", "base")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			id := integration.ID(fmt.Sprintf("dyn-%d", i))
			if err := r.LoadIntegration(context.Background(), "fake", id, integration.Config{}); err != nil {
				t.Errorf("LoadIntegration() error = %v", err)
			}
		}(i)
		go func() {
			defer wg.Done()
			if err := r.RunIntegrationAction(context.Background(), "base", "ping"); err != nil {
				t.Errorf("RunIntegrationAction() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if n := mustLen(t, r); n != 11 {
		t.Errorf("Len() = %d, want 11", n)
	}
}

func TestAcquire_HonoursContext(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})

	r, ff := newFakeRegistry(t)
	ff.prepare = func(_ integration.ID, h *fakeHandler) {
		h.onAction = func(context.Context) error {
			close(entered)
			<-release
			return nil
		}
	}
	mustLoad(t, r, "fake", "slow")

	done := make(chan error, 1)
	go func() { done <- r.RunIntegrationAction(context.Background(), "slow", "wait") }()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := r.Len(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Len() while locked error = %v, want DeadlineExceeded", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Errorf("RunIntegrationAction() error = %v", err)
	}
}

func TestCallTimeout(t *testing.T) {
	r, ff := newFakeRegistry(t, WithCallTimeout(20*time.Millisecond))
	ff.prepare = func(_ integration.ID, h *fakeHandler) {
		h.onAction = func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}
	}
	mustLoad(t, r, "fake", "stuck")

	err := r.RunIntegrationAction(context.Background(), "stuck", "spin")
	if !errors.Is(err, integration.ErrCallTimeout) {
		t.Fatalf("error = %v, want ErrCallTimeout", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want handler error preserved", err)
	}

	if n := mustLen(t, r); n != 1 {
		t.Errorf("Len() after timeout = %d, want 1", n)
	}
}

// =============================================================================
// Observer and Close Tests
// =============================================================================

type recordingObserver struct {
	mu      sync.Mutex
	records []Record
}

func (o *recordingObserver) Observe(_ context.Context, rec Record) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.records = append(o.records, rec)
}

func TestObserver_ReceivesRecords(t *testing.T) {
	obs := &recordingObserver{}
	backendErr := errors.New("rejected")
	r, ff := newFakeRegistry(t, WithObserver(obs))
	ff.prepare = func(_ integration.ID, h *fakeHandler) {
		h.onAction = func(context.Context) error { return backendErr }
	}
	mustLoad(t, r, "fake", "lights")
	ctx := context.Background()

	if err := r.RunRegisterPass(ctx); err != nil {
		t.Fatalf("RunRegisterPass() error = %v", err)
	}
	if err := r.SetIntegrationDeviceState(ctx, &device.Device{ID: "lamp", IntegrationID: "lights"}); err != nil {
		t.Fatalf("SetIntegrationDeviceState() error = %v", err)
	}
	_ = r.RunIntegrationAction(ctx, "lights", "flash")

	want := []Op{OpLoad, OpRegister, OpSetState, OpAction}
	if len(obs.records) != len(want) {
		t.Fatalf("records = %d, want %d", len(obs.records), len(want))
	}
	for i, op := range want {
		if obs.records[i].Op != op || obs.records[i].IntegrationID != "lights" || obs.records[i].Kind != "fake" {
			t.Errorf("records[%d] = %+v, want op %s", i, obs.records[i], op)
		}
	}
	if obs.records[2].DeviceID != "lamp" {
		t.Errorf("set_state DeviceID = %q, want lamp", obs.records[2].DeviceID)
	}
	if obs.records[3].Action != "flash" || obs.records[3].Err != backendErr {
		t.Errorf("action record = %+v", obs.records[3])
	}
}

func TestObserver_CanReenterRegistry(t *testing.T) {
	var r *Registry
	var lens []int
	obs := ObserverFunc(func(ctx context.Context, _ Record) {
		n, err := r.Len(ctx)
		if err != nil {
			t.Errorf("Len() inside observer error = %v", err)
		}
		lens = append(lens, n)
	})

	r, _ = newFakeRegistry(t, WithObserver(obs))
	mustLoad(t, r, "fake", "a")

	if len(lens) != 1 || lens[0] != 1 {
		t.Errorf("observer saw lens %v, want [1]", lens)
	}
}

func TestClose_StopsAllHandlers(t *testing.T) {
	stopErr := errors.New("stuck socket")
	r, ff := newFakeRegistry(t)
	ff.prepare = func(id integration.ID, h *fakeHandler) {
		if id == "a" {
			h.stopErr = stopErr
		}
	}
	mustLoad(t, r, "fake", "a", "b")

	err := r.Close(context.Background())
	if !errors.Is(err, stopErr) {
		t.Errorf("Close() error = %v, want stop error", err)
	}
	for _, id := range []integration.ID{"a", "b"} {
		if ff.last(id).stops != 1 {
			t.Errorf("%s stops = %d, want 1", id, ff.last(id).stops)
		}
	}
}
