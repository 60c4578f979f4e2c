package influxdb

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/homectl-core/internal/device"
	"github.com/nerrad567/homectl-core/internal/event"
	"github.com/nerrad567/homectl-core/internal/infrastructure/config"
	"github.com/nerrad567/homectl-core/internal/registry"
)

// fakeServer answers pings and collects line protocol posted to /api/v2/write.
type fakeServer struct {
	*httptest.Server

	mu     sync.Mutex
	bodies []string
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	fs := &fakeServer{}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ping", "/api/v2/ping":
			w.WriteHeader(http.StatusNoContent)
		case "/api/v2/write":
			body, _ := io.ReadAll(r.Body) //nolint:errcheck // test server
			fs.mu.Lock()
			fs.bodies = append(fs.bodies, string(body))
			fs.mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(fs.Close)
	return fs
}

// waitFor polls until a posted line starts with measurement and contains
// every one of parts.
func (fs *fakeServer) waitFor(t *testing.T, measurement string, parts ...string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		fs.mu.Lock()
		lines := strings.Split(strings.Join(fs.bodies, "\n"), "\n")
		fs.mu.Unlock()
		for _, line := range lines {
			if strings.HasPrefix(line, measurement+",") && containsAll(line, parts) {
				return
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("no %s write containing %v", measurement, parts)
}

func containsAll(s string, parts []string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}

func testConfig(url string) config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           url,
		Token:         "homectl-dev-token",
		Org:           "homectl",
		Bucket:        "dispatch",
		BatchSize:     1,
		FlushInterval: 1,
	}
}

func tags(p *write.Point) map[string]string {
	m := make(map[string]string)
	for _, tag := range p.TagList() {
		m[tag.Key] = tag.Value
	}
	return m
}

func fields(p *write.Point) map[string]interface{} {
	m := make(map[string]interface{})
	for _, f := range p.FieldList() {
		m[f.Key] = f.Value
	}
	return m
}

// =============================================================================
// Connection Tests
// =============================================================================

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:8086")
	cfg.Enabled = false

	client, err := Connect(cfg)
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
	if client != nil {
		t.Error("Connect() returned a client when disabled")
	}
}

func TestConnect_Unreachable(t *testing.T) {
	_, err := Connect(testConfig("http://127.0.0.1:59999"))
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnect_HealthCheckAndClose(t *testing.T) {
	srv := newFakeServer(t)
	cfg := testConfig(srv.URL)
	cfg.BatchSize = 0
	cfg.FlushInterval = 0

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() after Close error = %v, want ErrNotConnected", err)
	}
	client.Flush()
}

// =============================================================================
// Write Tests
// =============================================================================

func TestObserve_WritesDispatchPoint(t *testing.T) {
	srv := newFakeServer(t)
	client, err := Connect(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close() //nolint:errcheck // Test cleanup

	client.Observe(context.Background(), registry.Record{
		Op:            registry.OpAction,
		IntegrationID: "lights",
		Kind:          "dummy",
		Duration:      3 * time.Millisecond,
		Time:          time.Now(),
	})
	client.Flush()

	srv.waitFor(t, MeasurementDispatch, "integration_id=lights", "kind=dummy", "op=action", "outcome=ok", "failed=false")
}

func TestPublish_WritesDeviceState(t *testing.T) {
	srv := newFakeServer(t)
	client, err := Connect(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close() //nolint:errcheck // Test cleanup

	d := &device.Device{ID: "lamp", IntegrationID: "lights", State: device.State{Power: true}}
	if err := client.Publish(context.Background(), event.NewDeviceRefresh(d)); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	client.Flush()

	srv.waitFor(t, MeasurementDeviceState, "device_id=lamp", "integration_id=lights", "power=true")
}

// recordingWriter captures points without a server.
type recordingWriter struct {
	mu     sync.Mutex
	points []*write.Point
}

func (w *recordingWriter) WritePoint(p *write.Point) {
	w.mu.Lock()
	w.points = append(w.points, p)
	w.mu.Unlock()
}

func (w *recordingWriter) Flush() {}

type nopPinger struct{}

func (nopPinger) Ping(context.Context) (bool, error) { return true, nil }
func (nopPinger) Close()                             {}

func TestWrites_DroppedAfterClose(t *testing.T) {
	w := &recordingWriter{}
	client := newClient(nopPinger{}, w)

	client.Observe(context.Background(), registry.Record{Op: registry.OpStart, IntegrationID: "a"})
	client.Close() //nolint:errcheck // no error possible
	client.Observe(context.Background(), registry.Record{Op: registry.OpStart, IntegrationID: "b"})

	if len(w.points) != 1 {
		t.Errorf("points = %d, want 1", len(w.points))
	}
}

func TestPublish_IgnoresActionEvents(t *testing.T) {
	w := &recordingWriter{}
	client := newClient(nopPinger{}, w)

	if err := client.Publish(context.Background(), event.NewActionCompleted("wol", "nas")); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if len(w.points) != 0 {
		t.Errorf("points = %d, want 0", len(w.points))
	}
}

func TestSetOnError_CallbackInvoked(t *testing.T) {
	client := newClient(nopPinger{}, &recordingWriter{})

	got := make(chan error, 1)
	client.SetOnError(func(err error) { got <- err })

	errs := make(chan error, 1)
	go client.handleWriteErrors(errs)
	errs <- errors.New("bucket not found")
	close(errs)

	select {
	case err := <-got:
		if err.Error() != "bucket not found" {
			t.Errorf("callback error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("callback not invoked")
	}
}

// =============================================================================
// Point Building Tests
// =============================================================================

func TestDispatchPoint(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		rec         registry.Record
		wantOutcome string
		wantFailed  bool
	}{
		{
			name:        "success",
			rec:         registry.Record{Op: registry.OpSetState, IntegrationID: "lights", Kind: "dummy", Duration: 1500 * time.Microsecond, Time: at},
			wantOutcome: "ok",
		},
		{
			name:        "failure",
			rec:         registry.Record{Op: registry.OpAction, IntegrationID: "wol", Kind: "wake_on_lan", Err: errors.New("boom"), Time: at},
			wantOutcome: "error",
			wantFailed:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DispatchPoint(tt.rec)

			if p.Name() != MeasurementDispatch {
				t.Errorf("Name() = %q", p.Name())
			}
			if !p.Time().Equal(at) {
				t.Errorf("Time() = %v, want %v", p.Time(), at)
			}
			tg := tags(p)
			if tg["op"] != string(tt.rec.Op) || tg["integration_id"] != string(tt.rec.IntegrationID) || tg["kind"] != tt.rec.Kind {
				t.Errorf("tags = %v", tg)
			}
			if tg["outcome"] != tt.wantOutcome {
				t.Errorf("outcome = %q, want %q", tg["outcome"], tt.wantOutcome)
			}
			f := fields(p)
			if f["failed"] != tt.wantFailed {
				t.Errorf("failed = %v, want %v", f["failed"], tt.wantFailed)
			}
			wantMs := float64(tt.rec.Duration.Microseconds()) / 1000
			if f["duration_ms"] != wantMs {
				t.Errorf("duration_ms = %v, want %v", f["duration_ms"], wantMs)
			}
		})
	}
}

func TestDeviceStatePoint(t *testing.T) {
	brightness := 0.4
	d := &device.Device{
		ID:            "color",
		IntegrationID: "disco",
		State: device.State{
			Power:      true,
			Brightness: &brightness,
			Color:      &device.Color{Hue: 120, Saturation: 0.5, Value: 1},
		},
	}

	p := DeviceStatePoint(event.NewDeviceRefresh(d))
	if p == nil {
		t.Fatal("DeviceStatePoint() = nil")
	}
	if p.Name() != MeasurementDeviceState {
		t.Errorf("Name() = %q", p.Name())
	}
	if tg := tags(p); tg["device_id"] != "color" || tg["integration_id"] != "disco" {
		t.Errorf("tags = %v", tg)
	}

	f := fields(p)
	want := map[string]interface{}{
		"power":      true,
		"brightness": 0.4,
		"hue":        120.0,
		"saturation": 0.5,
		"value":      1.0,
	}
	for k, v := range want {
		if f[k] != v {
			t.Errorf("field %s = %v, want %v", k, f[k], v)
		}
	}

	if DeviceStatePoint(event.Event{Type: event.TypeDeviceRefresh}) != nil {
		t.Error("DeviceStatePoint() without device should be nil")
	}
}
