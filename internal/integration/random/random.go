// Package random implements an integration exposing one light whose colour
// changes randomly on every tick. It is useful for exercising event
// consumers without hardware.
//
//	integrations:
//	  disco:
//	    plugin: random
//	    device_name: Disco Light
//	    interval: 2s
package random

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/nerrad567/homectl-core/internal/device"
	"github.com/nerrad567/homectl-core/internal/event"
	"github.com/nerrad567/homectl-core/internal/integration"
)

// Kind is the plugin name this package registers under.
const Kind = "random"

// DeviceID is the ID of the single device this integration owns.
const DeviceID = "color"

const (
	defaultInterval = time.Second
	minInterval     = 10 * time.Millisecond
)

// Config is the random configuration block.
type Config struct {
	DeviceName string        `yaml:"device_name"`
	Interval   time.Duration `yaml:"interval"`
}

// Random is an integration with one randomly coloured light.
type Random struct {
	id       integration.ID
	sender   event.Sender
	interval time.Duration
	rng      func() float64

	mu     sync.Mutex
	device *device.Device
	worker *integration.Worker
}

// New builds a Random from cfg. It satisfies integration.Constructor.
func New(id integration.ID, cfg integration.Config, sender event.Sender) (integration.Integration, error) {
	var c Config
	if err := cfg.Decode(&c); err != nil {
		return nil, err
	}
	if c.DeviceName == "" {
		return nil, fmt.Errorf("%w: device_name is required", integration.ErrInvalidConfig)
	}
	if c.Interval == 0 {
		c.Interval = defaultInterval
	}
	if c.Interval < minInterval {
		return nil, fmt.Errorf("%w: interval must be at least %v", integration.ErrInvalidConfig, minInterval)
	}

	return &Random{
		id:       id,
		sender:   sender,
		interval: c.Interval,
		rng:      rand.Float64,
		device: &device.Device{
			ID:            DeviceID,
			Name:          c.DeviceName,
			IntegrationID: string(id),
			State:         device.State{Power: true},
		},
	}, nil
}

// Register is a no-op; the device is announced on the first tick.
func (r *Random) Register(_ context.Context) error {
	return nil
}

// Start begins publishing a fresh colour every interval.
func (r *Random) Start(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.worker == nil {
		r.worker = integration.NewWorker(r.interval, r.tick)
		r.worker.Start()
	}
	return nil
}

// Stop halts the ticker. A later Start begins a fresh one.
func (r *Random) Stop() error {
	r.mu.Lock()
	w := r.worker
	r.worker = nil
	r.mu.Unlock()

	if w != nil {
		w.Stop()
	}
	return nil
}

// SetIntegrationDeviceState applies the power setting of the colour light.
// Colour and brightness are owned by the integration and ignored.
func (r *Random) SetIntegrationDeviceState(ctx context.Context, d *device.Device) error {
	if d.ID != DeviceID {
		return fmt.Errorf("%w: %s", integration.ErrUnknownDevice, d.ID)
	}

	r.mu.Lock()
	r.device.State.Power = d.State.Power
	refresh := event.NewDeviceRefresh(r.device)
	r.mu.Unlock()

	return r.sender.Send(ctx, refresh)
}

// RunIntegrationAction rejects every payload.
func (r *Random) RunIntegrationAction(_ context.Context, payload integration.ActionPayload) error {
	return fmt.Errorf("%w: %q", integration.ErrUnsupportedAction, payload)
}

// tick picks a new colour and publishes it. A full channel drops the sample.
func (r *Random) tick() {
	r.mu.Lock()
	c := device.Color{
		Hue:        r.rng() * 360,
		Saturation: r.rng(),
		Value:      1,
	}
	r.device.State.Color = &c
	refresh := event.NewDeviceRefresh(r.device)
	r.mu.Unlock()

	//nolint:errcheck // Dropped samples are replaced on the next tick
	r.sender.TrySend(refresh)
}
