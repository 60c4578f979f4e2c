// Package dummy implements an in-memory integration.
//
// It owns a fixed set of devices declared in config, remembers whatever
// state is pushed to them and publishes a refresh for every change. It has
// no backend and is used for demos and end-to-end tests.
//
//	integrations:
//	  demo:
//	    plugin: dummy
//	    devices:
//	      lamp:
//	        name: Desk Lamp
//	        init_state:
//	          power: true
//	          brightness: 0.5
package dummy

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/nerrad567/homectl-core/internal/device"
	"github.com/nerrad567/homectl-core/internal/event"
	"github.com/nerrad567/homectl-core/internal/integration"
)

// Kind is the plugin name this package registers under.
const Kind = "dummy"

// Config is the dummy configuration block.
type Config struct {
	Devices map[string]DeviceConfig `yaml:"devices"`
}

// DeviceConfig declares one device.
type DeviceConfig struct {
	Name      string       `yaml:"name"`
	InitState device.State `yaml:"init_state"`
}

// Dummy is an integration that keeps device state in memory.
type Dummy struct {
	id     integration.ID
	sender event.Sender

	mu      sync.Mutex
	devices map[string]*device.Device
}

// New builds a Dummy from cfg. It satisfies integration.Constructor.
func New(id integration.ID, cfg integration.Config, sender event.Sender) (integration.Integration, error) {
	var c Config
	if err := cfg.Decode(&c); err != nil {
		return nil, err
	}

	devices := make(map[string]*device.Device, len(c.Devices))
	for devID, dc := range c.Devices {
		d := &device.Device{
			ID:            devID,
			Name:          dc.Name,
			IntegrationID: string(id),
			State:         dc.InitState.DeepCopy(),
		}
		if d.Name == "" {
			d.Name = devID
		}
		if err := device.ValidateDevice(d); err != nil {
			return nil, fmt.Errorf("%w: device %s: %w", integration.ErrInvalidConfig, devID, err)
		}
		devices[devID] = d
	}

	return &Dummy{id: id, sender: sender, devices: devices}, nil
}

// Register publishes the initial state of every device.
func (d *Dummy) Register(ctx context.Context) error {
	for _, dev := range d.snapshot() {
		if err := d.sender.Send(ctx, event.NewDeviceRefresh(dev)); err != nil {
			return fmt.Errorf("publishing %s: %w", dev.ID, err)
		}
	}
	return nil
}

// Start is a no-op; the dummy has nothing to connect to.
func (d *Dummy) Start(_ context.Context) error {
	return nil
}

// SetIntegrationDeviceState stores the desired state and echoes it back as a refresh.
func (d *Dummy) SetIntegrationDeviceState(ctx context.Context, dev *device.Device) error {
	d.mu.Lock()
	stored, ok := d.devices[dev.ID]
	if !ok {
		d.mu.Unlock()
		return fmt.Errorf("%w: %s", integration.ErrUnknownDevice, dev.ID)
	}
	stored.State = dev.State.DeepCopy()
	refresh := event.NewDeviceRefresh(stored)
	d.mu.Unlock()

	return d.sender.Send(ctx, refresh)
}

// RunIntegrationAction accepts any payload and reports it completed.
func (d *Dummy) RunIntegrationAction(ctx context.Context, payload integration.ActionPayload) error {
	return d.sender.Send(ctx, event.NewActionCompleted(string(d.id), string(payload)))
}

// Devices returns copies of the current devices, sorted by ID.
func (d *Dummy) Devices() []*device.Device {
	return d.snapshot()
}

func (d *Dummy) snapshot() []*device.Device {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]*device.Device, 0, len(d.devices))
	for _, dev := range d.devices {
		out = append(out, dev.DeepCopy())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
