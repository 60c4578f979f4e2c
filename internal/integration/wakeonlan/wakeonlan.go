// Package wakeonlan implements an integration that powers on machines by
// broadcasting Wake-on-LAN magic packets.
//
// Each configured machine appears as a device. Pushing a state with power on
// sends the packet; power off is recorded but cannot be enforced. Running an
// action whose payload is a machine ID wakes that machine.
//
//	integrations:
//	  wol:
//	    plugin: wake_on_lan
//	    machines:
//	      - id: nas
//	        name: NAS
//	        mac: "00:11:22:33:44:55"
//	        broadcast: 192.168.1.255
package wakeonlan

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"sync"

	"github.com/nerrad567/homectl-core/internal/device"
	"github.com/nerrad567/homectl-core/internal/event"
	"github.com/nerrad567/homectl-core/internal/integration"
)

// Kind is the plugin name this package registers under.
const Kind = "wake_on_lan"

const (
	// wolPort is the conventional discard port magic packets are sent to.
	wolPort = 9

	defaultBroadcast = "255.255.255.255"

	syncStreamLen = 6
	macRepeats    = 16
)

// Config is the wake_on_lan configuration block.
type Config struct {
	Machines []MachineConfig `yaml:"machines"`
}

// MachineConfig declares one wakeable machine.
type MachineConfig struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	MAC       string `yaml:"mac"`
	Broadcast string `yaml:"broadcast"`
}

type machine struct {
	mac    net.HardwareAddr
	addr   string
	device *device.Device
}

// PacketSender delivers a magic packet to a UDP address.
type PacketSender func(ctx context.Context, addr string, packet []byte) error

// WakeOnLAN is an integration that wakes machines on the local network.
type WakeOnLAN struct {
	id     integration.ID
	sender event.Sender
	send   PacketSender

	mu       sync.Mutex
	machines map[string]*machine
}

// New builds a WakeOnLAN from cfg. It satisfies integration.Constructor.
func New(id integration.ID, cfg integration.Config, sender event.Sender) (integration.Integration, error) {
	var c Config
	if err := cfg.Decode(&c); err != nil {
		return nil, err
	}
	if len(c.Machines) == 0 {
		return nil, fmt.Errorf("%w: at least one machine is required", integration.ErrInvalidConfig)
	}

	machines := make(map[string]*machine, len(c.Machines))
	for i, mc := range c.Machines {
		m, err := newMachine(id, mc)
		if err != nil {
			return nil, fmt.Errorf("%w: machines[%d]: %w", integration.ErrInvalidConfig, i, err)
		}
		if _, dup := machines[mc.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate machine id %q", integration.ErrInvalidConfig, mc.ID)
		}
		machines[mc.ID] = m
	}

	return &WakeOnLAN{
		id:       id,
		sender:   sender,
		send:     sendUDP,
		machines: machines,
	}, nil
}

func newMachine(id integration.ID, mc MachineConfig) (*machine, error) {
	if mc.ID == "" {
		return nil, fmt.Errorf("id is required")
	}
	mac, err := net.ParseMAC(mc.MAC)
	if err != nil {
		return nil, fmt.Errorf("mac: %w", err)
	}
	if len(mac) != 6 {
		return nil, fmt.Errorf("mac: %s is not a 48-bit address", mc.MAC)
	}

	host := mc.Broadcast
	if host == "" {
		host = defaultBroadcast
	}
	if net.ParseIP(host) == nil {
		return nil, fmt.Errorf("broadcast: %q is not an IP address", host)
	}

	name := mc.Name
	if name == "" {
		name = mc.ID
	}
	return &machine{
		mac:  mac,
		addr: net.JoinHostPort(host, strconv.Itoa(wolPort)),
		device: &device.Device{
			ID:            mc.ID,
			Name:          name,
			IntegrationID: string(id),
		},
	}, nil
}

// MagicPacket builds the Wake-on-LAN payload for mac: six 0xFF bytes
// followed by the address repeated sixteen times.
func MagicPacket(mac net.HardwareAddr) []byte {
	var buf bytes.Buffer
	buf.Grow(syncStreamLen + macRepeats*len(mac))
	buf.Write(bytes.Repeat([]byte{0xFF}, syncStreamLen))
	for i := 0; i < macRepeats; i++ {
		buf.Write(mac)
	}
	return buf.Bytes()
}

// Register publishes every machine as powered off.
func (w *WakeOnLAN) Register(ctx context.Context) error {
	w.mu.Lock()
	ids := make([]string, 0, len(w.machines))
	for id := range w.machines {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	refreshes := make([]event.Event, 0, len(ids))
	for _, id := range ids {
		refreshes = append(refreshes, event.NewDeviceRefresh(w.machines[id].device))
	}
	w.mu.Unlock()

	for _, ev := range refreshes {
		if err := w.sender.Send(ctx, ev); err != nil {
			return fmt.Errorf("publishing %s: %w", ev.DeviceID(), err)
		}
	}
	return nil
}

// Start is a no-op; packets are sent on demand.
func (w *WakeOnLAN) Start(_ context.Context) error {
	return nil
}

// SetIntegrationDeviceState wakes the machine when power is requested on and
// records the new power state.
func (w *WakeOnLAN) SetIntegrationDeviceState(ctx context.Context, d *device.Device) error {
	w.mu.Lock()
	m, ok := w.machines[d.ID]
	w.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", integration.ErrUnknownDevice, d.ID)
	}

	if d.State.Power {
		if err := w.wake(ctx, m); err != nil {
			return err
		}
	}

	w.mu.Lock()
	m.device.State.Power = d.State.Power
	refresh := event.NewDeviceRefresh(m.device)
	w.mu.Unlock()

	return w.sender.Send(ctx, refresh)
}

// RunIntegrationAction wakes the machine whose ID equals payload.
func (w *WakeOnLAN) RunIntegrationAction(ctx context.Context, payload integration.ActionPayload) error {
	w.mu.Lock()
	m, ok := w.machines[string(payload)]
	w.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: no machine %q", integration.ErrUnsupportedAction, payload)
	}

	if err := w.wake(ctx, m); err != nil {
		return err
	}
	return w.sender.Send(ctx, event.NewActionCompleted(string(w.id), string(payload)))
}

func (w *WakeOnLAN) wake(ctx context.Context, m *machine) error {
	if err := w.send(ctx, m.addr, MagicPacket(m.mac)); err != nil {
		return fmt.Errorf("waking %s: %w", m.mac, err)
	}
	return nil
}

// sendUDP writes packet to addr over UDP.
func sendUDP(ctx context.Context, addr string, packet []byte) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetWriteDeadline(deadline); err != nil {
			return err
		}
	}
	_, err = conn.Write(packet)
	return err
}
