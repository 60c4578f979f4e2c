// Package circadian implements an integration exposing a virtual light whose
// colour follows the time of day: it fades to the day colour in the morning
// and to the night colour in the evening.
//
//	integrations:
//	  sun:
//	    plugin: circadian
//	    device_name: Circadian Rhythm
//	    day_color: {hue: 35, saturation: 0.3, value: 1}
//	    day_fade_start: "07:00"
//	    day_fade_duration: 1h
//	    night_color: {hue: 25, saturation: 0.9, value: 0.4}
//	    night_fade_start: "20:00"
//	    night_fade_duration: 2h
package circadian

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/homectl-core/internal/device"
	"github.com/nerrad567/homectl-core/internal/event"
	"github.com/nerrad567/homectl-core/internal/integration"
)

// Kind is the plugin name this package registers under.
const Kind = "circadian"

// DeviceID is the ID of the single device this integration owns.
const DeviceID = "color"

const (
	day             = 24 * time.Hour
	defaultInterval = time.Minute
	clockLayout     = "15:04"
)

// Config is the circadian configuration block.
type Config struct {
	DeviceName        string        `yaml:"device_name"`
	DayColor          device.Color  `yaml:"day_color"`
	DayFadeStart      string        `yaml:"day_fade_start"`
	DayFadeDuration   time.Duration `yaml:"day_fade_duration"`
	NightColor        device.Color  `yaml:"night_color"`
	NightFadeStart    string        `yaml:"night_fade_start"`
	NightFadeDuration time.Duration `yaml:"night_fade_duration"`
	Interval          time.Duration `yaml:"interval"`
}

// schedule is a validated Config with fade starts as offsets from midnight.
type schedule struct {
	dayColor   device.Color
	dayStart   time.Duration
	dayFade    time.Duration
	nightColor device.Color
	nightStart time.Duration
	nightFade  time.Duration
}

// Circadian is an integration with one time-of-day coloured light.
type Circadian struct {
	id       integration.ID
	sender   event.Sender
	sched    schedule
	interval time.Duration
	now      func() time.Time

	mu     sync.Mutex
	device *device.Device
	worker *integration.Worker
}

// New builds a Circadian from cfg. It satisfies integration.Constructor.
func New(id integration.ID, cfg integration.Config, sender event.Sender) (integration.Integration, error) {
	var c Config
	if err := cfg.Decode(&c); err != nil {
		return nil, err
	}
	sched, err := c.schedule()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", integration.ErrInvalidConfig, err)
	}
	if c.Interval <= 0 {
		c.Interval = defaultInterval
	}

	return &Circadian{
		id:       id,
		sender:   sender,
		sched:    sched,
		interval: c.Interval,
		now:      time.Now,
		device: &device.Device{
			ID:            DeviceID,
			Name:          c.DeviceName,
			IntegrationID: string(id),
			State:         device.State{Power: true},
		},
	}, nil
}

func (c Config) schedule() (schedule, error) {
	if c.DeviceName == "" {
		return schedule{}, fmt.Errorf("device_name is required")
	}
	if err := c.DayColor.Validate(); err != nil {
		return schedule{}, fmt.Errorf("day_color: %w", err)
	}
	if err := c.NightColor.Validate(); err != nil {
		return schedule{}, fmt.Errorf("night_color: %w", err)
	}
	dayStart, err := parseClock(c.DayFadeStart)
	if err != nil {
		return schedule{}, fmt.Errorf("day_fade_start: %w", err)
	}
	nightStart, err := parseClock(c.NightFadeStart)
	if err != nil {
		return schedule{}, fmt.Errorf("night_fade_start: %w", err)
	}
	if c.DayFadeDuration < 0 || c.NightFadeDuration < 0 {
		return schedule{}, fmt.Errorf("fade durations must not be negative")
	}

	if dayStart == nightStart {
		return schedule{}, fmt.Errorf("day_fade_start and night_fade_start must differ")
	}
	// Each fade must finish before the other one begins.
	if c.DayFadeDuration > ahead(dayStart, nightStart) || c.NightFadeDuration > ahead(nightStart, dayStart) {
		return schedule{}, fmt.Errorf("day and night fades overlap")
	}

	return schedule{
		dayColor:   c.DayColor,
		dayStart:   dayStart,
		dayFade:    c.DayFadeDuration,
		nightColor: c.NightColor,
		nightStart: nightStart,
		nightFade:  c.NightFadeDuration,
	}, nil
}

// parseClock parses "HH:MM" into an offset from midnight.
func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse(clockLayout, s)
	if err != nil {
		return 0, fmt.Errorf("want HH:MM, got %q", s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// ahead returns how far "to" lies after "from" going forward around the
// clock, in [0, day).
func ahead(from, to time.Duration) time.Duration {
	d := (to - from) % day
	if d < 0 {
		d += day
	}
	return d
}

// colorAt returns the colour for the given wall-clock time.
func (s schedule) colorAt(t time.Time) device.Color {
	tod := time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second

	if since := ahead(s.dayStart, tod); since < s.dayFade {
		return s.nightColor.Lerp(s.dayColor, float64(since)/float64(s.dayFade))
	}
	if since := ahead(s.nightStart, tod); since < s.nightFade {
		return s.dayColor.Lerp(s.nightColor, float64(since)/float64(s.nightFade))
	}

	// Plateau: day between the end of the morning fade and the evening fade.
	if ahead(s.dayStart, tod) < ahead(s.dayStart, s.nightStart) {
		return s.dayColor
	}
	return s.nightColor
}

// Register publishes the current colour.
func (c *Circadian) Register(ctx context.Context) error {
	return c.sender.Send(ctx, c.refresh())
}

// Start begins publishing the colour every interval.
func (c *Circadian) Start(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.worker == nil {
		c.worker = integration.NewWorker(c.interval, c.tick)
		c.worker.Start()
	}
	return nil
}

// Stop halts the ticker. A later Start begins a fresh one.
func (c *Circadian) Stop() error {
	c.mu.Lock()
	w := c.worker
	c.worker = nil
	c.mu.Unlock()

	if w != nil {
		w.Stop()
	}
	return nil
}

// SetIntegrationDeviceState applies the power setting. The colour is derived
// from the clock and cannot be overridden.
func (c *Circadian) SetIntegrationDeviceState(ctx context.Context, d *device.Device) error {
	if d.ID != DeviceID {
		return fmt.Errorf("%w: %s", integration.ErrUnknownDevice, d.ID)
	}

	c.mu.Lock()
	c.device.State.Power = d.State.Power
	c.mu.Unlock()

	return c.sender.Send(ctx, c.refresh())
}

// RunIntegrationAction rejects every payload.
func (c *Circadian) RunIntegrationAction(_ context.Context, payload integration.ActionPayload) error {
	return fmt.Errorf("%w: %q", integration.ErrUnsupportedAction, payload)
}

func (c *Circadian) tick() {
	//nolint:errcheck // Dropped samples are replaced on the next tick
	c.sender.TrySend(c.refresh())
}

func (c *Circadian) refresh() event.Event {
	color := c.sched.colorAt(c.now())

	c.mu.Lock()
	defer c.mu.Unlock()
	c.device.State.Color = &color
	return event.NewDeviceRefresh(c.device)
}
