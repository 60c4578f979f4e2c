package device

// Color is a colour in HSV space.
type Color struct {
	// Hue in degrees, 0-360.
	Hue float64 `json:"hue" yaml:"hue"`

	// Saturation, 0-1.
	Saturation float64 `json:"saturation" yaml:"saturation"`

	// Value (brightness component of the colour), 0-1.
	Value float64 `json:"value" yaml:"value"`
}

// Lerp returns the colour t of the way from c to other.
// Hue takes the shorter way around the colour wheel.
// t is clamped to [0, 1].
func (c Color) Lerp(other Color, t float64) Color {
	t = clamp(t, 0, 1)

	dh := other.Hue - c.Hue
	switch {
	case dh > hueMax/2:
		dh -= hueMax
	case dh < -hueMax/2:
		dh += hueMax
	}
	hue := c.Hue + dh*t
	for hue < 0 {
		hue += hueMax
	}
	for hue >= hueMax {
		hue -= hueMax
	}

	return Color{
		Hue:        hue,
		Saturation: c.Saturation + (other.Saturation-c.Saturation)*t,
		Value:      c.Value + (other.Value-c.Value)*t,
	}
}

// State is the desired or reported state of a single device.
// Optional fields are nil when the device does not support them.
type State struct {
	Power        bool     `json:"power" yaml:"power"`
	Brightness   *float64 `json:"brightness,omitempty" yaml:"brightness,omitempty"`
	Color        *Color   `json:"color,omitempty" yaml:"color,omitempty"`
	TransitionMs *int     `json:"transition_ms,omitempty" yaml:"transition_ms,omitempty"`
}

// DeepCopy returns a State that shares no pointers with s.
func (s State) DeepCopy() State {
	cpy := s
	if s.Brightness != nil {
		b := *s.Brightness
		cpy.Brightness = &b
	}
	if s.Color != nil {
		c := *s.Color
		cpy.Color = &c
	}
	if s.TransitionMs != nil {
		ms := *s.TransitionMs
		cpy.TransitionMs = &ms
	}
	return cpy
}

// Device describes one device owned by an integration.
//
// Devices are plain values: they are built by callers, passed by pointer into
// dispatch calls and never retained by the registry.
type Device struct {
	// ID is unique within the owning integration.
	ID string `json:"id"`

	// Name is a human-readable label.
	Name string `json:"name"`

	// IntegrationID names the integration that owns the device.
	IntegrationID string `json:"integration_id"`

	// State is the desired (dispatch) or reported (refresh) state.
	State State `json:"state"`
}

// DeepCopy creates an independent copy of the Device.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}
	cpy := *d
	cpy.State = d.State.DeepCopy()
	return &cpy
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
