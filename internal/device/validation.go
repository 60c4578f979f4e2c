package device

import "fmt"

// Validation bounds.
const (
	hueMax          = 360.0
	maxTransitionMs = 60 * 60 * 1000
	maxIDLength     = 100
)

// Validate checks that c lies within HSV bounds.
func (c Color) Validate() error {
	if c.Hue < 0 || c.Hue > hueMax {
		return fmt.Errorf("%w: hue %.2f outside 0-360", ErrInvalidColor, c.Hue)
	}
	if c.Saturation < 0 || c.Saturation > 1 {
		return fmt.Errorf("%w: saturation %.2f outside 0-1", ErrInvalidColor, c.Saturation)
	}
	if c.Value < 0 || c.Value > 1 {
		return fmt.Errorf("%w: value %.2f outside 0-1", ErrInvalidColor, c.Value)
	}
	return nil
}

// Validate checks optional state fields for range errors.
func (s State) Validate() error {
	if s.Brightness != nil && (*s.Brightness < 0 || *s.Brightness > 1) {
		return fmt.Errorf("%w: brightness %.2f outside 0-1", ErrInvalidState, *s.Brightness)
	}
	if s.Color != nil {
		if err := s.Color.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidState, err)
		}
	}
	if s.TransitionMs != nil && (*s.TransitionMs < 0 || *s.TransitionMs > maxTransitionMs) {
		return fmt.Errorf("%w: transition_ms %d out of range", ErrInvalidState, *s.TransitionMs)
	}
	return nil
}

// ValidateDevice checks a device value before it is dispatched.
func ValidateDevice(d *Device) error {
	if d == nil {
		return fmt.Errorf("%w: nil device", ErrInvalidDevice)
	}
	if d.ID == "" || len(d.ID) > maxIDLength {
		return fmt.Errorf("%w: id must be 1-%d characters", ErrInvalidDevice, maxIDLength)
	}
	if d.IntegrationID == "" {
		return fmt.Errorf("%w: integration_id is required", ErrInvalidDevice)
	}
	return d.State.Validate()
}
