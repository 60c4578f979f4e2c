package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/homectl-core/internal/device"
)

// Type identifies what an event reports.
type Type string

// Event types published by integrations.
const (
	// TypeDeviceRefresh reports the current state of a device as seen by
	// its integration.
	TypeDeviceRefresh Type = "integration_device_refresh"

	// TypeActionCompleted reports that an integration finished running an action.
	TypeActionCompleted Type = "integration_action_completed"
)

// Event is a domain event published by an integration.
type Event struct {
	ID            string         `json:"id"`
	Type          Type           `json:"type"`
	IntegrationID string         `json:"integration_id"`
	Device        *device.Device `json:"device,omitempty"`
	Action        string         `json:"action,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
}

// NewDeviceRefresh builds a TypeDeviceRefresh event for d.
// The device is deep-copied so the publisher may keep mutating its own value.
func NewDeviceRefresh(d *device.Device) Event {
	cpy := d.DeepCopy()
	integrationID := ""
	if cpy != nil {
		integrationID = cpy.IntegrationID
	}
	return Event{
		ID:            uuid.NewString(),
		Type:          TypeDeviceRefresh,
		IntegrationID: integrationID,
		Device:        cpy,
		Timestamp:     time.Now().UTC(),
	}
}

// NewActionCompleted builds a TypeActionCompleted event.
func NewActionCompleted(integrationID, action string) Event {
	return Event{
		ID:            uuid.NewString(),
		Type:          TypeActionCompleted,
		IntegrationID: integrationID,
		Action:        action,
		Timestamp:     time.Now().UTC(),
	}
}

// DeviceID returns the ID of the device the event refers to, or "" if none.
func (e Event) DeviceID() string {
	if e.Device == nil {
		return ""
	}
	return e.Device.ID
}
