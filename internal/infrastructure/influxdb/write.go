package influxdb

import (
	"context"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/homectl-core/internal/event"
	"github.com/nerrad567/homectl-core/internal/registry"
)

// Measurement names.
const (
	MeasurementDispatch    = "integration_dispatch"
	MeasurementDeviceState = "device_state"
)

// Observe implements registry.Observer. Each record becomes one
// integration_dispatch point.
func (c *Client) Observe(_ context.Context, rec registry.Record) {
	c.writePoint(DispatchPoint(rec))
}

// Publish implements event.Sink. Device refresh events become
// device_state points; other events are ignored.
func (c *Client) Publish(_ context.Context, ev event.Event) error {
	if p := DeviceStatePoint(ev); p != nil {
		c.writePoint(p)
	}
	return nil
}

// DispatchPoint builds the point recorded for a registry call.
//
// Tags: op, integration_id, kind, outcome ("ok" or "error").
// Fields: duration_ms, failed.
func DispatchPoint(rec registry.Record) *write.Point {
	outcome := "ok"
	if rec.Err != nil {
		outcome = "error"
	}

	return write.NewPoint(
		MeasurementDispatch,
		map[string]string{
			"op":             string(rec.Op),
			"integration_id": string(rec.IntegrationID),
			"kind":           rec.Kind,
			"outcome":        outcome,
		},
		map[string]interface{}{
			"duration_ms": float64(rec.Duration.Microseconds()) / 1000,
			"failed":      rec.Err != nil,
		},
		rec.Time,
	)
}

// DeviceStatePoint builds a device_state point from a refresh event, or
// returns nil for any other event.
func DeviceStatePoint(ev event.Event) *write.Point {
	if ev.Type != event.TypeDeviceRefresh || ev.Device == nil {
		return nil
	}

	st := ev.Device.State
	fields := map[string]interface{}{
		"power": st.Power,
	}
	if st.Brightness != nil {
		fields["brightness"] = *st.Brightness
	}
	if st.Color != nil {
		fields["hue"] = st.Color.Hue
		fields["saturation"] = st.Color.Saturation
		fields["value"] = st.Color.Value
	}

	return write.NewPoint(
		MeasurementDeviceState,
		map[string]string{
			"integration_id": ev.IntegrationID,
			"device_id":      ev.Device.ID,
		},
		fields,
		ev.Timestamp,
	)
}
