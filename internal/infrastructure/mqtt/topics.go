package mqtt

import "fmt"

// Topic prefixes for homectl MQTT traffic.
//
// Integration events use the scheme: homectl/event/{integration_id}/{device_id}
const (
	// TopicPrefix is the root of every homectl topic.
	TopicPrefix = "homectl"

	// TopicPrefixEvent is the base for integration events.
	TopicPrefixEvent = "homectl/event"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "homectl/system"
)

// Topics provides builders for homectl MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	topic := topics.IntegrationEvent("lights", "lamp")
//	// Returns: "homectl/event/lights/lamp"
type Topics struct{}

// IntegrationEvent returns the topic for an event published by an integration.
// When deviceID is empty the event is integration-wide.
//
// Example: homectl/event/lights/lamp
func (Topics) IntegrationEvent(integrationID, deviceID string) string {
	if deviceID == "" {
		return fmt.Sprintf("%s/%s", TopicPrefixEvent, integrationID)
	}
	return fmt.Sprintf("%s/%s/%s", TopicPrefixEvent, integrationID, deviceID)
}

// SystemStatus returns the system status topic (online/offline, LWT).
//
// Example: homectl/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllIntegrationEvents returns a pattern matching every integration event.
//
// Pattern: homectl/event/#
func (Topics) AllIntegrationEvents() string {
	return fmt.Sprintf("%s/#", TopicPrefixEvent)
}

// BackendDeviceState returns the state topic a backend publishes for a device
// under its own prefix.
//
// Example: zigbee2mqtt/lamp/state
func (Topics) BackendDeviceState(prefix, deviceID string) string {
	return fmt.Sprintf("%s/%s/state", prefix, deviceID)
}

// BackendDeviceSet returns the topic used to push a desired state to a backend device.
//
// Example: zigbee2mqtt/lamp/set
func (Topics) BackendDeviceSet(prefix, deviceID string) string {
	return fmt.Sprintf("%s/%s/set", prefix, deviceID)
}

// BackendAction returns the topic used to send actions to a backend.
//
// Example: zigbee2mqtt/action
func (Topics) BackendAction(prefix string) string {
	return fmt.Sprintf("%s/action", prefix)
}

// AllBackendDeviceStates returns a pattern matching all device states under prefix.
//
// Pattern: zigbee2mqtt/+/state
func (Topics) AllBackendDeviceStates(prefix string) string {
	return fmt.Sprintf("%s/+/state", prefix)
}
