// Package integration defines the capability contract every homectl
// integration implements.
//
// An integration is one configured instance of a backend handler (a lighting
// bridge, a wake-on-lan sender, an MQTT backend). Handlers are built by a
// Constructor from an opaque Config, receive an event.Sender for publishing
// device refreshes, and are then driven by the registry:
//
//	Register -> Start -> (SetIntegrationDeviceState | RunIntegrationAction)*
//
// The concrete kinds live in subpackages (dummy, random, circadian,
// wakeonlan, mqttbridge). The registry never inspects a handler's concrete
// type.
//
// # Thread Safety
//
// The registry serialises every call into a handler, but background
// goroutines started by Start run concurrently with those calls. Handlers
// guard state they share with their own goroutines.
package integration
