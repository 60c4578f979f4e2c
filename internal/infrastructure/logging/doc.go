// Package logging configures the log/slog logger used across homectl core.
//
// Output is JSON by default and text when logging.format is "text". Entries
// below logging.level are dropped. Each subsystem takes a child logger from
// Component so registry, audit, mqtt, events, api and websocket lines can be
// told apart:
//
//	log := logging.New(cfg.Logging, version)
//	reg := registry.New(registry.WithLogger(log.Component("registry")))
//
// MQTT passwords and InfluxDB tokens must never be passed as attributes.
package logging
