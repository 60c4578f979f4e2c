// Package event carries domain events from integrations to the rest of the
// system.
//
// A Channel is created once at startup. Each integration receives a Sender
// when it is constructed and publishes through it; Sender is a cheap value
// that may be copied or cloned freely and used from many goroutines. A single
// Forwarder drains the channel and hands each event to its sinks (MQTT,
// WebSocket clients).
//
//	ch := event.NewChannel(cfg.Core.EventBuffer)
//	fwd := event.NewForwarder(ch, log, event.NewMQTTSink(mqttClient, 1))
//	go fwd.Run(ctx)
//	reg := registry.New(ch.Sender())
package event
