// Package mqtt provides MQTT client connectivity for homectl core.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support, restored on reconnect
//   - Last Will and Testament (LWT) for offline detection
//
// Core uses one client to forward integration events to
// homectl/event/{integration}/{device}. The mqtt integration kind opens its
// own client per configured backend, without a status topic.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllIntegrationEvents(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	topic := mqtt.Topics{}.BackendDeviceSet("zigbee2mqtt", "lamp")
//	client.Publish(topic, []byte(`{"state":"ON"}`), 1, false)
//
// # Security Considerations
//
//   - Enable TLS (cfg.Broker.TLS=true) when the broker is not local
//   - Message payloads are not encrypted beyond TLS transport
package mqtt
