// Package mqttbridge implements an integration that drives devices exposed by
// an MQTT backend (zigbee2mqtt style) under a topic prefix.
//
// Topic layout, relative to topic_prefix:
//
//	{prefix}/{device}/state   backend -> homectl, device.State JSON
//	{prefix}/{device}/set     homectl -> backend, device.State JSON
//	{prefix}/action           homectl -> backend, {"action": "..."}
//
// Example:
//
//	integrations:
//	  zigbee:
//	    plugin: mqtt
//	    topic_prefix: zigbee2mqtt
//	    broker:
//	      host: localhost
//	      port: 1883
package mqttbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/nerrad567/homectl-core/internal/device"
	"github.com/nerrad567/homectl-core/internal/event"
	"github.com/nerrad567/homectl-core/internal/infrastructure/config"
	"github.com/nerrad567/homectl-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/homectl-core/internal/integration"
)

// Kind is the plugin name this package registers under.
const Kind = "mqtt"

// Config is the mqtt configuration block.
type Config struct {
	TopicPrefix string       `yaml:"topic_prefix"`
	QoS         int          `yaml:"qos"`
	Broker      BrokerConfig `yaml:"broker"`
}

// BrokerConfig locates the backend's broker.
type BrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Client is the subset of the MQTT client the bridge uses.
type Client interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Close() error
}

// ConnectFunc opens a client for the bridge.
type ConnectFunc func(cfg config.MQTTConfig) (Client, error)

// actionMessage is published to {prefix}/action.
type actionMessage struct {
	Action string `json:"action"`
}

// stateMessage is the body of {prefix}/{device}/state.
type stateMessage struct {
	Name string `json:"name,omitempty"`
	device.State
}

// Bridge is an integration backed by MQTT topics.
type Bridge struct {
	id      integration.ID
	sender  event.Sender
	prefix  string
	qos     byte
	mqttCfg config.MQTTConfig
	connect ConnectFunc

	mu      sync.Mutex
	client  Client
	devices map[string]*device.Device
}

// New builds a Bridge from cfg. It satisfies integration.Constructor.
// No connection is made until Start.
func New(id integration.ID, cfg integration.Config, sender event.Sender) (integration.Integration, error) {
	var c Config
	if err := cfg.Decode(&c); err != nil {
		return nil, err
	}

	var errs []string
	if c.TopicPrefix == "" {
		errs = append(errs, "topic_prefix is required")
	}
	if strings.ContainsAny(c.TopicPrefix, "+#") {
		errs = append(errs, "topic_prefix must not contain wildcards")
	}
	if c.Broker.Host == "" {
		errs = append(errs, "broker.host is required")
	}
	if c.QoS < 0 || c.QoS > 2 {
		errs = append(errs, "qos must be 0, 1, or 2")
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", integration.ErrInvalidConfig, strings.Join(errs, "; "))
	}

	if c.Broker.Port == 0 {
		c.Broker.Port = 1883
	}
	if c.Broker.ClientID == "" {
		c.Broker.ClientID = "homectl-" + string(id)
	}

	return &Bridge{
		id:     id,
		sender: sender,
		prefix: strings.TrimSuffix(c.TopicPrefix, "/"),
		qos:    byte(c.QoS),
		mqttCfg: config.MQTTConfig{
			Enabled: true,
			Broker: config.MQTTBrokerConfig{
				Host:     c.Broker.Host,
				Port:     c.Broker.Port,
				TLS:      c.Broker.TLS,
				ClientID: c.Broker.ClientID,
			},
			Auth: config.MQTTAuthConfig{
				Username: c.Broker.Username,
				Password: c.Broker.Password,
			},
			QoS: c.QoS,
			Reconnect: config.MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		connect: connectBroker,
		devices: make(map[string]*device.Device),
	}, nil
}

// connectBroker opens a client without a status topic; the backend broker
// is not homectl's own.
func connectBroker(cfg config.MQTTConfig) (Client, error) {
	c, err := mqtt.Connect(cfg, mqtt.WithStatusTopic(""))
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Register is a no-op; devices are discovered from state messages.
func (b *Bridge) Register(_ context.Context) error {
	return nil
}

// Start connects to the broker and subscribes to device states.
// The connection outlives ctx and is closed by Stop.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	started := b.client != nil
	b.mu.Unlock()
	if started {
		return nil
	}

	type result struct {
		client Client
		err    error
	}
	done := make(chan result, 1)
	go func() {
		c, err := b.connect(b.mqttCfg)
		done <- result{client: c, err: err}
	}()

	var client Client
	select {
	case r := <-done:
		if r.err != nil {
			return fmt.Errorf("connecting to %s:%d: %w", b.mqttCfg.Broker.Host, b.mqttCfg.Broker.Port, r.err)
		}
		client = r.client
	case <-ctx.Done():
		go func() {
			if r := <-done; r.err == nil {
				r.client.Close() //nolint:errcheck // Abandoned connection
			}
		}()
		return ctx.Err()
	}

	topic := mqtt.Topics{}.AllBackendDeviceStates(b.prefix)
	if err := client.Subscribe(topic, b.qos, b.handleState); err != nil {
		client.Close() //nolint:errcheck // Already failing
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}

	b.mu.Lock()
	b.client = client
	b.mu.Unlock()
	return nil
}

// Stop disconnects from the broker.
func (b *Bridge) Stop() error {
	b.mu.Lock()
	client := b.client
	b.client = nil
	b.mu.Unlock()

	if client == nil {
		return nil
	}
	return client.Close()
}

// SetIntegrationDeviceState publishes the desired state to {prefix}/{device}/set.
func (b *Bridge) SetIntegrationDeviceState(_ context.Context, d *device.Device) error {
	client, err := b.activeClient()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(d.State)
	if err != nil {
		return fmt.Errorf("marshalling state: %w", err)
	}
	return client.Publish(mqtt.Topics{}.BackendDeviceSet(b.prefix, d.ID), payload, b.qos, false)
}

// RunIntegrationAction publishes payload to {prefix}/action.
func (b *Bridge) RunIntegrationAction(_ context.Context, payload integration.ActionPayload) error {
	client, err := b.activeClient()
	if err != nil {
		return err
	}

	body, err := json.Marshal(actionMessage{Action: string(payload)})
	if err != nil {
		return fmt.Errorf("marshalling action: %w", err)
	}
	return client.Publish(mqtt.Topics{}.BackendAction(b.prefix), body, b.qos, false)
}

func (b *Bridge) activeClient() (Client, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client == nil {
		return nil, mqtt.ErrNotConnected
	}
	return b.client, nil
}

// handleState turns a backend state message into a device refresh.
func (b *Bridge) handleState(topic string, payload []byte) error {
	deviceID, ok := b.deviceFromTopic(topic)
	if !ok {
		return fmt.Errorf("unexpected topic %s", topic)
	}

	var msg stateMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("decoding state for %s: %w", deviceID, err)
	}
	if err := msg.State.Validate(); err != nil {
		return fmt.Errorf("state for %s: %w", deviceID, err)
	}

	b.mu.Lock()
	d, known := b.devices[deviceID]
	if !known {
		d = &device.Device{ID: deviceID, Name: deviceID, IntegrationID: string(b.id)}
		b.devices[deviceID] = d
	}
	if msg.Name != "" {
		d.Name = msg.Name
	}
	d.State = msg.State.DeepCopy()
	refresh := event.NewDeviceRefresh(d)
	b.mu.Unlock()

	return b.sender.TrySend(refresh)
}

// deviceFromTopic extracts {device} from {prefix}/{device}/state.
func (b *Bridge) deviceFromTopic(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, b.prefix+"/")
	if !ok {
		return "", false
	}
	id, ok := strings.CutSuffix(rest, "/state")
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}
