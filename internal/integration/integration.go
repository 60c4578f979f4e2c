package integration

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/homectl-core/internal/device"
	"github.com/nerrad567/homectl-core/internal/event"
)

// ID uniquely names one configured integration.
type ID string

// String implements fmt.Stringer.
func (id ID) String() string {
	return string(id)
}

// ActionPayload is an opaque, backend-interpreted action name
// (e.g. "clean_house", "identify").
type ActionPayload string

// Integration is the capability set every handler implements.
//
// Every method may block on I/O and must return once ctx is done.
type Integration interface {
	// Register performs one-time setup after all handlers are constructed
	// and before any is started.
	Register(ctx context.Context) error

	// Start begins ongoing operation. Background work started here is
	// bound to the handler, not to ctx.
	Start(ctx context.Context) error

	// SetIntegrationDeviceState pushes a desired state for one device.
	SetIntegrationDeviceState(ctx context.Context, d *device.Device) error

	// RunIntegrationAction invokes a named backend action.
	RunIntegrationAction(ctx context.Context, payload ActionPayload) error
}

// Stopper is implemented by handlers that hold background resources.
type Stopper interface {
	Stop() error
}

// Constructor builds a handler from its configuration block.
// It returns an error wrapping ErrInvalidConfig when cfg is malformed.
type Constructor func(id ID, cfg Config, sender event.Sender) (Integration, error)

// Config is the opaque configuration block of one integration.
// The registry passes it through unparsed; each kind decodes it.
type Config struct {
	node *yaml.Node
}

// NewConfig wraps a YAML node.
func NewConfig(node yaml.Node) Config {
	return Config{node: &node}
}

// ParseConfig builds a Config from YAML source. It is mainly useful in tests.
func ParseConfig(src string) (Config, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(src), &doc); err != nil {
		return Config{}, fmt.Errorf("parsing integration config: %w", err)
	}
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		return NewConfig(*doc.Content[0]), nil
	}
	return Config{}, nil
}

// IsZero reports whether the config carries no YAML at all.
func (c Config) IsZero() bool {
	return c.node == nil
}

// Decode unmarshals the block into v. An empty Config leaves v untouched.
// Decoding failures wrap ErrInvalidConfig.
func (c Config) Decode(v any) error {
	if c.node == nil {
		return nil
	}
	if err := c.node.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
