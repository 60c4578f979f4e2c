package registry

import (
	"fmt"

	"github.com/nerrad567/homectl-core/internal/event"
	"github.com/nerrad567/homectl-core/internal/integration"
	"github.com/nerrad567/homectl-core/internal/integration/circadian"
	"github.com/nerrad567/homectl-core/internal/integration/dummy"
	"github.com/nerrad567/homectl-core/internal/integration/mqttbridge"
	"github.com/nerrad567/homectl-core/internal/integration/random"
	"github.com/nerrad567/homectl-core/internal/integration/wakeonlan"
)

// Factory builds a handler for a kind. Load is the production factory.
type Factory func(kind string, id integration.ID, cfg integration.Config, sender event.Sender) (integration.Integration, error)

// Kinds returns the built-in integration kinds in sorted order.
func Kinds() []string {
	return []string{
		circadian.Kind,
		dummy.Kind,
		mqttbridge.Kind,
		random.Kind,
		wakeonlan.Kind,
	}
}

// Load constructs the handler for kind. It has no side effects beyond
// construction.
//
// Returns an error wrapping integration.ErrUnknownKind for kinds not in
// Kinds(), or the constructor's error wrapped with the kind and id.
func Load(kind string, id integration.ID, cfg integration.Config, sender event.Sender) (integration.Integration, error) {
	var ctor integration.Constructor
	switch kind {
	case circadian.Kind:
		ctor = circadian.New
	case dummy.Kind:
		ctor = dummy.New
	case mqttbridge.Kind:
		ctor = mqttbridge.New
	case random.Kind:
		ctor = random.New
	case wakeonlan.Kind:
		ctor = wakeonlan.New
	default:
		return nil, fmt.Errorf("%w: unknown module name %q", integration.ErrUnknownKind, kind)
	}

	h, err := ctor(id, cfg, sender)
	if err != nil {
		return nil, fmt.Errorf("constructing %s integration %s: %w", kind, id, err)
	}
	return h, nil
}
