package lightify

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nerrad567/lightify2mqtt/internal/device"
	"github.com/nerrad567/lightify2mqtt/internal/infrastructure/mqtt"
)

// Command categories.
const (
	CategoryLights = "lights"
	CategoryGroups = "groups"
)

// TargetAll addresses every light on the gateway.
const TargetAll = "all"

// Publish settings for state topics.
const (
	statusQoS      = 1
	statusRetained = true
)

// CommandTopic is a parsed <prefix>set/<category>/<target> topic.
type CommandTopic struct {
	Category string
	Target   string
}

// ParseCommandTopic splits a command topic into category and target.
//
// Returns:
//   - ErrInvalidTopic: the topic is outside <prefix>set/ or has no target
//   - ErrGroupsUnsupported: category is groups
//   - ErrUnsupportedCategory: any other category besides lights
func ParseCommandTopic(topics mqtt.Topics, topic string) (CommandTopic, error) {
	rest, ok := topics.Relative(topic)
	if !ok {
		return CommandTopic{}, fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}

	parts := strings.SplitN(rest, "/", 3)
	if len(parts) != 3 || parts[0] != "set" {
		return CommandTopic{}, fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}
	if parts[2] == "" {
		return CommandTopic{}, fmt.Errorf("%w: missing target in %s", ErrInvalidTopic, topic)
	}

	ct := CommandTopic{Category: parts[1], Target: parts[2]}
	switch ct.Category {
	case CategoryLights:
		return ct, nil
	case CategoryGroups:
		return ct, fmt.Errorf("%w: %s", ErrGroupsUnsupported, ct.Target)
	default:
		return ct, fmt.Errorf("%w: %s", ErrUnsupportedCategory, ct.Category)
	}
}

// statusPayload encodes the state message for dev.
func statusPayload(dev *device.Device) ([]byte, error) {
	data, err := json.Marshal(dev.Status())
	if err != nil {
		return nil, fmt.Errorf("encoding status for %s: %w", dev.Name, err)
	}
	return data, nil
}
