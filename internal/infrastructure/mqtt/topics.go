package mqtt

import "strings"

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "lightify/"

// Availability values published on the connected topic.
const (
	AvailabilityOffline  = "0"
	AvailabilityBroker   = "1"
	AvailabilityLoggedIn = "2"
)

// Topics builds topic names under a common prefix.
//
//	topics := mqtt.NewTopics("lightify")
//	topics.Status("Kitchen") // "lightify/status/lights/Kitchen"
type Topics struct {
	Prefix string
}

// NewTopics returns Topics for prefix, adding the trailing slash if missing.
// An empty prefix falls back to DefaultTopicPrefix.
func NewTopics(prefix string) Topics {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return Topics{Prefix: prefix}
}

// Connected returns the retained availability topic.
//
// Example: lightify/connected
func (t Topics) Connected() string {
	return t.Prefix + "connected"
}

// Status returns the retained state topic for a light.
//
// Example: lightify/status/lights/Kitchen
func (t Topics) Status(name string) string {
	return t.Prefix + "status/lights/" + name
}

// SetLights returns the subscription filter for light commands.
//
// Example: lightify/set/lights/+
func (t Topics) SetLights() string {
	return t.Prefix + "set/lights/+"
}

// SetGroups returns the subscription filter for group commands.
//
// Example: lightify/set/groups/+
func (t Topics) SetGroups() string {
	return t.Prefix + "set/groups/+"
}

// Relative strips the prefix from topic. ok is false if topic lies outside it.
func (t Topics) Relative(topic string) (rest string, ok bool) {
	if !strings.HasPrefix(topic, t.Prefix) {
		return "", false
	}
	return topic[len(t.Prefix):], true
}
