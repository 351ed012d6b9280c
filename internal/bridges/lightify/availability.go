package lightify

import (
	"sync"

	"github.com/nerrad567/lightify2mqtt/internal/infrastructure/mqtt"
)

// availabilityQoS is the QoS of availability updates sent by the bridge.
const availabilityQoS = 1

// Publisher is the interface for publishing availability messages.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// Availability tracks whether the cloud session is up and mirrors it on
// <prefix>connected.
//
// The MQTT client owns "0" (will and shutdown) and "1" (every connect).
// Availability owns "2" and the fall back to "1" when the session is lost.
type Availability struct {
	publisher Publisher
	topic     string

	mu       sync.RWMutex
	loggedIn bool

	logger Logger
}

// NewAvailability creates an Availability publishing under topics.
func NewAvailability(publisher Publisher, topics mqtt.Topics, logger Logger) *Availability {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Availability{
		publisher: publisher,
		topic:     topics.Connected(),
		logger:    logger,
	}
}

// LoggedIn records a successful cloud login and publishes "2".
func (a *Availability) LoggedIn() {
	a.mu.Lock()
	a.loggedIn = true
	a.mu.Unlock()
	a.publish(mqtt.AvailabilityLoggedIn)
}

// LoggedOut records a lost session and publishes "1".
func (a *Availability) LoggedOut() {
	a.mu.Lock()
	was := a.loggedIn
	a.loggedIn = false
	a.mu.Unlock()
	if was {
		a.publish(mqtt.AvailabilityBroker)
	}
}

// Reconnected republishes "2" after the MQTT client announced "1" on a
// fresh connection, if the session is still up.
func (a *Availability) Reconnected() {
	if a.IsLoggedIn() {
		a.publish(mqtt.AvailabilityLoggedIn)
	}
}

// IsLoggedIn reports the last known session state.
func (a *Availability) IsLoggedIn() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.loggedIn
}

// State returns the value currently advertised on the connected topic.
func (a *Availability) State() string {
	switch {
	case !a.publisher.IsConnected():
		return mqtt.AvailabilityOffline
	case a.IsLoggedIn():
		return mqtt.AvailabilityLoggedIn
	default:
		return mqtt.AvailabilityBroker
	}
}

func (a *Availability) publish(value string) {
	if !a.publisher.IsConnected() {
		a.logger.Debug("broker offline, availability deferred to reconnect", "value", value)
		return
	}
	if err := a.publisher.Publish(a.topic, []byte(value), availabilityQoS, true); err != nil {
		a.logger.Error("failed to publish availability", "value", value, "error", err)
	}
}
