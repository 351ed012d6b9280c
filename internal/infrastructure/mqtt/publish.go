package mqtt

import (
	"fmt"
)

// maxPayloadSize caps outgoing payloads at 1MB.
const maxPayloadSize = 1 << 20

// Publish sends a message to the specified MQTT topic and waits for the
// broker acknowledgement (bounded by a timeout).
//
// Light states are published retained at QoS 1 so a new subscriber sees
// the last known value immediately.
//
// Example:
//
//	err := client.Publish(client.Topics().Status("Kitchen"), payload, 1, true)
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}

// PublishAvailability publishes value on the retained connected topic.
// The bridge uses it to announce "2" once the cloud login succeeds.
func (c *Client) PublishAvailability(value string) error {
	return c.Publish(c.topics.Connected(), []byte(value), byte(c.cfg.QoS), true)
}
