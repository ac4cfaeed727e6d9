package mqtt

import (
	"encoding/json"
	"fmt"
)

// maxPayloadSize caps published payloads at 1MB, aligned with typical
// broker limits.
const maxPayloadSize = 1 << 20

// Publish sends a message to the specified MQTT topic.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
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

// PublishDisplayState mirrors the current display state, retained, so new
// subscribers immediately see what is on screen.
func (c *Client) PublishDisplayState(state any) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshalling display state: %w", err)
	}
	return c.Publish(c.topics.DisplayState(), payload, byte(c.cfg.QoS), true)
}
