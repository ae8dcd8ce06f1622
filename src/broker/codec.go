package broker

import (
	"context"
	"encoding/json"
	"fmt"
)

// PublishJSON marshals v and publishes it.
func PublishJSON(ctx context.Context, b Broker, topic, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message for %s: %w", topic, err)
	}
	return b.Publish(ctx, topic, key, data)
}

// Decode unmarshals a consumed message into v.
func Decode(msg Message, v any) error {
	if err := json.Unmarshal(msg.Value, v); err != nil {
		return fmt.Errorf("failed to unmarshal message from %s: %w", msg.Topic, err)
	}
	return nil
}
