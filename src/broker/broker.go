// Package broker defines the interface for message brokers and provides implementations.
package broker

import (
	"context"
	"errors"
)

// ErrBrokerClosed is returned by Publish and Subscribe after Close.
var ErrBrokerClosed = errors.New("broker is closed")

// Broker abstracts message publishing and consumption.
// Remote runners publish reports through it and the relay consumes them; the relay can also
// publish forwarded batches for other consumers.
type Broker interface {
	// Publish sends a message to a topic with an optional key for partitioning.
	// For the in-memory broker the key is carried but not used.
	Publish(ctx context.Context, topic string, key string, value []byte) error

	// Subscribe returns a channel for consuming messages from a topic. The channel is
	// closed when ctx ends or the broker is closed.
	// groupID is used for consumer group coordination in Kafka.
	Subscribe(ctx context.Context, topic string, groupID string) (<-chan Message, error)

	// Close shuts down the broker connection gracefully.
	Close() error
}

// Message represents a consumed message from a broker.
type Message struct {
	Topic     string
	Key       string
	Value     []byte
	Offset    int64
	Partition int32
	Timestamp int64
}
