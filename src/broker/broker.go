// Package broker defines the interface for the job queue and provides an
// in-memory implementation for local runs and a Redpanda/Kafka one for
// distributed workers.
package broker

import (
	"context"
	"errors"
)

// ErrClosed is returned by operations on a closed broker.
var ErrClosed = errors.New("broker is closed")

// Broker abstracts message publishing and consumption.
type Broker interface {
	// Publish sends a message to a topic. The key selects the partition in
	// Redpanda/Kafka and is carried through unchanged in memory.
	Publish(ctx context.Context, topic string, key string, value []byte) error

	// Subscribe returns a channel for consuming messages from a topic.
	// Subscribers sharing a groupID compete for messages: each message is
	// delivered to exactly one of them. Every group receives every message.
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
