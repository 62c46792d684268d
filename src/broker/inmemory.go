package broker

import (
	"context"
	"sync"
	"time"
)

// groupBuffer is the queue capacity of one consumer group.
const groupBuffer = 1024

// InMemoryBroker is a process-local Broker.
//
// Messages published before any group subscribes to a topic are held and
// handed to the first group that does. Later groups only see new messages.
type InMemoryBroker struct {
	mu      sync.Mutex
	groups  map[string]map[string]chan Message // topic -> group -> queue
	backlog map[string][]Message
	offsets map[string]int64
	closed  bool
}

// NewInMemoryBroker creates a new InMemoryBroker instance.
func NewInMemoryBroker() *InMemoryBroker {
	return &InMemoryBroker{
		groups:  make(map[string]map[string]chan Message),
		backlog: make(map[string][]Message),
		offsets: make(map[string]int64),
	}
}

// Publish enqueues the message for every group on the topic. It blocks while
// a group's queue is full, until ctx is done.
func (b *InMemoryBroker) Publish(ctx context.Context, topic string, key string, value []byte) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	msg := Message{
		Topic:     topic,
		Key:       key,
		Value:     append([]byte(nil), value...),
		Offset:    b.offsets[topic],
		Timestamp: time.Now().UnixMilli(),
	}
	b.offsets[topic]++

	groups := b.groups[topic]
	if len(groups) == 0 {
		b.backlog[topic] = append(b.backlog[topic], msg)
		b.mu.Unlock()
		return nil
	}
	queues := make([]chan Message, 0, len(groups))
	for _, q := range groups {
		queues = append(queues, q)
	}
	b.mu.Unlock()

	for _, q := range queues {
		if err := b.deliver(ctx, q, msg); err != nil {
			return err
		}
	}
	return nil
}

func (b *InMemoryBroker) deliver(ctx context.Context, q chan Message, msg Message) (err error) {
	// A concurrent Close closes q; report that as ErrClosed.
	defer func() {
		if recover() != nil {
			err = ErrClosed
		}
	}()
	select {
	case q <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe joins groupID on topic. Calls with the same topic and group share
// one queue.
func (b *InMemoryBroker) Subscribe(ctx context.Context, topic string, groupID string) (<-chan Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}
	if b.groups[topic] == nil {
		b.groups[topic] = make(map[string]chan Message)
	}
	if q, ok := b.groups[topic][groupID]; ok {
		return q, nil
	}

	pending := b.backlog[topic]
	q := make(chan Message, max(groupBuffer, len(pending)))
	for _, msg := range pending {
		q <- msg
	}
	delete(b.backlog, topic)
	b.groups[topic][groupID] = q
	return q, nil
}

// Close closes every group queue. Consumers see their channel closed.
func (b *InMemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for _, groups := range b.groups {
		for _, q := range groups {
			close(q)
		}
	}
	b.groups = nil
	b.backlog = nil
	return nil
}
