package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"rapport-agent/src/logger"
)

// RedpandaBroker queues jobs on a Kafka-compatible cluster using franz-go.
//
// Delivery is at least once: a record's offset is committed only after it
// has been handed to a worker, so records polled but never delivered (for
// example during shutdown) are redelivered to the group. Consumers must
// tolerate duplicates; the job store's pending -> processing transition does.
type RedpandaBroker struct {
	client    *kgo.Client
	brokers   []string
	logger    logger.Logger
	mu        sync.RWMutex
	consumers []*kgo.Client
	members   int
	closed    bool
}

// commitTimeout bounds the final offset commit on Close.
const commitTimeout = 5 * time.Second

// producerID names the producing client in broker logs and quotas.
const producerID = "rapport-producer"

// memberClientID names the n-th group member created by this process.
func memberClientID(groupID string, n int) string {
	return fmt.Sprintf("rapport-%s-%d", groupID, n)
}

// NewRedpandaBroker creates a new RedpandaBroker instance.
// brokers is a slice of broker addresses (e.g., ["localhost:19092"]).
func NewRedpandaBroker(brokers []string, log logger.Logger) (*RedpandaBroker, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one broker address is required")
	}
	if log == nil {
		log = logger.NewSilentLogger()
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.AllowAutoTopicCreation(),
		kgo.ClientID(producerID),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka client: %w", err)
	}

	return &RedpandaBroker{
		client:  client,
		brokers: brokers,
		logger:  log,
	}, nil
}

// Publish sends a message to a topic with the specified key.
func (b *RedpandaBroker) Publish(ctx context.Context, topic string, key string, value []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrClosed
	}

	record := &kgo.Record{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	}

	// Synchronous produce: Submit must not report success before the job is queued.
	if err := b.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("failed to produce message: %w", err)
	}
	return nil
}

// Subscribe creates a group member for the topic. Each call adds one member,
// so several workers in the same group split the topic's partitions.
func (b *RedpandaBroker) Subscribe(ctx context.Context, topic string, groupID string) (<-chan Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	b.members++
	clientID := memberClientID(groupID, b.members)
	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(b.brokers...),
		kgo.ClientID(clientID),
		kgo.ConsumerGroup(groupID),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.AllowAutoTopicCreation(),
		// Only offsets of delivered records are committed.
		kgo.AutoCommitMarks(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer %s: %w", clientID, err)
	}
	b.consumers = append(b.consumers, consumer)
	b.logger.Debug("[RedpandaBroker] %s joined group %s on %s", clientID, groupID, topic)

	// Unbuffered: a record counts as delivered once a worker has taken it.
	msgChan := make(chan Message)
	go b.consumeLoop(ctx, consumer, msgChan)
	return msgChan, nil
}

// toMessage converts a fetched record into a Message.
func toMessage(record *kgo.Record) Message {
	return Message{
		Topic:     record.Topic,
		Key:       string(record.Key),
		Value:     record.Value,
		Offset:    record.Offset,
		Partition: record.Partition,
		Timestamp: record.Timestamp.UnixMilli(),
	}
}

// consumeLoop polls for job records and hands them to the subscriber one at
// a time, marking each for commit once it has been taken.
func (b *RedpandaBroker) consumeLoop(ctx context.Context, consumer *kgo.Client, msgChan chan<- Message) {
	defer close(msgChan)

	for {
		if ctx.Err() != nil {
			return
		}
		fetches := consumer.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return
		}

		if errs := fetches.Errors(); len(errs) > 0 {
			for _, err := range errs {
				if ctx.Err() != nil {
					return
				}
				b.logger.Error("[RedpandaBroker] Fetch error on %s/%d: %v", err.Topic, err.Partition, err.Err)
			}
			continue
		}

		iter := fetches.RecordIter()
		for !iter.Done() {
			record := iter.Next()
			select {
			case msgChan <- toMessage(record):
				consumer.MarkCommitRecords(record)
			case <-ctx.Done():
				return
			}
		}
	}
}

// Close shuts down the broker and all consumer connections.
func (b *RedpandaBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for _, consumer := range b.consumers {
		ctx, cancel := context.WithTimeout(context.Background(), commitTimeout)
		if err := consumer.CommitMarkedOffsets(ctx); err != nil {
			b.logger.Error("[RedpandaBroker] Final commit failed: %v", err)
		}
		cancel()
		consumer.Close()
	}
	b.consumers = nil
	b.client.Close()
	return nil
}
