package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"devsonar/src/logger"
)

const (
	clientID = "devsonar"

	// dialTimeout bounds the reachability check done at construction.
	dialTimeout = 5 * time.Second
)

// RedpandaBroker is a Kafka-compatible broker backed by franz-go.
// One client produces; every Subscribe call gets its own group consumer.
type RedpandaBroker struct {
	producer *kgo.Client
	seeds    []string
	logger   logger.Logger

	mu        sync.Mutex
	consumers map[string]*kgo.Client // "topic:group"
	closed    bool
}

// NewRedpandaBroker connects to the seed brokers (e.g. ["localhost:9092"]) and fails fast
// when none of them answers.
func NewRedpandaBroker(seeds []string, log logger.Logger) (*RedpandaBroker, error) {
	if len(seeds) == 0 {
		return nil, errors.New("at least one broker address is required")
	}
	if log == nil {
		log = logger.NewSilentLogger()
	}

	producer, err := kgo.NewClient(
		kgo.SeedBrokers(seeds...),
		kgo.ClientID(clientID),
		kgo.AllowAutoTopicCreation(),
		kgo.ProducerLinger(10*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	if err := producer.Ping(ctx); err != nil {
		producer.Close()
		return nil, fmt.Errorf("no broker reachable at %v: %w", seeds, err)
	}

	log.Info("[RedpandaBroker] Connected to %v", seeds)
	return &RedpandaBroker{
		producer:  producer,
		seeds:     seeds,
		logger:    log,
		consumers: make(map[string]*kgo.Client),
	}, nil
}

// Publish produces one record and waits for the broker to acknowledge it.
func (b *RedpandaBroker) Publish(ctx context.Context, topic string, key string, value []byte) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrBrokerClosed
	}

	record := &kgo.Record{Topic: topic, Key: []byte(key), Value: value}
	if err := b.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("failed to produce to %s: %w", topic, err)
	}
	return nil
}

// Subscribe joins groupID on topic. New groups start at the latest offset: reports that
// arrived while no relay was listening are stale by the time one starts.
// The channel closes when ctx ends or the broker is closed.
func (b *RedpandaBroker) Subscribe(ctx context.Context, topic string, groupID string) (<-chan Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBrokerClosed
	}

	key := topic + ":" + groupID
	if _, exists := b.consumers[key]; exists {
		return nil, fmt.Errorf("already subscribed to %s as group %s", topic, groupID)
	}

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(b.seeds...),
		kgo.ClientID(clientID),
		kgo.ConsumerGroup(groupID),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtEnd()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}
	b.consumers[key] = consumer

	out := make(chan Message, subscriberBuffer)
	go func() {
		defer close(out)
		b.poll(ctx, consumer, out)

		b.mu.Lock()
		if b.consumers[key] == consumer {
			delete(b.consumers, key)
			consumer.Close()
		}
		b.mu.Unlock()
	}()

	return out, nil
}

func (b *RedpandaBroker) poll(ctx context.Context, consumer *kgo.Client, out chan<- Message) {
	for ctx.Err() == nil {
		fetches := consumer.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return
		}

		fetches.EachError(func(topic string, partition int32, err error) {
			if ctx.Err() == nil {
				b.logger.Warn("[RedpandaBroker] Fetch error on %s/%d: %v", topic, partition, err)
			}
		})

		for iter := fetches.RecordIter(); !iter.Done(); {
			select {
			case out <- toMessage(iter.Next()):
			case <-ctx.Done():
				return
			}
		}
	}
}

func toMessage(r *kgo.Record) Message {
	return Message{
		Topic:     r.Topic,
		Key:       string(r.Key),
		Value:     r.Value,
		Offset:    r.Offset,
		Partition: r.Partition,
		Timestamp: r.Timestamp.UnixMilli(),
	}
}

// Close stops every consumer and the producer. It is safe to call more than once.
func (b *RedpandaBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for key, consumer := range b.consumers {
		consumer.Close()
		delete(b.consumers, key)
	}
	b.producer.Close()
	return nil
}
