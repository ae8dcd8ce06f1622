package broker

import (
	"context"
	"sync"
	"time"
)

const subscriberBuffer = 100

type subscriber struct {
	ch chan Message
}

// InMemoryBroker delivers every published message to every subscriber of its topic.
// Used by single-process setups and tests.
type InMemoryBroker struct {
	mu     sync.RWMutex
	subs   map[string][]*subscriber
	offset map[string]int64
	closed bool
	done   chan struct{}
}

// NewInMemoryBroker creates a new InMemoryBroker instance.
func NewInMemoryBroker() *InMemoryBroker {
	return &InMemoryBroker{
		subs:   make(map[string][]*subscriber),
		offset: make(map[string]int64),
		done:   make(chan struct{}),
	}
}

// Publish delivers the message to current subscribers, blocking while a subscriber's buffer
// is full until ctx ends.
func (b *InMemoryBroker) Publish(ctx context.Context, topic string, key string, value []byte) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBrokerClosed
	}
	offset := b.offset[topic]
	b.offset[topic]++
	b.mu.Unlock()

	msg := Message{
		Topic:     topic,
		Key:       key,
		Value:     value,
		Offset:    offset,
		Timestamp: time.Now().UnixMilli(),
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs[topic] {
		select {
		case s.ch <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Subscribe registers a subscriber until ctx ends. groupID is ignored.
func (b *InMemoryBroker) Subscribe(ctx context.Context, topic string, groupID string) (<-chan Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBrokerClosed
	}

	s := &subscriber{ch: make(chan Message, subscriberBuffer)}
	b.subs[topic] = append(b.subs[topic], s)

	go func() {
		select {
		case <-ctx.Done():
			b.unsubscribe(topic, s)
		case <-b.done:
		}
	}()

	return s.ch, nil
}

func (b *InMemoryBroker) unsubscribe(topic string, s *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[topic]
	for i, existing := range subs {
		if existing == s {
			b.subs[topic] = append(subs[:i], subs[i+1:]...)
			close(s.ch)
			return
		}
	}
}

// Close closes every subscriber channel.
func (b *InMemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	close(b.done)

	for topic, subs := range b.subs {
		for _, s := range subs {
			close(s.ch)
		}
		delete(b.subs, topic)
	}
	return nil
}
