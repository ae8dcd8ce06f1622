package broker

import (
	"context"
	"errors"
	"testing"
	"time"

	"devsonar/src/contracts"
)

func TestInMemoryBroker_PublishSubscribe(t *testing.T) {
	broker := NewInMemoryBroker()
	defer broker.Close()

	ctx := context.Background()
	topic := contracts.TopicReports
	key := "test-key"
	value := []byte("test message")

	msgChan, err := broker.Subscribe(ctx, topic, "test-group")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	if err := broker.Publish(ctx, topic, key, value); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case msg := <-msgChan:
		if msg.Topic != topic {
			t.Errorf("Expected topic %s, got %s", topic, msg.Topic)
		}
		if msg.Key != key {
			t.Errorf("Expected key %s, got %s", key, msg.Key)
		}
		if string(msg.Value) != string(value) {
			t.Errorf("Expected value %s, got %s", string(value), string(msg.Value))
		}
	case <-time.After(1 * time.Second):
		t.Fatal("Timeout waiting for message")
	}
}

func TestInMemoryBroker_MultipleSubscribers(t *testing.T) {
	broker := NewInMemoryBroker()
	defer broker.Close()

	ctx := context.Background()
	topic := contracts.TopicBatches

	sub1, err := broker.Subscribe(ctx, topic, "group1")
	if err != nil {
		t.Fatalf("Subscribe 1 failed: %v", err)
	}
	sub2, err := broker.Subscribe(ctx, topic, "group2")
	if err != nil {
		t.Fatalf("Subscribe 2 failed: %v", err)
	}

	value := []byte("broadcast message")
	if err := broker.Publish(ctx, topic, "key", value); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	for i, sub := range []<-chan Message{sub1, sub2} {
		select {
		case msg := <-sub:
			if string(msg.Value) != string(value) {
				t.Errorf("Subscriber %d: expected value %s, got %s", i+1, string(value), string(msg.Value))
			}
		case <-time.After(1 * time.Second):
			t.Fatalf("Subscriber %d: timeout waiting for message", i+1)
		}
	}
}

func TestInMemoryBroker_TopicIsolation(t *testing.T) {
	broker := NewInMemoryBroker()
	defer broker.Close()

	ctx := context.Background()
	chA, _ := broker.Subscribe(ctx, "topic-a", "g")
	chB, _ := broker.Subscribe(ctx, "topic-b", "g")

	if err := broker.Publish(ctx, "topic-a", "", []byte("for a")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case msg := <-chA:
		if string(msg.Value) != "for a" {
			t.Errorf("unexpected message on topic-a: %s", msg.Value)
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for message on topic-a")
	}

	select {
	case msg := <-chB:
		t.Errorf("topic-b received a message meant for topic-a: %s", msg.Value)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestInMemoryBroker_ContextCancelClosesChannel(t *testing.T) {
	broker := NewInMemoryBroker()
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := broker.Subscribe(ctx, "topic", "g")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected channel to be closed, got a message")
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for channel close")
	}

	if err := broker.Publish(context.Background(), "topic", "", []byte("x")); err != nil {
		t.Errorf("Publish after unsubscribe failed: %v", err)
	}
}

func TestInMemoryBroker_ClosedBroker(t *testing.T) {
	broker := NewInMemoryBroker()
	ch, _ := broker.Subscribe(context.Background(), "test", "group")
	broker.Close()

	if _, ok := <-ch; ok {
		t.Error("Expected subscriber channel to be closed")
	}

	ctx := context.Background()
	if err := broker.Publish(ctx, "test", "key", []byte("value")); !errors.Is(err, ErrBrokerClosed) {
		t.Errorf("Expected ErrBrokerClosed when publishing, got %v", err)
	}
	if _, err := broker.Subscribe(ctx, "test", "group"); !errors.Is(err, ErrBrokerClosed) {
		t.Errorf("Expected ErrBrokerClosed when subscribing, got %v", err)
	}
}

func TestPublishJSONAndDecode(t *testing.T) {
	broker := NewInMemoryBroker()
	defer broker.Close()

	ctx := context.Background()
	ch, _ := broker.Subscribe(ctx, contracts.TopicReports, "g")

	in := contracts.ErrorReport{Message: "panic: boom", Timestamp: "2026-03-01T12:00:00Z", Source: "stderr-go"}
	if err := PublishJSON(ctx, broker, contracts.TopicReports, in.Source, in); err != nil {
		t.Fatalf("PublishJSON failed: %v", err)
	}

	msg := <-ch
	var out contracts.ErrorReport
	if err := Decode(msg, &out); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if out.Message != in.Message || out.Source != in.Source {
		t.Errorf("expected %+v, got %+v", in, out)
	}

	if err := Decode(Message{Topic: "t", Value: []byte("{")}, &out); err == nil {
		t.Error("expected error for malformed JSON")
	}
}
