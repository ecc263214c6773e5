package kafka

import (
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"
)

func newMockedProducer(t *testing.T) (*Producer, *mocks.SyncProducer) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := &Producer{
		producer: mockProducer,
		logger:   log.WithField("component", "kafka-producer-test"),
	}
	return producer, mockProducer
}

func TestProducer_PublishEvent(t *testing.T) {
	producer, mockProducer := newMockedProducer(t)

	mockProducer.ExpectSendMessageAndSucceed()

	event := NewOrderEvent(
		EventTypeOrderCreated,
		"order-123",
		"owner-1",
		"pending",
		map[string]interface{}{"amount_minor": int64(250000)},
	)

	if err := producer.PublishEvent(TopicOrderEvents, "order-123", event); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishEvent_Error(t *testing.T) {
	producer, mockProducer := newMockedProducer(t)

	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	event := NewPaymentEvent(EventTypePaymentSettled, "pay-1", "order-123", "owner-1", "QJK1234567", nil)

	if err := producer.PublishEvent(TopicPaymentEvents, "order-123", event); err == nil {
		t.Fatal("expected error, got nil")
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestNewOrderEvent(t *testing.T) {
	event := NewOrderEvent(EventTypeOrderCancelled, "order-123", "owner-1", "cancelled", map[string]interface{}{
		"reason": "customer request",
	})

	if event.EventType != EventTypeOrderCancelled {
		t.Errorf("expected event type %s, got %s", EventTypeOrderCancelled, event.EventType)
	}
	if event.OrderID != "order-123" {
		t.Errorf("expected order id order-123, got %s", event.OrderID)
	}
	if event.OwnerID != "owner-1" {
		t.Errorf("expected owner id owner-1, got %s", event.OwnerID)
	}
	if event.Metadata["reason"] != "customer request" {
		t.Error("metadata not set correctly")
	}
	if event.Timestamp.IsZero() {
		t.Error("timestamp should not be zero")
	}
	if time.Since(event.Timestamp) > time.Second {
		t.Error("timestamp should be close to current time")
	}
}

func TestNewPaymentEvent(t *testing.T) {
	event := NewPaymentEvent(EventTypePaymentSettled, "pay-1", "order-123", "owner-1", "QJK1234567", nil)

	if event.EventType != EventTypePaymentSettled {
		t.Errorf("expected event type %s, got %s", EventTypePaymentSettled, event.EventType)
	}
	if event.PaymentID != "pay-1" {
		t.Errorf("expected payment id pay-1, got %s", event.PaymentID)
	}
	if event.Receipt != "QJK1234567" {
		t.Errorf("expected receipt QJK1234567, got %s", event.Receipt)
	}
	if event.Timestamp.IsZero() {
		t.Error("timestamp should not be zero")
	}
}
