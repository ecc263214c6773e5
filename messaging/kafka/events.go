package kafka

import "time"

// EventType определяет тип публикуемого события.
type EventType string

const (
	// События заказа
	EventTypeOrderCreated       EventType = "order.created"
	EventTypeOrderStatusChanged EventType = "order.status_changed"
	EventTypeOrderCancelled     EventType = "order.cancelled"

	// События платежей
	EventTypeChargeInitiated EventType = "payment.charge_initiated"
	EventTypeChargeFailed    EventType = "payment.charge_failed"
	EventTypePaymentSettled  EventType = "payment.settled"
	EventTypePaymentRefunded EventType = "payment.refunded"
)

// Topics для Kafka
const (
	TopicOrderEvents     = "duka.order.events"
	TopicPaymentEvents   = "duka.payment.events"
	TopicDeadLetterQueue = "duka.dlq"
)

// Kafka headers для retry-логики DLQ
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

// OrderEvent представляет событие жизненного цикла заказа.
type OrderEvent struct {
	EventType EventType              `json:"event_type"`
	OrderID   string                 `json:"order_id"`
	OwnerID   string                 `json:"owner_id"`
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// PaymentEvent представляет событие платёжной попытки.
type PaymentEvent struct {
	EventType EventType              `json:"event_type"`
	PaymentID string                 `json:"payment_id"`
	OrderID   string                 `json:"order_id,omitempty"`
	OwnerID   string                 `json:"owner_id"`
	Receipt   string                 `json:"receipt,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewOrderEvent создаёт событие заказа.
func NewOrderEvent(eventType EventType, orderID, ownerID, status string, metadata map[string]interface{}) *OrderEvent {
	return &OrderEvent{
		EventType: eventType,
		OrderID:   orderID,
		OwnerID:   ownerID,
		Status:    status,
		Timestamp: time.Now(),
		Metadata:  metadata,
	}
}

// NewPaymentEvent создаёт событие платежа.
func NewPaymentEvent(eventType EventType, paymentID, orderID, ownerID, receipt string, metadata map[string]interface{}) *PaymentEvent {
	return &PaymentEvent{
		EventType: eventType,
		PaymentID: paymentID,
		OrderID:   orderID,
		OwnerID:   ownerID,
		Receipt:   receipt,
		Timestamp: time.Now(),
		Metadata:  metadata,
	}
}
