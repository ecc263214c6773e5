package postgres

import (
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/duka/domain"
)

func TestOutboxRepository_PostgresEnqueuePullAndMark(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOutboxRepository(store)

	msg, err := repo.Enqueue(domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   "order-1",
		EventType:     "OrderCreated",
		Payload:       []byte(`{"order_id":"order-1"}`),
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if msg.ID == "" {
		t.Fatal("expected generated message id")
	}

	pending, err := repo.PullPending(10)
	if err != nil {
		t.Fatalf("pull pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != msg.ID {
		t.Fatalf("unexpected pending set: %+v", pending)
	}
	if string(pending[0].Payload) != `{"order_id":"order-1"}` {
		t.Fatalf("payload corrupted: %s", pending[0].Payload)
	}

	stats, err := repo.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.PendingCount != 1 || stats.OldestPendingAt.IsZero() {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	if err := repo.MarkSent(msg.ID); err != nil {
		t.Fatalf("mark sent: %v", err)
	}

	after, err := repo.PullPending(10)
	if err != nil {
		t.Fatalf("pull after mark: %v", err)
	}
	if len(after) != 0 {
		t.Fatalf("expected empty backlog, got %+v", after)
	}
}

func TestOutboxRepository_PostgresMarkMissing(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOutboxRepository(store)

	if err := repo.MarkSent("missing-id"); !errors.Is(err, domain.ErrOutboxPublish) {
		t.Fatalf("expected ErrOutboxPublish, got %v", err)
	}
	if err := repo.MarkFailed("missing-id"); !errors.Is(err, domain.ErrOutboxPublish) {
		t.Fatalf("expected ErrOutboxPublish on fail, got %v", err)
	}
}

func TestTimelineRepository_PostgresAppendAndList(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewTimelineRepository(store)

	events := []domain.TimelineEvent{
		{OrderID: "order-1", Type: "OrderCreated"},
		{OrderID: "order-1", Type: "PaymentSettled", Reason: "QJK1234567"},
		{OrderID: "order-2", Type: "OrderCreated"},
	}
	for _, event := range events {
		if err := repo.Append(event); err != nil {
			t.Fatalf("append %s: %v", event.Type, err)
		}
	}

	listed, err := repo.List("order-1")
	if err != nil {
		t.Fatalf("list timeline: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 events, got %d", len(listed))
	}
	if listed[0].Type != "OrderCreated" || listed[1].Type != "PaymentSettled" {
		t.Fatalf("unexpected ordering: %+v", listed)
	}
	if listed[1].Reason != "QJK1234567" {
		t.Fatalf("reason lost: %+v", listed[1])
	}
	if listed[0].Occurred.IsZero() {
		t.Fatal("occurred must be filled on append")
	}
}
