package domain

import (
	"context"
	"time"
)

// ProductRepository описывает требования к хранилищу каталога. Все методы
// принимают ownerID: записи изолированы по владельцу, и владелец всегда
// берётся из аутентифицированной сессии, никогда из клиентского payload.
type ProductRepository interface {
	// Create сохраняет новый товар; ErrSKUTaken при дубликате SKU у владельца.
	Create(product Product) error
	// Get возвращает товар или ErrNotFound в рамках владельца.
	Get(ownerID, id string) (Product, error)
	// List возвращает товары владельца, новые первыми.
	List(ownerID string) ([]Product, error)
	// Update перезаписывает атрибуты товара, НЕ трогая остаток.
	Update(product Product) error
	// Delete удаляет товар владельца.
	Delete(ownerID, id string) error
	// AdjustStock атомарно применяет дельту к остатку. Если результат ушёл бы
	// в минус — *InsufficientStockError и никаких изменений. Реализация обязана
	// выражать это одним условным обновлением, а не read-modify-write парой.
	AdjustStock(ownerID, id string, delta int32) (Product, error)
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет новый заказ вместе с позициями.
	Create(order Order) error
	// Get возвращает заказ по идентификатору или ErrNotFound.
	Get(ownerID, id string) (Order, error)
	// List возвращает заказы владельца, новые первыми, с ограничением limit (если >0).
	List(ownerID string, limit int) ([]Order, error)
	// Save применяет обновления к заказу с учётом optimistic locking.
	Save(order Order) error
	// Delete удаляет заказ владельца.
	Delete(ownerID, id string) error
}

// PaymentRepository хранит попытки платежей и платёжные ссылки.
type PaymentRepository interface {
	Create(attempt PaymentAttempt) error
	Get(ownerID, id string) (PaymentAttempt, error)
	// List возвращает попытки владельца, новые первыми.
	List(ownerID string, limit int) ([]PaymentAttempt, error)
	// ListByOrder возвращает попытки по заказу, новые первыми.
	ListByOrder(ownerID, orderID string) ([]PaymentAttempt, error)
	// SetCheckoutRequestID записывает корреляционный идентификатор шлюза.
	SetCheckoutRequestID(ownerID, id, checkoutRequestID string) error
	// Complete переводит pending-попытку в completed с кодом квитанции.
	// Условное обновление: для уже терминальной попытки — ErrAttemptTerminal.
	Complete(ownerID, id, receipt string) (PaymentAttempt, error)
	// Fail переводит pending-попытку в failed; для терминальной — ErrAttemptTerminal.
	Fail(ownerID, id string) (PaymentAttempt, error)
	// CreateLink сохраняет платёжную ссылку.
	CreateLink(link PaymentLink) error
}

// ChargeRequest — запрос на списание через мобильный шлюз.
type ChargeRequest struct {
	// Phone в любом локальном виде; клиент шлюза нормализует к формату 254....
	Phone string
	// AmountMinor в минимальных единицах; шлюз принимает только целые шиллинги.
	AmountMinor int64
	// Reference — строка мерчанта, коррелирующая платёж с заказом.
	Reference   string
	Description string
}

// ChargeHandle — результат успешной инициации списания.
type ChargeHandle struct {
	CheckoutRequestID string
	MerchantRequestID string
	Description       string
}

// ChargeStatus — ответ шлюза на запрос статуса транзакции.
type ChargeStatus struct {
	CheckoutRequestID string
	ResultCode        string
	ResultDesc        string
}

// LinkRequest — запрос на генерацию платёжной ссылки.
type LinkRequest struct {
	AmountMinor int64
	Reference   string
	Description string
}

// LinkHandle — сгенерированная ссылка и её срок жизни.
type LinkHandle struct {
	URL           string
	TransactionID string
	ExpiresAt     time.Time
}

// Gateway описывает взаимодействие с внешним мобильным платёжным шлюзом.
// Любая ошибка реализации — *GatewayError.
type Gateway interface {
	// InitiateCharge инициирует push-запрос на телефон клиента.
	InitiateCharge(ctx context.Context, req ChargeRequest) (ChargeHandle, error)
	// QueryStatus запрашивает статус ранее инициированного списания.
	QueryStatus(ctx context.Context, checkoutRequestID string) (ChargeStatus, error)
	// GenerateLink создаёт платёжную ссылку для оплаты без push-запроса.
	GenerateLink(ctx context.Context, req LinkRequest) (LinkHandle, error)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(event TimelineEvent) error
	List(orderID string) ([]TimelineEvent, error)
}

// ExpenseRepository хранит расходы владельца.
type ExpenseRepository interface {
	Create(expense Expense) error
	Get(ownerID, id string) (Expense, error)
	List(ownerID string) ([]Expense, error)
	Update(expense Expense) error
	Delete(ownerID, id string) error
}

// SupplierRepository хранит поставщиков владельца.
type SupplierRepository interface {
	Create(supplier Supplier) error
	Get(ownerID, id string) (Supplier, error)
	List(ownerID string) ([]Supplier, error)
	Update(supplier Supplier) error
	Delete(ownerID, id string) error
}

// TeamRepository хранит участников команды и приглашения.
type TeamRepository interface {
	AddMember(member TeamMember) error
	ListMembers(ownerID string) ([]TeamMember, error)
	UpdateMember(member TeamMember) error
	RemoveMember(ownerID, id string) error
	CreateInvite(invite TeamInvite) error
	ListInvites(ownerID string) ([]TeamInvite, error)
	UpdateInvite(invite TeamInvite) error
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
