package domain

import (
	"errors"
	"fmt"
)

var (
	// Ошибка отсутствующего имени клиента в заказе.
	ErrCustomerNameRequired = errors.New("customer name is required")
	// Ошибка отсутствующего телефона клиента.
	ErrCustomerPhoneRequired = errors.New("customer phone is required")
	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка при некорректном количестве товара (< 1).
	ErrItemQtyInvalid = errors.New("item quantity must be at least one")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrAmountMismatch = errors.New("order amount does not match items sum")
	// Ошибка отрицательной цены товара в каталоге.
	ErrPriceNegative = errors.New("price must be non-negative")
	// Ошибка отрицательного остатка товара.
	ErrStockNegative = errors.New("stock must be non-negative")
	// Ошибка отсутствующего SKU у товара.
	ErrSKURequired = errors.New("sku is required")
	// Ошибка дублирующегося SKU в рамках одного владельца.
	ErrSKUTaken = errors.New("sku already in use")
	// Ошибка отсутствующего имени товара.
	ErrProductNameRequired = errors.New("product name is required")
	// Ошибка отрицательной суммы платежа.
	ErrPaymentAmountInvalid = errors.New("payment amount must be positive")
	// Ошибка отсутствующего референса платежа.
	ErrPaymentReferenceRequired = errors.New("payment reference is required")
	// Ошибка отсутствующей категории расхода.
	ErrExpenseCategoryRequired = errors.New("expense category is required")
	// Ошибка некорректной суммы расхода.
	ErrExpenseAmountInvalid = errors.New("expense amount must be positive")
	// Ошибка отсутствующего имени поставщика.
	ErrSupplierNameRequired = errors.New("supplier name is required")

	// ErrInvalidOrder возвращается при провале валидации заказа до любых
	// побочных эффектов; конкретные причины заворачиваются через %w.
	ErrInvalidOrder = errors.New("invalid order")
	// ErrInvalidCode возвращается при некорректном формате кода подтверждения
	// оплаты; никакие данные при этом не меняются.
	ErrInvalidCode = errors.New("invalid settlement code")
	// ErrNotFound возвращается, если запись не существует в рамках владельца.
	ErrNotFound = errors.New("not found")
	// ErrPermissionDenied сигнализирует о попытке доступа к чужим данным.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrVersionConflict сигнализирует о конфликте версий при сохранении заказа.
	ErrVersionConflict = errors.New("version conflict")
	// ErrAttemptTerminal возвращается при попытке изменить платёж,
	// уже находящийся в терминальном статусе (completed/failed).
	ErrAttemptTerminal = errors.New("payment attempt is terminal")
	// ErrOrderNotCancellable возвращается при отмене доставленного заказа.
	ErrOrderNotCancellable = errors.New("order cannot be cancelled")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// InsufficientStockError возвращается атомарной корректировкой остатка,
// когда списание увело бы остаток в минус. Содержит виновный товар.
type InsufficientStockError struct {
	ProductID string
	Requested int32
	Available int32
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// GatewayError оборачивает любую ошибку платёжного шлюза. Transient=true
// означает сетевую/временную проблему, которую имеет смысл повторить.
type GatewayError struct {
	Op        string // auth, stk_push, status_query
	Transient bool
	Err       error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("mpesa gateway %s failed: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// InconsistentStateError — фатальная ошибка компенсации: остаток был списан,
// заказ не сохранился, и вернуть списанное не удалось. Требует оператора.
type InconsistentStateError struct {
	OrderRef   string
	Unreverted []string // позиции, по которым компенсация не прошла
	Err        error
}

func (e *InconsistentStateError) Error() string {
	return fmt.Sprintf("inconsistent state for order %s: stock not reverted for %v: %v",
		e.OrderRef, e.Unreverted, e.Err)
}

func (e *InconsistentStateError) Unwrap() error { return e.Err }

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

// IsTransient сообщает, имеет ли смысл повторять операцию после этой ошибки.
func IsTransient(err error) bool {
	var ge *GatewayError
	return errors.As(err, &ge) && ge.Transient
}
