package domain

import "time"

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан, остаток уже списан, оплата не начата.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusConfirmed — заказ подтверждён мерчантом.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusDispatched — заказ передан в доставку.
	OrderStatusDispatched OrderStatus = "dispatched"
	// OrderStatusDelivered — заказ доставлен клиенту.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled — заказ отменён до завершения цикла.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// PaymentState описывает состояние оплаты заказа (отдельно от статуса доставки).
type PaymentState string

const (
	PaymentStatePending   PaymentState = "pending"
	PaymentStatePaid      PaymentState = "paid"
	PaymentStateRefunded  PaymentState = "refunded"
	PaymentStateCancelled PaymentState = "cancelled"
)

// PaymentMethod перечисляет поддерживаемые способы оплаты.
type PaymentMethod string

const (
	// PaymentMethodMpesaSTK — push-запрос на телефон клиента (Daraja STK).
	PaymentMethodMpesaSTK PaymentMethod = "mpesa_stk"
	// PaymentMethodMpesaLink — оплата по сгенерированной ссылке.
	PaymentMethodMpesaLink PaymentMethod = "mpesa_link"
	// PaymentMethodMpesaManual — клиент платит сам, мерчант вводит код квитанции.
	PaymentMethodMpesaManual PaymentMethod = "mpesa_manual"
	PaymentMethodCard        PaymentMethod = "card"
	PaymentMethodCash        PaymentMethod = "cash"
)

// DeliveryMode — способ получения заказа.
type DeliveryMode string

const (
	// DeliveryModeBoda — курьерская доставка (boda boda).
	DeliveryModeBoda DeliveryMode = "boda"
	// DeliveryModePickup — самовывоз.
	DeliveryModePickup DeliveryMode = "pickup"
)

// OrderItem представляет одну позицию заказа. PriceMinor — снимок цены на
// момент создания заказа; позднейшие изменения цены в каталоге его не трогают.
type OrderItem struct {
	ID        string
	ProductID string
	// ProductName дублируется из каталога, чтобы заказ читался без join.
	ProductName string
	Qty         int32
	PriceMinor  int64
	CreatedAt   time.Time
}

// Customer — контакт клиента, встроенный в заказ.
type Customer struct {
	Name  string
	Phone string
	Email string // опционально
}

// Delivery — параметры доставки заказа.
type Delivery struct {
	Address string
	Mode    DeliveryMode
	Notes   string
}

// Order агрегирует состояние заказа и его позиции.
type Order struct {
	ID       string
	OwnerID  string
	Customer Customer
	Delivery Delivery
	// AmountMinor — сумма заказа, зафиксированная при создании.
	AmountMinor   int64
	Status        OrderStatus
	PaymentStatus PaymentState
	PaymentMethod PaymentMethod
	// SettlementCode — код квитанции M-Pesa, если оплата подтверждена вручную.
	SettlementCode string
	Items          []OrderItem
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.Customer.Name == "" {
		errs = append(errs, ErrCustomerNameRequired)
	}
	if o.Customer.Phone == "" {
		errs = append(errs, ErrCustomerPhoneRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}

	// Сверяем сумму заказа с суммой позиций: qty * price.
	var calc int64
	for _, item := range o.Items {
		if item.Qty < 1 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.PriceMinor < 0 {
			errs = append(errs, ErrItemPriceInvalid)
		}
		calc += int64(item.Qty) * item.PriceMinor
	}
	if calc != o.AmountMinor {
		errs = append(errs, ErrAmountMismatch)
	}

	return errs
}

// Cancellable сообщает, можно ли ещё отменить заказ.
func (o *Order) Cancellable() bool {
	return o.Status != OrderStatusDelivered && o.Status != OrderStatusCancelled
}
