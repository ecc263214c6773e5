package domain

import "time"

// AttemptStatus описывает состояние попытки списания средств.
type AttemptStatus string

const (
	// AttemptStatusPending — запись создана, подтверждения от шлюза ещё нет.
	AttemptStatusPending AttemptStatus = "pending"
	// AttemptStatusCompleted — оплата подтверждена; статус терминальный.
	AttemptStatusCompleted AttemptStatus = "completed"
	// AttemptStatusFailed — шлюз отклонил запрос или произошла ошибка; терминальный.
	AttemptStatusFailed AttemptStatus = "failed"
)

// Terminal сообщает, допускает ли статус дальнейшие переходы.
func (s AttemptStatus) Terminal() bool {
	return s == AttemptStatusCompleted || s == AttemptStatusFailed
}

// PaymentAttempt — одна попытка собрать деньги через внешний шлюз.
// Отделена от заказа: попыток на заказ может быть несколько, а платёж
// может существовать и без заказа (Reference — произвольная строка).
type PaymentAttempt struct {
	ID      string
	OwnerID string
	// OrderID пустой для платежей, не привязанных к заказу.
	OrderID     string
	Reference   string
	AmountMinor int64
	Status      AttemptStatus
	Method      PaymentMethod
	Customer    Customer
	// CheckoutRequestID — корреляционный идентификатор, выданный шлюзом.
	CheckoutRequestID string
	// Receipt — код квитанции M-Pesa после подтверждения оплаты.
	Receipt   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate проверяет корректность полей попытки платежа.
func (p *PaymentAttempt) Validate() []error {
	var errs []error

	if p.Reference == "" {
		errs = append(errs, ErrPaymentReferenceRequired)
	}
	if p.AmountMinor <= 0 {
		errs = append(errs, ErrPaymentAmountInvalid)
	}
	if p.Customer.Name == "" {
		errs = append(errs, ErrCustomerNameRequired)
	}

	return errs
}

// PaymentLink — сгенерированная ссылка на оплату с ограниченным сроком жизни.
type PaymentLink struct {
	ID        string
	PaymentID string
	URL       string
	Status    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
