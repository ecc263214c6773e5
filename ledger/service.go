// Package ledger ведёт платёжные попытки вне заказов: разовые платежи,
// платёжные ссылки и ручные подтверждения по коду квитанции.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/duka/domain"
	"github.com/vladislavdragonenkov/duka/metrics"
	"github.com/vladislavdragonenkov/duka/mpesa"
)

// PaymentInput — параметры новой платёжной попытки.
type PaymentInput struct {
	Reference   string
	AmountMinor int64
	Method      domain.PaymentMethod
	Customer    domain.Customer
}

// Service — сервис платёжного журнала.
type Service struct {
	payments domain.PaymentRepository
	gateway  domain.Gateway
	metrics  *metrics.OrderMetrics
	logger   *log.Entry
}

// NewService создаёт сервис платёжного журнала. gateway может быть nil:
// тогда доступны только ручные операции, без STK и ссылок.
func NewService(payments domain.PaymentRepository, gateway domain.Gateway, m *metrics.OrderMetrics, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "ledger")
	}
	if m == nil {
		m = metrics.NewOrderMetrics()
	}
	return &Service{payments: payments, gateway: gateway, metrics: m, logger: logger}
}

// RecordPayment создаёт платёжную попытку в статусе pending.
func (s *Service) RecordPayment(ownerID string, input PaymentInput) (domain.PaymentAttempt, error) {
	now := time.Now().UTC()
	attempt := domain.PaymentAttempt{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Reference:   input.Reference,
		AmountMinor: input.AmountMinor,
		Status:      domain.AttemptStatusPending,
		Method:      input.Method,
		Customer:    input.Customer,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if errs := attempt.Validate(); len(errs) > 0 {
		return domain.PaymentAttempt{}, errors.Join(errs...)
	}
	if err := s.payments.Create(attempt); err != nil {
		return domain.PaymentAttempt{}, fmt.Errorf("create payment: %w", err)
	}

	s.logger.WithFields(log.Fields{
		"payment_id": attempt.ID,
		"reference":  attempt.Reference,
		"method":     attempt.Method,
	}).Info("payment recorded")

	return attempt, nil
}

// InitiateCharge отправляет STK-пуш по существующей попытке. Попытка
// остаётся pending до ручного подтверждения либо переводится в failed,
// если шлюз отклонил запрос.
func (s *Service) InitiateCharge(ctx context.Context, ownerID, paymentID string) (domain.ChargeHandle, error) {
	if s.gateway == nil {
		return domain.ChargeHandle{}, errors.New("gateway is not configured")
	}

	attempt, err := s.payments.Get(ownerID, paymentID)
	if err != nil {
		return domain.ChargeHandle{}, err
	}
	if attempt.Status.Terminal() {
		return domain.ChargeHandle{}, domain.ErrAttemptTerminal
	}

	s.metrics.RecordChargeInitiated()
	handle, err := s.gateway.InitiateCharge(ctx, domain.ChargeRequest{
		Phone:       attempt.Customer.Phone,
		AmountMinor: attempt.AmountMinor,
		Reference:   attempt.Reference,
	})
	if err != nil {
		s.metrics.RecordChargeFailed()
		if _, failErr := s.payments.Fail(ownerID, paymentID); failErr != nil {
			s.logger.WithError(failErr).WithField("payment_id", paymentID).
				Error("failed to mark payment failed after gateway error")
		}
		return domain.ChargeHandle{}, fmt.Errorf("initiate charge: %w", err)
	}

	if err := s.payments.SetCheckoutRequestID(ownerID, paymentID, handle.CheckoutRequestID); err != nil {
		return domain.ChargeHandle{}, err
	}
	return handle, nil
}

// CompletePayment подтверждает попытку кодом квитанции M-Pesa. Повторный
// вызов по уже подтверждённой попытке — ошибка ErrAttemptTerminal.
func (s *Service) CompletePayment(ownerID, paymentID, receipt string) (domain.PaymentAttempt, error) {
	if !mpesa.ValidReceipt(receipt) {
		return domain.PaymentAttempt{}, domain.ErrInvalidCode
	}
	attempt, err := s.payments.Complete(ownerID, paymentID, receipt)
	if err != nil {
		return domain.PaymentAttempt{}, err
	}
	s.metrics.RecordSettlement()
	s.logger.WithFields(log.Fields{
		"payment_id": paymentID,
		"receipt":    receipt,
	}).Info("payment completed")
	return attempt, nil
}

// FailPayment помечает попытку как неуспешную.
func (s *Service) FailPayment(ownerID, paymentID string) error {
	_, err := s.payments.Fail(ownerID, paymentID)
	return err
}

// CreatePaymentLink генерирует платёжную ссылку для попытки.
func (s *Service) CreatePaymentLink(ctx context.Context, ownerID, paymentID string) (domain.PaymentLink, error) {
	if s.gateway == nil {
		return domain.PaymentLink{}, errors.New("gateway is not configured")
	}

	attempt, err := s.payments.Get(ownerID, paymentID)
	if err != nil {
		return domain.PaymentLink{}, err
	}
	if attempt.Status.Terminal() {
		return domain.PaymentLink{}, domain.ErrAttemptTerminal
	}

	handle, err := s.gateway.GenerateLink(ctx, domain.LinkRequest{
		Reference:   attempt.Reference,
		AmountMinor: attempt.AmountMinor,
	})
	if err != nil {
		return domain.PaymentLink{}, fmt.Errorf("generate link: %w", err)
	}

	link := domain.PaymentLink{
		ID:        handle.TransactionID,
		PaymentID: attempt.ID,
		URL:       handle.URL,
		Status:    "active",
		ExpiresAt: handle.ExpiresAt,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.payments.CreateLink(link); err != nil {
		return domain.PaymentLink{}, fmt.Errorf("store link: %w", err)
	}
	return link, nil
}

// ListPayments возвращает попытки владельца, новые первыми.
func (s *Service) ListPayments(ownerID string, limit int) ([]domain.PaymentAttempt, error) {
	return s.payments.List(ownerID, limit)
}

// Stats — сводка попыток по статусам.
type Stats struct {
	Total     int
	Pending   int
	Completed int
	Failed    int
	// CollectedMinor — сумма подтверждённых попыток в минорных единицах.
	CollectedMinor int64
}

// StatsByStatus агрегирует попытки владельца по статусам.
func (s *Service) StatsByStatus(ownerID string) (Stats, error) {
	attempts, err := s.payments.List(ownerID, 0)
	if err != nil {
		return Stats{}, err
	}

	var stats Stats
	stats.Total = len(attempts)
	for _, attempt := range attempts {
		switch attempt.Status {
		case domain.AttemptStatusPending:
			stats.Pending++
		case domain.AttemptStatusCompleted:
			stats.Completed++
			stats.CollectedMinor += attempt.AmountMinor
		case domain.AttemptStatusFailed:
			stats.Failed++
		}
	}
	return stats, nil
}
