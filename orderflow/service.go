// Package orderflow связывает каталог, платежи и журнал заказов в единый
// процесс: атомарное списание остатков при создании заказа с компенсацией
// при сбое, инициация STK-пуша и ручное подтверждение оплаты кодом
// квитанции.
package orderflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/duka/domain"
	"github.com/vladislavdragonenkov/duka/messaging/kafka"
	"github.com/vladislavdragonenkov/duka/metrics"
	"github.com/vladislavdragonenkov/duka/mpesa"
)

// ItemInput — позиция нового заказа. Цена не принимается от клиента:
// снимок цены берётся из каталога в момент создания.
type ItemInput struct {
	ProductID string
	Qty       int32
}

// CreateOrderInput — параметры нового заказа.
type CreateOrderInput struct {
	Customer      domain.Customer
	Delivery      domain.Delivery
	PaymentMethod domain.PaymentMethod
	Items         []ItemInput
}

// Service реализует последовательность шагов создания заказа:
// снимок цен → списание остатков → запись заказа, с компенсирующим
// возвратом остатков при сбое любого шага.
type Service struct {
	orders        domain.OrderRepository
	products      domain.ProductRepository
	payments      domain.PaymentRepository
	outbox        domain.OutboxRepository
	timeline      domain.TimelineRepository
	gateway       domain.Gateway
	kafkaProducer *kafka.Producer // опциональный producer для event-driven интеграций
	metrics       *metrics.OrderMetrics
	logger        *log.Entry
}

// Deps — зависимости сервиса заказов. gateway и kafkaProducer опциональны.
type Deps struct {
	Orders   domain.OrderRepository
	Products domain.ProductRepository
	Payments domain.PaymentRepository
	Outbox   domain.OutboxRepository
	Timeline domain.TimelineRepository
	Gateway  domain.Gateway
	Producer *kafka.Producer
}

// NewService создаёт рабочий экземпляр сервиса заказов.
func NewService(deps Deps, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "orderflow")
	}
	return &Service{
		orders:        deps.Orders,
		products:      deps.Products,
		payments:      deps.Payments,
		outbox:        deps.Outbox,
		timeline:      deps.Timeline,
		gateway:       deps.Gateway,
		kafkaProducer: deps.Producer,
		metrics:       metrics.NewOrderMetrics(),
		logger:        logger,
	}
}

// NewServiceWithoutMetrics создаёт сервис без метрик (для тестов).
func NewServiceWithoutMetrics(deps Deps, logger *log.Entry) *Service {
	svc := NewService(deps, logger)
	svc.metrics = nil
	return svc
}

// CreateOrder создаёт заказ: фиксирует снимки цен из каталога, затем
// последовательно списывает остатки по каждой позиции. Если любое
// списание или запись заказа не удались, уже списанные позиции
// возвращаются обратно; заказ при этом не появляется вовсе.
func (s *Service) CreateOrder(ownerID string, input CreateOrderInput) (domain.Order, error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordCreateDuration(time.Since(start))
		}
	}()

	order, err := s.buildOrder(ownerID, input)
	if err != nil {
		s.recordOrderFailed()
		return domain.Order{}, err
	}

	adjustStart := time.Now()
	adjusted, err := s.deductStock(ownerID, order.Items)
	if err != nil {
		s.recordOrderFailed()
		if rbErr := s.restock(ownerID, order.ID, adjusted); rbErr != nil {
			return domain.Order{}, rbErr
		}
		return domain.Order{}, err
	}
	if s.metrics != nil {
		s.metrics.RecordStepDuration("adjust_stock", time.Since(adjustStart))
	}

	persistStart := time.Now()
	if err := s.orders.Create(order); err != nil {
		s.recordOrderFailed()
		s.logger.WithError(err).WithField("order_id", order.ID).Error("failed to persist order")
		if rbErr := s.restock(ownerID, order.ID, order.Items); rbErr != nil {
			return domain.Order{}, rbErr
		}
		return domain.Order{}, fmt.Errorf("persist order: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordStepDuration("persist", time.Since(persistStart))
		s.metrics.RecordOrderCreated()
	}

	s.logger.WithFields(log.Fields{
		"order_id":     order.ID,
		"amount_minor": order.AmountMinor,
		"items":        len(order.Items),
	}).Info("order created")

	s.emitEvent(&order, "OrderCreated", map[string]interface{}{
		"amount_minor": order.AmountMinor,
		"items_count":  len(order.Items),
		"ts":           order.CreatedAt.Format(time.RFC3339Nano),
	})
	s.publishOrderEvent(kafka.EventTypeOrderCreated, &order, map[string]interface{}{
		"amount_minor": order.AmountMinor,
	})

	return order, nil
}

// buildOrder валидирует вход и собирает заказ со снимками цен каталога.
func (s *Service) buildOrder(ownerID string, input CreateOrderInput) (domain.Order, error) {
	now := time.Now().UTC()
	order := domain.Order{
		ID:            uuid.NewString(),
		OwnerID:       ownerID,
		Customer:      input.Customer,
		Delivery:      input.Delivery,
		Status:        domain.OrderStatusPending,
		PaymentStatus: domain.PaymentStatePending,
		PaymentMethod: input.PaymentMethod,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	for _, item := range input.Items {
		if item.Qty < 1 {
			return domain.Order{}, fmt.Errorf("%w: %w", domain.ErrInvalidOrder, domain.ErrItemQtyInvalid)
		}
		product, err := s.products.Get(ownerID, item.ProductID)
		if err != nil {
			return domain.Order{}, fmt.Errorf("resolve product %s: %w", item.ProductID, err)
		}
		order.Items = append(order.Items, domain.OrderItem{
			ID:          uuid.NewString(),
			ProductID:   product.ID,
			ProductName: product.Name,
			Qty:         item.Qty,
			PriceMinor:  product.PriceMinor,
			CreatedAt:   now,
		})
		order.AmountMinor += int64(item.Qty) * product.PriceMinor
	}

	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return domain.Order{}, fmt.Errorf("%w: %w", domain.ErrInvalidOrder, errors.Join(errs...))
	}
	return order, nil
}

// deductStock последовательно списывает остатки по позициям. Возвращает
// позиции, которые успели списаться: их компенсирует вызывающая сторона.
func (s *Service) deductStock(ownerID string, items []domain.OrderItem) ([]domain.OrderItem, error) {
	adjusted := make([]domain.OrderItem, 0, len(items))
	for _, item := range items {
		if _, err := s.products.AdjustStock(ownerID, item.ProductID, -item.Qty); err != nil {
			s.logger.WithError(err).WithFields(log.Fields{
				"product_id": item.ProductID,
				"qty":        item.Qty,
			}).Warn("stock deduction failed")
			return adjusted, err
		}
		adjusted = append(adjusted, item)
	}
	return adjusted, nil
}

// restock возвращает остатки по списку позиций. Если вернуть удалось не
// всё, возвращается *InconsistentStateError со списком невозвращённых
// позиций: такое состояние требует ручного вмешательства.
func (s *Service) restock(ownerID, orderRef string, items []domain.OrderItem) error {
	var unreverted []string
	var lastErr error
	for _, item := range items {
		if _, err := s.products.AdjustStock(ownerID, item.ProductID, item.Qty); err != nil {
			s.logger.WithError(err).WithFields(log.Fields{
				"order_id":   orderRef,
				"product_id": item.ProductID,
			}).Error("stock rollback failed")
			unreverted = append(unreverted, item.ProductID)
			lastErr = err
			continue
		}
		if s.metrics != nil {
			s.metrics.RecordStockRollback()
		}
	}
	if len(unreverted) > 0 {
		return &domain.InconsistentStateError{
			OrderRef:   orderRef,
			Unreverted: unreverted,
			Err:        lastErr,
		}
	}
	return nil
}

// InitiateCharge отправляет STK-пуш по заказу. Платёжная попытка создаётся
// в статусе pending ДО обращения к шлюзу: упавший запрос оставляет след в
// журнале. Остатки этот шаг не трогает. method фиксируется на попытке;
// пустой method наследуется от заказа.
func (s *Service) InitiateCharge(ctx context.Context, ownerID, orderID string, method domain.PaymentMethod) (domain.ChargeHandle, error) {
	if s.gateway == nil {
		return domain.ChargeHandle{}, errors.New("gateway is not configured")
	}

	order, err := s.orders.Get(ownerID, orderID)
	if err != nil {
		return domain.ChargeHandle{}, err
	}
	if order.PaymentStatus == domain.PaymentStatePaid {
		return domain.ChargeHandle{}, domain.ErrAttemptTerminal
	}

	if method == "" {
		method = order.PaymentMethod
	}
	if method == "" {
		method = domain.PaymentMethodMpesaSTK
	}

	now := time.Now().UTC()
	attempt := domain.PaymentAttempt{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		OrderID:     order.ID,
		Reference:   order.ID,
		AmountMinor: order.AmountMinor,
		Status:      domain.AttemptStatusPending,
		Method:      method,
		Customer:    order.Customer,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.payments.Create(attempt); err != nil {
		return domain.ChargeHandle{}, fmt.Errorf("create payment attempt: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordChargeInitiated()
	}
	handle, err := s.gateway.InitiateCharge(ctx, domain.ChargeRequest{
		Phone:       order.Customer.Phone,
		AmountMinor: order.AmountMinor,
		Reference:   order.ID,
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordChargeFailed()
		}
		if _, failErr := s.payments.Fail(ownerID, attempt.ID); failErr != nil {
			s.logger.WithError(failErr).WithField("payment_id", attempt.ID).
				Error("failed to mark attempt failed after gateway error")
		}
		s.publishPaymentEvent(kafka.EventTypeChargeFailed, &attempt, nil)
		return domain.ChargeHandle{}, fmt.Errorf("initiate charge: %w", err)
	}

	if err := s.payments.SetCheckoutRequestID(ownerID, attempt.ID, handle.CheckoutRequestID); err != nil {
		return domain.ChargeHandle{}, err
	}

	s.logger.WithFields(log.Fields{
		"order_id":            order.ID,
		"payment_id":          attempt.ID,
		"checkout_request_id": handle.CheckoutRequestID,
	}).Info("charge initiated")

	s.publishPaymentEvent(kafka.EventTypeChargeInitiated, &attempt, map[string]interface{}{
		"checkout_request_id": handle.CheckoutRequestID,
	})

	return handle, nil
}

// SettlePayment подтверждает оплату заказа кодом квитанции M-Pesa.
// Повторный вызов по уже оплаченному заказу — no-op с тем же результатом.
func (s *Service) SettlePayment(ownerID, orderID, receipt string) (domain.Order, error) {
	if !mpesa.ValidReceipt(receipt) {
		return domain.Order{}, domain.ErrInvalidCode
	}

	order, err := s.orders.Get(ownerID, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.PaymentStatus == domain.PaymentStatePaid {
		s.logger.WithField("order_id", order.ID).Debug("order already settled, skipping")
		return order, nil
	}

	attempt, err := s.settleAttempt(ownerID, &order, receipt)
	if err != nil {
		return domain.Order{}, err
	}

	err = s.mutateOrder(&order, func(o *domain.Order) {
		o.PaymentStatus = domain.PaymentStatePaid
		o.SettlementCode = receipt
		if o.Status == domain.OrderStatusPending {
			o.Status = domain.OrderStatusConfirmed
		}
	})
	if err != nil {
		return domain.Order{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordSettlement()
	}
	s.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"receipt":  receipt,
	}).Info("payment settled")

	s.emitEvent(&order, "PaymentSettled", map[string]interface{}{
		"receipt": receipt,
		"ts":      order.UpdatedAt.Format(time.RFC3339Nano),
	})
	s.publishPaymentEvent(kafka.EventTypePaymentSettled, &attempt, nil)

	return order, nil
}

// settleAttempt закрывает последнюю pending-попытку по заказу кодом
// квитанции. Если pending-попыток нет (оплата прошла вне STK-пуша),
// создаётся mpesa_manual попытка и закрывается тем же путём: терминальный
// переход всегда идёт через Complete репозитория.
func (s *Service) settleAttempt(ownerID string, order *domain.Order, receipt string) (domain.PaymentAttempt, error) {
	attempts, err := s.payments.ListByOrder(ownerID, order.ID)
	if err != nil {
		return domain.PaymentAttempt{}, err
	}

	var pendingID string
	for _, attempt := range attempts {
		if attempt.Status == domain.AttemptStatusPending {
			pendingID = attempt.ID
			break
		}
	}

	if pendingID == "" {
		now := time.Now().UTC()
		manual := domain.PaymentAttempt{
			ID:          uuid.NewString(),
			OwnerID:     ownerID,
			OrderID:     order.ID,
			Reference:   order.ID,
			AmountMinor: order.AmountMinor,
			Status:      domain.AttemptStatusPending,
			Method:      domain.PaymentMethodMpesaManual,
			Customer:    order.Customer,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.payments.Create(manual); err != nil {
			return domain.PaymentAttempt{}, fmt.Errorf("create manual attempt: %w", err)
		}
		pendingID = manual.ID
	}

	return s.payments.Complete(ownerID, pendingID, receipt)
}

// UpdateStatus переводит заказ в следующий статус доставки. Отмена идёт
// только через CancelOrder, потому что требует возврата остатков.
func (s *Service) UpdateStatus(ownerID, orderID string, status domain.OrderStatus) (domain.Order, error) {
	if status == domain.OrderStatusCancelled {
		return domain.Order{}, domain.ErrOrderNotCancellable
	}

	order, err := s.orders.Get(ownerID, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.Status == status {
		return order, nil
	}
	if order.Status == domain.OrderStatusCancelled {
		return domain.Order{}, domain.ErrOrderNotCancellable
	}

	err = s.mutateOrder(&order, func(o *domain.Order) {
		o.Status = status
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.emitEvent(&order, "OrderStatusChanged", map[string]interface{}{
		"status": string(order.Status),
		"ts":     order.UpdatedAt.Format(time.RFC3339Nano),
	})
	s.publishOrderEvent(kafka.EventTypeOrderStatusChanged, &order, nil)

	return order, nil
}

// CancelOrder отменяет заказ и возвращает остатки по его позициям.
// Оплаченный заказ помечается как refunded, неоплаченный — cancelled.
func (s *Service) CancelOrder(ownerID, orderID, reason string) (domain.Order, error) {
	order, err := s.orders.Get(ownerID, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if !order.Cancellable() {
		return domain.Order{}, domain.ErrOrderNotCancellable
	}

	if err := s.restock(ownerID, order.ID, order.Items); err != nil {
		// Возврат не прошёл целиком; отмену не продолжаем, чтобы не
		// потерять списанный товар.
		return domain.Order{}, err
	}

	wasPaid := order.PaymentStatus == domain.PaymentStatePaid
	err = s.mutateOrder(&order, func(o *domain.Order) {
		o.Status = domain.OrderStatusCancelled
		if wasPaid {
			o.PaymentStatus = domain.PaymentStateRefunded
		} else {
			o.PaymentStatus = domain.PaymentStateCancelled
		}
	})
	if err != nil {
		return domain.Order{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordOrderCancelled()
	}
	s.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"reason":   reason,
	}).Info("order cancelled")

	payload := map[string]interface{}{
		"reason": reason,
		"ts":     order.UpdatedAt.Format(time.RFC3339Nano),
	}
	if reason == "" {
		delete(payload, "reason")
	}
	s.emitEvent(&order, "OrderCancelled", payload)
	s.publishOrderEvent(kafka.EventTypeOrderCancelled, &order, map[string]interface{}{
		"reason": reason,
	})

	return order, nil
}

// GetOrder возвращает заказ владельца.
func (s *Service) GetOrder(ownerID, orderID string) (domain.Order, error) {
	return s.orders.Get(ownerID, orderID)
}

// ListOrders возвращает заказы владельца, новые первыми.
func (s *Service) ListOrders(ownerID string, limit int) ([]domain.Order, error) {
	return s.orders.List(ownerID, limit)
}

// OrderTimeline возвращает события жизненного цикла заказа.
func (s *Service) OrderTimeline(ownerID, orderID string) ([]domain.TimelineEvent, error) {
	// Проверяем принадлежность заказа владельцу до чтения timeline.
	if _, err := s.orders.Get(ownerID, orderID); err != nil {
		return nil, err
	}
	return s.timeline.List(orderID)
}

// mutateOrder применяет мутацию к заказу и сохраняет его с retry при
// version conflict: при конфликте заказ перечитывается и мутация
// применяется заново к свежей версии.
func (s *Service) mutateOrder(order *domain.Order, mutate func(*domain.Order)) error {
	const maxRetries = 3
	const baseDelay = 10 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		mutate(order)
		order.UpdatedAt = time.Now().UTC()
		prevVersion := order.Version

		if err := s.orders.Save(*order); err != nil {
			if domain.IsVersionConflict(err) && attempt < maxRetries-1 {
				s.logger.WithFields(log.Fields{
					"order_id": order.ID,
					"attempt":  attempt + 1,
					"version":  order.Version,
				}).Warn("version conflict detected, retrying")

				fresh, loadErr := s.orders.Get(order.OwnerID, order.ID)
				if loadErr != nil {
					s.logger.WithError(loadErr).WithField("order_id", order.ID).
						Error("failed to reload order after conflict")
					return loadErr
				}
				*order = fresh

				delay := baseDelay * time.Duration(1<<uint(attempt))
				time.Sleep(delay)
				continue
			}

			s.logger.WithError(err).WithFields(log.Fields{
				"order_id": order.ID,
				"attempt":  attempt + 1,
			}).Error("failed to persist order")
			return err
		}

		order.Version = prevVersion + 1
		return nil
	}

	return domain.ErrVersionConflict
}

func (s *Service) recordOrderFailed() {
	if s.metrics != nil {
		s.metrics.RecordOrderFailed()
	}
}

// emitEvent пишет событие в transactional outbox и timeline заказа.
func (s *Service) emitEvent(order *domain.Order, eventType string, payload map[string]interface{}) {
	if payload == nil {
		payload = make(map[string]interface{})
	}
	payload["order_id"] = order.ID
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"event":    eventType,
		}).Error("marshal event failed")
		return
	}

	if s.outbox != nil {
		msg := domain.OutboxMessage{
			AggregateType: "order",
			AggregateID:   order.ID,
			EventType:     eventType,
			Payload:       data,
		}
		if _, err := s.outbox.Enqueue(msg); err != nil {
			s.logger.WithError(err).WithFields(log.Fields{
				"order_id": order.ID,
				"event":    eventType,
			}).Error("enqueue event failed")
		} else if s.metrics != nil {
			s.metrics.RecordOutboxEvent()
		}
	}

	if s.timeline != nil {
		var reason string
		if r, ok := payload["reason"].(string); ok {
			reason = r
		}
		occurred := time.Now().UTC()
		if ts, ok := payload["ts"].(string); ok {
			if parsed, parseErr := time.Parse(time.RFC3339Nano, ts); parseErr == nil {
				occurred = parsed
			}
		}
		event := domain.TimelineEvent{
			OrderID:  order.ID,
			Type:     eventType,
			Reason:   reason,
			Occurred: occurred,
		}
		if err := s.timeline.Append(event); err != nil {
			s.logger.WithError(err).WithFields(log.Fields{
				"order_id": order.ID,
				"event":    eventType,
			}).Warn("append timeline event failed")
		} else if s.metrics != nil {
			s.metrics.RecordTimelineEvent()
		}
	}
}

// publishOrderEvent публикует событие заказа в Kafka (если producer настроен).
func (s *Service) publishOrderEvent(eventType kafka.EventType, order *domain.Order, metadata map[string]interface{}) {
	if s.kafkaProducer == nil {
		return
	}
	event := kafka.NewOrderEvent(eventType, order.ID, order.OwnerID, string(order.Status), metadata)
	if err := s.kafkaProducer.PublishEvent(kafka.TopicOrderEvents, order.ID, event); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"event_type": eventType,
			"order_id":   order.ID,
		}).Warn("failed to publish order event to kafka")
	}
}

// publishPaymentEvent публикует событие платежа в Kafka (если producer настроен).
func (s *Service) publishPaymentEvent(eventType kafka.EventType, attempt *domain.PaymentAttempt, metadata map[string]interface{}) {
	if s.kafkaProducer == nil {
		return
	}
	event := kafka.NewPaymentEvent(eventType, attempt.ID, attempt.OrderID, attempt.OwnerID, attempt.Receipt, metadata)
	if err := s.kafkaProducer.PublishEvent(kafka.TopicPaymentEvents, attempt.OrderID, event); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"event_type": eventType,
			"payment_id": attempt.ID,
		}).Warn("failed to publish payment event to kafka")
	}
}
