package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/duka/domain"
)

// paymentRepositoryInMemory — in-memory реализация PaymentRepository.
type paymentRepositoryInMemory struct {
	mu       sync.RWMutex
	attempts map[string]domain.PaymentAttempt
	links    map[string]domain.PaymentLink
}

// NewPaymentRepository возвращает in-memory репозиторий платежей.
func NewPaymentRepository() domain.PaymentRepository {
	return &paymentRepositoryInMemory{
		attempts: make(map[string]domain.PaymentAttempt),
		links:    make(map[string]domain.PaymentLink),
	}
}

// Create сохраняет новую попытку платежа.
func (r *paymentRepositoryInMemory) Create(attempt domain.PaymentAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.attempts[attempt.ID]; exists {
		return domain.ErrVersionConflict
	}
	r.attempts[attempt.ID] = attempt
	return nil
}

// Get возвращает попытку владельца или ErrNotFound / ErrPermissionDenied.
func (r *paymentRepositoryInMemory) Get(ownerID, id string) (domain.PaymentAttempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.scoped(ownerID, id)
}

// List возвращает попытки владельца, новые первыми.
func (r *paymentRepositoryInMemory) List(ownerID string, limit int) ([]domain.PaymentAttempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.PaymentAttempt, 0, len(r.attempts))
	for _, attempt := range r.attempts {
		if attempt.OwnerID != ownerID {
			continue
		}
		result = append(result, attempt)
	}

	sortAttempts(result)

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

// ListByOrder возвращает попытки по заказу, новые первыми.
func (r *paymentRepositoryInMemory) ListByOrder(ownerID, orderID string) ([]domain.PaymentAttempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.PaymentAttempt, 0)
	for _, attempt := range r.attempts {
		if attempt.OwnerID != ownerID || attempt.OrderID != orderID {
			continue
		}
		result = append(result, attempt)
	}

	sortAttempts(result)
	return result, nil
}

// SetCheckoutRequestID записывает корреляционный идентификатор шлюза.
func (r *paymentRepositoryInMemory) SetCheckoutRequestID(ownerID, id, checkoutRequestID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	attempt, err := r.scoped(ownerID, id)
	if err != nil {
		return err
	}
	attempt.CheckoutRequestID = checkoutRequestID
	attempt.UpdatedAt = time.Now().UTC()
	r.attempts[id] = attempt
	return nil
}

// Complete условно переводит pending-попытку в completed с кодом квитанции.
func (r *paymentRepositoryInMemory) Complete(ownerID, id, receipt string) (domain.PaymentAttempt, error) {
	return r.finish(ownerID, id, domain.AttemptStatusCompleted, receipt)
}

// Fail условно переводит pending-попытку в failed.
func (r *paymentRepositoryInMemory) Fail(ownerID, id string) (domain.PaymentAttempt, error) {
	return r.finish(ownerID, id, domain.AttemptStatusFailed, "")
}

// finish — единая точка терминальных переходов: проверка статуса и запись
// происходят под одним write-lock.
func (r *paymentRepositoryInMemory) finish(ownerID, id string, status domain.AttemptStatus, receipt string) (domain.PaymentAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	attempt, err := r.scoped(ownerID, id)
	if err != nil {
		return domain.PaymentAttempt{}, err
	}
	if attempt.Status.Terminal() {
		return domain.PaymentAttempt{}, domain.ErrAttemptTerminal
	}

	attempt.Status = status
	if receipt != "" {
		attempt.Receipt = receipt
	}
	attempt.UpdatedAt = time.Now().UTC()
	r.attempts[id] = attempt
	return attempt, nil
}

// CreateLink сохраняет платёжную ссылку.
func (r *paymentRepositoryInMemory) CreateLink(link domain.PaymentLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.links[link.ID]; exists {
		return domain.ErrVersionConflict
	}
	r.links[link.ID] = link
	return nil
}

func (r *paymentRepositoryInMemory) scoped(ownerID, id string) (domain.PaymentAttempt, error) {
	attempt, ok := r.attempts[id]
	if !ok {
		return domain.PaymentAttempt{}, domain.ErrNotFound
	}
	if attempt.OwnerID != ownerID {
		return domain.PaymentAttempt{}, domain.ErrPermissionDenied
	}
	return attempt, nil
}

func sortAttempts(attempts []domain.PaymentAttempt) {
	sort.Slice(attempts, func(i, j int) bool {
		if !attempts[i].CreatedAt.Equal(attempts[j].CreatedAt) {
			return attempts[i].CreatedAt.After(attempts[j].CreatedAt)
		}
		return attempts[i].ID > attempts[j].ID
	})
}

var _ domain.PaymentRepository = (*paymentRepositoryInMemory)(nil)
