package memory

import (
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/duka/domain"
)

// orderRepositoryInMemory — простая in-memory реализация OrderRepository.
type orderRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Order
}

// NewOrderRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewOrderRepository() domain.OrderRepository {
	return &orderRepositoryInMemory{
		items: make(map[string]domain.Order),
	}
}

// Create сохраняет новый заказ, если ID ещё не занят.
func (r *orderRepositoryInMemory) Create(order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[order.ID]; exists {
		return domain.ErrVersionConflict
	}
	// Копируем срез позиций: иначе вызывающая сторона может мутировать хранимое.
	order.Items = append([]domain.OrderItem(nil), order.Items...)
	r.items[order.ID] = order
	return nil
}

// Get возвращает заказ владельца или ErrNotFound / ErrPermissionDenied.
func (r *orderRepositoryInMemory) Get(ownerID, id string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, err := r.scoped(ownerID, id)
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = append([]domain.OrderItem(nil), order.Items...)
	return order, nil
}

// List возвращает заказы владельца, новые первыми, ограничивая выборку limit (если >0).
func (r *orderRepositoryInMemory) List(ownerID string, limit int) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Order, 0, len(r.items))
	for _, order := range r.items {
		if order.OwnerID != ownerID {
			continue
		}
		order.Items = append([]domain.OrderItem(nil), order.Items...)
		result = append(result, order)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

// Save перезаписывает заказ, проверяя версию (optimistic locking).
func (r *orderRepositoryInMemory) Save(order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := r.scoped(order.OwnerID, order.ID)
	if err != nil {
		return err
	}
	if current.Version != order.Version {
		return domain.ErrVersionConflict
	}
	// Инкрементируем версию перед сохранением.
	order.Version++
	order.Items = append([]domain.OrderItem(nil), order.Items...)
	r.items[order.ID] = order
	return nil
}

// Delete удаляет заказ владельца.
func (r *orderRepositoryInMemory) Delete(ownerID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.scoped(ownerID, id); err != nil {
		return err
	}
	delete(r.items, id)
	return nil
}

func (r *orderRepositoryInMemory) scoped(ownerID, id string) (domain.Order, error) {
	order, ok := r.items[id]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	if order.OwnerID != ownerID {
		return domain.Order{}, domain.ErrPermissionDenied
	}
	return order, nil
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
