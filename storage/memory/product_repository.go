package memory

import (
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/duka/domain"
)

// productRepositoryInMemory — простая in-memory реализация ProductRepository.
type productRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Product
}

// NewProductRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewProductRepository() domain.ProductRepository {
	return &productRepositoryInMemory{
		items: make(map[string]domain.Product),
	}
}

// Create сохраняет новый товар, проверяя уникальность SKU в рамках владельца.
func (r *productRepositoryInMemory) Create(product domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[product.ID]; exists {
		return domain.ErrVersionConflict
	}
	for _, existing := range r.items {
		if existing.OwnerID == product.OwnerID && existing.SKU == product.SKU {
			return domain.ErrSKUTaken
		}
	}
	// Сохраняем копию, чтобы избежать непредсказуемых мутаций извне.
	r.items[product.ID] = product
	return nil
}

// Get возвращает товар владельца или ErrNotFound / ErrPermissionDenied.
func (r *productRepositoryInMemory) Get(ownerID, id string) (domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.scoped(ownerID, id)
}

// List возвращает товары владельца, новые первыми.
func (r *productRepositoryInMemory) List(ownerID string) ([]domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Product, 0, len(r.items))
	for _, product := range r.items {
		if product.OwnerID != ownerID {
			continue
		}
		result = append(result, product)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	return result, nil
}

// Update перезаписывает атрибуты товара, сохраняя текущий остаток.
func (r *productRepositoryInMemory) Update(product domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := r.scoped(product.OwnerID, product.ID)
	if err != nil {
		return err
	}
	if current.SKU != product.SKU {
		for _, existing := range r.items {
			if existing.ID != product.ID && existing.OwnerID == product.OwnerID && existing.SKU == product.SKU {
				return domain.ErrSKUTaken
			}
		}
	}
	// Остаток меняется только через AdjustStock.
	product.Stock = current.Stock
	r.items[product.ID] = product
	return nil
}

// Delete удаляет товар владельца.
func (r *productRepositoryInMemory) Delete(ownerID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.scoped(ownerID, id); err != nil {
		return err
	}
	delete(r.items, id)
	return nil
}

// AdjustStock атомарно применяет дельту под write-lock: проверка и запись
// неразделимы, поэтому конкурентные списания не уводят остаток в минус.
func (r *productRepositoryInMemory) AdjustStock(ownerID, id string, delta int32) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, err := r.scoped(ownerID, id)
	if err != nil {
		return domain.Product{}, err
	}

	next := product.Stock + delta
	if next < 0 {
		return domain.Product{}, &domain.InsufficientStockError{
			ProductID: id,
			Requested: -delta,
			Available: product.Stock,
		}
	}

	product.Stock = next
	r.items[id] = product
	return product, nil
}

// scoped ищет запись и проверяет принадлежность владельцу. Вызывается под локом.
func (r *productRepositoryInMemory) scoped(ownerID, id string) (domain.Product, error) {
	product, ok := r.items[id]
	if !ok {
		return domain.Product{}, domain.ErrNotFound
	}
	if product.OwnerID != ownerID {
		return domain.Product{}, domain.ErrPermissionDenied
	}
	return product, nil
}

var _ domain.ProductRepository = (*productRepositoryInMemory)(nil)
