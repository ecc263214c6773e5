package memory

import (
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/duka/domain"
)

// supplierRepositoryInMemory — in-memory реализация SupplierRepository.
type supplierRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Supplier
}

// NewSupplierRepository возвращает in-memory репозиторий поставщиков.
func NewSupplierRepository() domain.SupplierRepository {
	return &supplierRepositoryInMemory{items: make(map[string]domain.Supplier)}
}

func (r *supplierRepositoryInMemory) Create(supplier domain.Supplier) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[supplier.ID]; exists {
		return domain.ErrVersionConflict
	}
	supplier.Brands = append([]string(nil), supplier.Brands...)
	r.items[supplier.ID] = supplier
	return nil
}

func (r *supplierRepositoryInMemory) Get(ownerID, id string) (domain.Supplier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	supplier, err := r.scoped(ownerID, id)
	if err != nil {
		return domain.Supplier{}, err
	}
	supplier.Brands = append([]string(nil), supplier.Brands...)
	return supplier, nil
}

func (r *supplierRepositoryInMemory) List(ownerID string) ([]domain.Supplier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Supplier, 0, len(r.items))
	for _, supplier := range r.items {
		if supplier.OwnerID != ownerID {
			continue
		}
		supplier.Brands = append([]string(nil), supplier.Brands...)
		result = append(result, supplier)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})

	return result, nil
}

func (r *supplierRepositoryInMemory) Update(supplier domain.Supplier) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.scoped(supplier.OwnerID, supplier.ID); err != nil {
		return err
	}
	supplier.Brands = append([]string(nil), supplier.Brands...)
	r.items[supplier.ID] = supplier
	return nil
}

func (r *supplierRepositoryInMemory) Delete(ownerID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.scoped(ownerID, id); err != nil {
		return err
	}
	delete(r.items, id)
	return nil
}

func (r *supplierRepositoryInMemory) scoped(ownerID, id string) (domain.Supplier, error) {
	supplier, ok := r.items[id]
	if !ok {
		return domain.Supplier{}, domain.ErrNotFound
	}
	if supplier.OwnerID != ownerID {
		return domain.Supplier{}, domain.ErrPermissionDenied
	}
	return supplier, nil
}

var _ domain.SupplierRepository = (*supplierRepositoryInMemory)(nil)
