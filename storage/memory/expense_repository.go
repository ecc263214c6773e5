package memory

import (
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/duka/domain"
)

// expenseRepositoryInMemory — in-memory реализация ExpenseRepository.
type expenseRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Expense
}

// NewExpenseRepository возвращает in-memory репозиторий расходов.
func NewExpenseRepository() domain.ExpenseRepository {
	return &expenseRepositoryInMemory{items: make(map[string]domain.Expense)}
}

func (r *expenseRepositoryInMemory) Create(expense domain.Expense) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[expense.ID]; exists {
		return domain.ErrVersionConflict
	}
	r.items[expense.ID] = expense
	return nil
}

func (r *expenseRepositoryInMemory) Get(ownerID, id string) (domain.Expense, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.scoped(ownerID, id)
}

// List возвращает расходы владельца, свежие первыми (по дате траты).
func (r *expenseRepositoryInMemory) List(ownerID string) ([]domain.Expense, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Expense, 0, len(r.items))
	for _, expense := range r.items {
		if expense.OwnerID != ownerID {
			continue
		}
		result = append(result, expense)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].SpentAt.Equal(result[j].SpentAt) {
			return result[i].SpentAt.After(result[j].SpentAt)
		}
		return result[i].ID > result[j].ID
	})

	return result, nil
}

func (r *expenseRepositoryInMemory) Update(expense domain.Expense) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.scoped(expense.OwnerID, expense.ID); err != nil {
		return err
	}
	r.items[expense.ID] = expense
	return nil
}

func (r *expenseRepositoryInMemory) Delete(ownerID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.scoped(ownerID, id); err != nil {
		return err
	}
	delete(r.items, id)
	return nil
}

func (r *expenseRepositoryInMemory) scoped(ownerID, id string) (domain.Expense, error) {
	expense, ok := r.items[id]
	if !ok {
		return domain.Expense{}, domain.ErrNotFound
	}
	if expense.OwnerID != ownerID {
		return domain.Expense{}, domain.ErrPermissionDenied
	}
	return expense, nil
}

var _ domain.ExpenseRepository = (*expenseRepositoryInMemory)(nil)
