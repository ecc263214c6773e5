package domain

import "time"

// Expense — операционный расход мерчанта.
type Expense struct {
	ID          string
	OwnerID     string
	Category    string
	Description string
	AmountMinor int64
	SpentAt     time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate проверяет обязательные поля расхода.
func (e *Expense) Validate() []error {
	var errs []error

	if e.Category == "" {
		errs = append(errs, ErrExpenseCategoryRequired)
	}
	if e.AmountMinor <= 0 {
		errs = append(errs, ErrExpenseAmountInvalid)
	}

	return errs
}
